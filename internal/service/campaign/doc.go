// Package campaign implements campaign management and execution.
//
// The service layer owns the execution sequence: load the campaign, resolve
// its audience, build the provider messages, open an execution log, deliver,
// close the log and record the outcome on the campaign. Failures before the
// log is opened leave no execution row, only the campaign's
// last_execution_status flag.
//
// It depends on repository interfaces defined in this package and should
// never import from api/. Repository implementations live in
// repository/postgres/.
package campaign
