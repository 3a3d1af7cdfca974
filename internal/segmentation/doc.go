// Package segmentation compiles campaign filter trees into audience queries.
//
// Each condition type is handled by a Strategy registered in a Registry.
// The Composer ANDs the predicates inside a group, ORs the groups and always
// applies BasePredicate. All predicates are correlated sub-selects on the
// subscriber row, so a count query and an unpaginated list query over the
// same tree agree.
package segmentation
