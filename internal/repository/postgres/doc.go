// Package postgres implements the campaign, execution log and recipient
// stores on PostgreSQL via lib/pq. JSON columns (filter_tree,
// message_content, snapshot, error_payload) are encoded and decoded here and
// nowhere else.
package postgres
