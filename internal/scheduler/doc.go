// Package scheduler defers campaign executions to a future instant.
//
// Tasks live in a Redis-backed delayed queue keyed by operation, campaign id
// and queue name. A Dispatcher claims due tasks with a visibility deadline and
// fires them through an Executor; a Sweeper returns tasks whose dispatcher
// died before acknowledging them, so every task fires at least once.
package scheduler
