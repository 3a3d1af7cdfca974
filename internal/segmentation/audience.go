package segmentation

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Querier is the subset of *sql.DB used by the segmentation engine.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Audience carries per-execution state for compiling conditions. Schema
// lookups are memoized for the lifetime of one Audience only, so a table
// created between executions is picked up by the next one.
type Audience struct {
	q Querier

	mu     sync.Mutex
	tables map[string]bool
}

// NewAudience starts a fresh per-execution context.
func NewAudience(q Querier) *Audience {
	return &Audience{q: q, tables: make(map[string]bool)}
}

// TableExists reports whether a relation is visible on the search path.
func (a *Audience) TableExists(ctx context.Context, name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ok, cached := a.tables[name]; cached {
		return ok, nil
	}
	if a.q == nil {
		return false, nil
	}
	var exists bool
	if err := a.q.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	a.tables[name] = exists
	return exists, nil
}
