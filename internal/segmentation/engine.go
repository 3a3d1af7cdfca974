package segmentation

import (
	"context"
	"fmt"

	"github.com/ignite/line-broadcast/internal/domain"
)

// Engine runs composed audience queries against the subscriber store.
type Engine struct {
	db       Querier
	composer *Composer
}

// NewEngine creates a segmentation engine.
func NewEngine(db Querier, registry *Registry) *Engine {
	return &Engine{db: db, composer: NewComposer(registry)}
}

// List returns matching recipients ordered by subscriber id. A nil tree
// selects everyone satisfying the base predicate.
func (e *Engine) List(ctx context.Context, tree domain.FilterTree, page Page) ([]domain.RecipientRef, error) {
	q, _ := e.composer.Build(ctx, tree, ModeList, page, NewAudience(e.db))

	rows, err := e.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("audience query: %w", err)
	}
	defer rows.Close()

	var out []domain.RecipientRef
	for rows.Next() {
		var r domain.RecipientRef
		if err := rows.Scan(&r.SubscriberID, &r.UserID, &r.DisplayName, &r.PictureURL); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audience rows: %w", err)
	}
	return out, nil
}

// Count returns the size of the audience without materializing it.
func (e *Engine) Count(ctx context.Context, tree domain.FilterTree) (int, error) {
	q, _ := e.composer.Build(ctx, tree, ModeCount, Page{}, NewAudience(e.db))

	var n int
	if err := e.db.QueryRowContext(ctx, q.SQL, q.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("audience count: %w", err)
	}
	return n, nil
}
