// Package audience turns a campaign's audience type into either the
// broadcast-to-everyone marker or a concrete recipient list.
package audience

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/segmentation"
)

// ErrAudienceEmpty is returned when an imported or filtered audience resolves
// to nobody. It is fatal for the execution.
var ErrAudienceEmpty = errors.New("audience is empty")

// ErrUnknownAudienceType is returned for an audience type the resolver cannot handle.
var ErrUnknownAudienceType = errors.New("unknown audience type")

// Segmenter runs audience queries. *segmentation.Engine implements it.
type Segmenter interface {
	List(ctx context.Context, tree domain.FilterTree, page segmentation.Page) ([]domain.RecipientRef, error)
	Count(ctx context.Context, tree domain.FilterTree) (int, error)
}

// Resolution is the outcome of resolving one campaign's audience.
type Resolution struct {
	BroadcastAll bool
	Recipients   []domain.RecipientRef
}

// TargetCount is the number of explicit recipients; zero for a broadcast.
func (r Resolution) TargetCount() int {
	return len(r.Recipients)
}

// Resolver resolves campaign audiences.
type Resolver struct {
	seg Segmenter
}

// NewResolver creates a resolver over seg.
func NewResolver(seg Segmenter) *Resolver {
	return &Resolver{seg: seg}
}

// Resolve computes the audience for one execution.
func (r *Resolver) Resolve(ctx context.Context, c *domain.Campaign) (Resolution, error) {
	tree, broadcast, err := r.treeFor(c)
	if err != nil {
		return Resolution{}, err
	}
	if broadcast {
		return Resolution{BroadcastAll: true}, nil
	}

	recipients, err := r.seg.List(ctx, tree, segmentation.Page{})
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve audience: %w", err)
	}
	if len(recipients) == 0 {
		return Resolution{}, ErrAudienceEmpty
	}
	return Resolution{Recipients: recipients}, nil
}

// Estimate counts the audience without materializing it. ok is false for a
// broadcast, whose size only the provider knows.
func (r *Resolver) Estimate(ctx context.Context, c *domain.Campaign) (count int, ok bool, err error) {
	tree, broadcast, err := r.treeFor(c)
	if err != nil {
		return 0, false, err
	}
	if broadcast {
		return 0, false, nil
	}
	n, err := r.seg.Count(ctx, tree)
	if err != nil {
		return 0, false, fmt.Errorf("estimate audience: %w", err)
	}
	return n, true, nil
}

func (r *Resolver) treeFor(c *domain.Campaign) (domain.FilterTree, bool, error) {
	switch c.AudienceType {
	case domain.AudienceAll:
		return nil, true, nil
	case domain.AudienceImported:
		return nil, false, nil
	case domain.AudienceFiltered:
		return c.FilterTree, false, nil
	default:
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownAudienceType, c.AudienceType)
	}
}
