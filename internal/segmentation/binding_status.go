package segmentation

import (
	"context"

	"github.com/ignite/line-broadcast/internal/domain"
)

// BindingStatusStrategy filters on whether a follower linked a member account.
type BindingStatusStrategy struct{}

func (BindingStatusStrategy) Type() string { return TypeBindingStatus }

func (BindingStatusStrategy) SupportedOperators() []string {
	return []string{OpEquals, OpNotEquals}
}

func (s BindingStatusStrategy) Validate(cond domain.FilterCondition) bool {
	if !supports(s, cond.Operator) {
		return false
	}
	v, ok := scalarString(cond.Value)
	if !ok {
		return false
	}
	return v == string(domain.BindingBound) || v == string(domain.BindingUnbound)
}

func (s BindingStatusStrategy) Compile(_ context.Context, cond domain.FilterCondition, _ *Audience) (Predicate, bool) {
	if !s.Validate(cond) {
		return Predicate{}, false
	}
	v, _ := scalarString(cond.Value)

	var a argList
	cmp := "="
	if cond.Operator == OpNotEquals {
		cmp = "<>"
	}
	return a.predicate("COALESCE(s.binding_status, 'unbound') %s %s", cmp, a.next(v)), true
}
