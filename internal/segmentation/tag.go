package segmentation

import (
	"context"

	"github.com/lib/pq"

	"github.com/ignite/line-broadcast/internal/domain"
)

// TagStrategy matches subscribers by the tags attached through subscriber_tags.
type TagStrategy struct{}

func (TagStrategy) Type() string { return TypeTag }

func (TagStrategy) SupportedOperators() []string {
	return []string{OpAnyOf, OpAllOf, OpNoneOf, OpNotAllOf}
}

func (s TagStrategy) Validate(cond domain.FilterCondition) bool {
	if !supports(s, cond.Operator) {
		return false
	}
	_, ok := stringList(cond.Value)
	return ok
}

func (s TagStrategy) Compile(_ context.Context, cond domain.FilterCondition, _ *Audience) (Predicate, bool) {
	if !supports(s, cond.Operator) {
		return Predicate{}, false
	}
	tags, ok := stringList(cond.Value)
	if !ok {
		return Predicate{}, false
	}

	var a argList
	names := a.next(pq.Array(tags))
	anyOf := `EXISTS (SELECT 1 FROM subscriber_tags st WHERE st.subscriber_id = s.id AND st.tag_name = ANY(` + names + `))`
	// Relational division: no requested tag is missing.
	allOf := `NOT EXISTS (SELECT 1 FROM unnest(` + names + `::text[]) AS want(tag_name) ` +
		`WHERE NOT EXISTS (SELECT 1 FROM subscriber_tags st WHERE st.subscriber_id = s.id AND st.tag_name = want.tag_name))`

	switch cond.Operator {
	case OpAnyOf:
		return a.predicate("%s", anyOf), true
	case OpAllOf:
		return a.predicate("%s", allOf), true
	case OpNoneOf:
		return a.predicate("NOT %s", anyOf), true
	default:
		return a.predicate("NOT (%s)", allOf), true
	}
}
