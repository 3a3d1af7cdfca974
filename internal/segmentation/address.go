package segmentation

import (
	"context"
	"strings"

	"github.com/ignite/line-broadcast/internal/domain"
)

var addressFields = []string{"postal_code", "prefecture", "city", "address_line1", "address_line2"}

// AddressStrategy does a case-insensitive substring match over every address
// field. A match on any field of any address counts.
type AddressStrategy struct{}

func (AddressStrategy) Type() string { return TypeAddress }

func (AddressStrategy) SupportedOperators() []string {
	return []string{OpContains, OpNotContain}
}

func (s AddressStrategy) Validate(cond domain.FilterCondition) bool {
	if !supports(s, cond.Operator) {
		return false
	}
	_, ok := scalarString(cond.Value)
	return ok
}

func (s AddressStrategy) Compile(_ context.Context, cond domain.FilterCondition, _ *Audience) (Predicate, bool) {
	if !s.Validate(cond) {
		return Predicate{}, false
	}
	v, _ := scalarString(cond.Value)

	var a argList
	p := a.next(likePattern(v))
	matches := make([]string, len(addressFields))
	for i, f := range addressFields {
		matches[i] = "a." + f + " ILIKE " + p
	}
	exists := "EXISTS (SELECT 1 FROM subscriber_addresses a WHERE a.subscriber_id = s.id AND (" +
		strings.Join(matches, " OR ") + "))"

	if cond.Operator == OpNotContain {
		return a.predicate("NOT %s", exists), true
	}
	return a.predicate("%s", exists), true
}
