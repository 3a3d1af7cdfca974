package segmentation

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ignite/line-broadcast/internal/domain"
)

type tagCountValue struct {
	TagName string `json:"tag_name"`
	Count   *int   `json:"count"`
}

var tagCountComparators = map[string]string{
	OpGte: ">=",
	OpLte: "<=",
	OpEq:  "=",
	OpGt:  ">",
	OpLt:  "<",
}

// TagCountStrategy compares how many times a tag was applied to a subscriber.
type TagCountStrategy struct{}

func (TagCountStrategy) Type() string { return TypeTagCount }

func (TagCountStrategy) SupportedOperators() []string {
	return []string{OpGte, OpLte, OpEq, OpGt, OpLt}
}

func (s TagCountStrategy) Validate(cond domain.FilterCondition) bool {
	_, ok := s.parse(cond)
	return ok
}

func (s TagCountStrategy) parse(cond domain.FilterCondition) (tagCountValue, bool) {
	if _, ok := tagCountComparators[cond.Operator]; !ok {
		return tagCountValue{}, false
	}
	var v tagCountValue
	if err := json.Unmarshal(cond.Value, &v); err != nil {
		return tagCountValue{}, false
	}
	v.TagName = strings.TrimSpace(v.TagName)
	if v.TagName == "" || v.Count == nil || *v.Count < 0 {
		return tagCountValue{}, false
	}
	return v, true
}

func (s TagCountStrategy) Compile(_ context.Context, cond domain.FilterCondition, _ *Audience) (Predicate, bool) {
	v, ok := s.parse(cond)
	if !ok {
		return Predicate{}, false
	}
	var a argList
	name := a.next(v.TagName)
	n := a.next(*v.Count)
	return a.predicate(
		"(SELECT COUNT(*) FROM subscriber_tags st WHERE st.subscriber_id = s.id AND st.tag_name = %s) %s %s",
		name, tagCountComparators[cond.Operator], n,
	), true
}
