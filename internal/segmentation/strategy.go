package segmentation

import (
	"context"
	"sort"
	"sync"

	"github.com/ignite/line-broadcast/internal/domain"
)

// Strategy turns one kind of filter condition into a SQL predicate.
//
// Validate is a pure shape check. Compile may consult the Audience (for
// example to check that optional tables exist) and returns false when the
// condition cannot be used for this execution; the composer then skips it.
type Strategy interface {
	Type() string
	SupportedOperators() []string
	Validate(cond domain.FilterCondition) bool
	Compile(ctx context.Context, cond domain.FilterCondition, aud *Audience) (Predicate, bool)
}

// TypeInfo is one entry of the condition-type catalogue.
type TypeInfo struct {
	Type      string         `json:"type"`
	Operators []OperatorInfo `json:"operators"`
}

// Registry maps condition type names to strategies. It is populated at
// startup and read concurrently afterwards.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// DefaultRegistry registers the built-in strategies. purchaseStatuses is the
// order status allow-list for purchase conditions; empty uses the default.
func DefaultRegistry(purchaseStatuses []string) *Registry {
	r := NewRegistry()
	r.Register(BindingStatusStrategy{})
	r.Register(TagStrategy{})
	r.Register(NewPurchaseStrategy(purchaseStatuses))
	r.Register(AddressStrategy{})
	r.Register(TagCountStrategy{})
	return r
}

// Register adds or replaces the strategy for s.Type().
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Type()] = s
}

// Get looks up a strategy. An unknown type is reported as not found.
func (r *Registry) Get(conditionType string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[conditionType]
	return s, ok
}

// Types lists registered strategies sorted by type name.
func (r *Registry) Types() []TypeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TypeInfo, 0, len(r.strategies))
	for name, s := range r.strategies {
		info := TypeInfo{Type: name}
		for _, op := range s.SupportedOperators() {
			info.Operators = append(info.Operators, OperatorInfo{Operator: op, Label: operatorLabels[op]})
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func supports(s Strategy, op string) bool {
	for _, o := range s.SupportedOperators() {
		if o == op {
			return true
		}
	}
	return false
}
