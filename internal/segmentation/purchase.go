package segmentation

import (
	"context"

	"github.com/lib/pq"

	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/pkg/logger"
)

// DefaultPurchaseStatuses are the order states that count as a purchase.
var DefaultPurchaseStatuses = []string{"completed", "shipped", "delivered"}

// PurchaseStrategy matches subscribers by products in their qualifying orders.
// all_of requires every product in one single order.
type PurchaseStrategy struct {
	statuses []string
}

// NewPurchaseStrategy builds the strategy with an order status allow-list.
func NewPurchaseStrategy(statuses []string) PurchaseStrategy {
	if len(statuses) == 0 {
		statuses = DefaultPurchaseStatuses
	}
	return PurchaseStrategy{statuses: append([]string(nil), statuses...)}
}

func (PurchaseStrategy) Type() string { return TypePurchase }

func (PurchaseStrategy) SupportedOperators() []string {
	return []string{OpAnyOf, OpAllOf, OpNoneOf, OpNotAllOf}
}

func (s PurchaseStrategy) Validate(cond domain.FilterCondition) bool {
	if !supports(s, cond.Operator) {
		return false
	}
	_, ok := stringList(cond.Value)
	return ok
}

func (s PurchaseStrategy) Compile(ctx context.Context, cond domain.FilterCondition, aud *Audience) (Predicate, bool) {
	if !s.Validate(cond) {
		return Predicate{}, false
	}
	products, _ := stringList(cond.Value)

	for _, table := range []string{"orders", "order_items"} {
		ok, err := aud.TableExists(ctx, table)
		if err != nil {
			logger.Warn("commerce schema check failed", "component", "segmentation", "table", table, "error", err)
			return Predicate{}, false
		}
		if !ok {
			logger.Debug("purchase condition skipped, table missing", "component", "segmentation", "table", table)
			return Predicate{}, false
		}
	}

	statuses := s.statuses
	if len(statuses) == 0 {
		statuses = DefaultPurchaseStatuses
	}

	var a argList
	st := a.next(pq.Array(statuses))
	ids := a.next(pq.Array(products))

	anyOf := `EXISTS (SELECT 1 FROM orders o JOIN order_items oi ON oi.order_id = o.id ` +
		`WHERE o.subscriber_id = s.id AND o.status = ANY(` + st + `) AND oi.product_id = ANY(` + ids + `))`
	allOf := `EXISTS (SELECT 1 FROM orders o WHERE o.subscriber_id = s.id AND o.status = ANY(` + st + `) ` +
		`AND NOT EXISTS (SELECT 1 FROM unnest(` + ids + `::text[]) AS want(product_id) ` +
		`WHERE NOT EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.product_id = want.product_id)))`

	switch cond.Operator {
	case OpAnyOf:
		return a.predicate("%s", anyOf), true
	case OpAllOf:
		return a.predicate("%s", allOf), true
	case OpNoneOf:
		return a.predicate("NOT %s", anyOf), true
	default:
		return a.predicate("NOT %s", allOf), true
	}
}
