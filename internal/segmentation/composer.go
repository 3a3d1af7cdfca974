package segmentation

import (
	"context"
	"strconv"
	"strings"

	"github.com/ignite/line-broadcast/internal/domain"
	"github.com/ignite/line-broadcast/internal/pkg/logger"
)

// BasePredicate restricts every audience to active subscribers that can be
// addressed by the provider.
const BasePredicate = "s.is_active = TRUE AND s.line_user_id IS NOT NULL AND s.line_user_id <> ''"

const listColumns = "s.id, s.line_user_id, COALESCE(s.display_name, ''), COALESCE(s.picture_url, '')"

// Composer merges the predicates of a filter tree into one statement.
type Composer struct {
	registry *Registry
}

// NewComposer creates a composer backed by registry.
func NewComposer(registry *Registry) *Composer {
	return &Composer{registry: registry}
}

// Stats reports what survived composition.
type Stats struct {
	Groups  int
	Used    int
	Dropped int
}

// Build composes tree into a count or list statement. Conditions that are
// unknown, invalid or unusable are dropped; groups left empty are dropped;
// with no surviving group the base predicate alone applies.
func (c *Composer) Build(ctx context.Context, tree domain.FilterTree, mode Mode, page Page, aud *Audience) (Query, Stats) {
	var (
		args   []interface{}
		groups []string
		stats  Stats
	)

	for _, gid := range tree.GroupIDs() {
		var parts []string
		for _, cond := range tree[gid] {
			pred, ok := c.compile(ctx, cond, aud)
			if !ok {
				stats.Dropped++
				logger.Debug("condition dropped", "component", "segmentation", "group", gid, "type", cond.Type, "operator", cond.Operator)
				continue
			}
			parts = append(parts, rebase(pred.SQL, len(args)))
			args = append(args, pred.Args...)
			stats.Used++
		}
		if len(parts) == 0 {
			continue
		}
		groups = append(groups, "("+strings.Join(parts, " AND ")+")")
	}
	stats.Groups = len(groups)

	whereConditions := []string{"1=1", BasePredicate}
	if len(groups) > 0 {
		whereConditions = append(whereConditions, "("+strings.Join(groups, " OR ")+")")
	}
	where := "\nWHERE " + strings.Join(whereConditions, "\n  AND ")

	if mode == ModeCount {
		return Query{SQL: "SELECT COUNT(*) FROM subscribers s" + where, Args: args}, stats
	}

	sql := "SELECT " + listColumns + " FROM subscribers s" + where + "\nORDER BY s.id"
	if page.Limit > 0 {
		args = append(args, page.Limit)
		sql += " LIMIT $" + strconv.Itoa(len(args))
	}
	if page.Offset > 0 {
		args = append(args, page.Offset)
		sql += " OFFSET $" + strconv.Itoa(len(args))
	}
	return Query{SQL: sql, Args: args}, stats
}

func (c *Composer) compile(ctx context.Context, cond domain.FilterCondition, aud *Audience) (Predicate, bool) {
	s, ok := c.registry.Get(cond.Type)
	if !ok || !s.Validate(cond) {
		return Predicate{}, false
	}
	return s.Compile(ctx, cond, aud)
}
