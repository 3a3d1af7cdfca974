package segmentation

import (
	"fmt"
	"regexp"
	"strconv"
)

// Operator names accepted in FilterCondition.Operator.
const (
	OpEquals     = "equals"
	OpNotEquals  = "not_equals"
	OpAnyOf      = "any_of"
	OpAllOf      = "all_of"
	OpNoneOf     = "none_of"
	OpNotAllOf   = "not_all_of"
	OpContains   = "contains"
	OpNotContain = "not_contains"
	OpGte        = "gte"
	OpLte        = "lte"
	OpEq         = "eq"
	OpGt         = "gt"
	OpLt         = "lt"
)

// Condition types registered by DefaultRegistry.
const (
	TypeBindingStatus = "binding_status"
	TypeTag           = "tag"
	TypePurchase      = "purchase"
	TypeAddress       = "address"
	TypeTagCount      = "tag_count"
)

// OperatorInfo describes an operator for the condition-type catalogue.
type OperatorInfo struct {
	Operator string `json:"operator"`
	Label    string `json:"label"`
}

var operatorLabels = map[string]string{
	OpEquals:     "Equals",
	OpNotEquals:  "Does not equal",
	OpAnyOf:      "Has any of",
	OpAllOf:      "Has all of",
	OpNoneOf:     "Has none of",
	OpNotAllOf:   "Does not have all of",
	OpContains:   "Contains",
	OpNotContain: "Does not contain",
	OpGte:        "At least",
	OpLte:        "At most",
	OpEq:         "Exactly",
	OpGt:         "More than",
	OpLt:         "Fewer than",
}

// Predicate is a SQL boolean expression over the subscriber alias "s".
// Placeholders are numbered locally from $1; the composer renumbers them when
// several predicates end up in one statement.
type Predicate struct {
	SQL  string
	Args []interface{}
}

// Mode selects the shape of the composed statement.
type Mode int

const (
	ModeList Mode = iota
	ModeCount
)

// Page bounds a list query. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

// Query is a ready-to-run statement.
type Query struct {
	SQL  string
	Args []interface{}
}

// argList hands out local placeholders in the order values are bound.
type argList struct {
	args []interface{}
}

func (a *argList) next(v interface{}) string {
	a.args = append(a.args, v)
	return "$" + strconv.Itoa(len(a.args))
}

func (a *argList) predicate(format string, params ...interface{}) Predicate {
	return Predicate{SQL: fmt.Sprintf(format, params...), Args: a.args}
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// rebase shifts every $n in sql by offset.
func rebase(sql string, offset int) string {
	if offset == 0 {
		return sql
	}
	return placeholderRe.ReplaceAllStringFunc(sql, func(m string) string {
		n, _ := strconv.Atoi(m[1:])
		return "$" + strconv.Itoa(n+offset)
	})
}
