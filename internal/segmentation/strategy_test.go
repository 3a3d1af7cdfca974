package segmentation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry([]string{"completed"})

	s, ok := r.Get(TypeTag)
	require.True(t, ok)
	assert.Equal(t, TypeTag, s.Type())

	_, ok = r.Get("no_such_type")
	assert.False(t, ok)
}

func TestRegistryTypesSorted(t *testing.T) {
	types := DefaultRegistry(nil).Types()

	names := make([]string, len(types))
	for i, ti := range types {
		names[i] = ti.Type
	}
	assert.Equal(t, []string{TypeAddress, TypeBindingStatus, TypePurchase, TypeTag, TypeTagCount}, names)
	assert.Equal(t, "Has all of", types[3].Operators[1].Label)
}

func TestTagOperators(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		op     string
		prefix string
	}{
		{OpAnyOf, "EXISTS (SELECT 1 FROM subscriber_tags"},
		{OpAllOf, "NOT EXISTS (SELECT 1 FROM unnest($1::text[])"},
		{OpNoneOf, "NOT EXISTS (SELECT 1 FROM subscriber_tags"},
		{OpNotAllOf, "NOT (NOT EXISTS (SELECT 1 FROM unnest($1::text[])"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			p, ok := TagStrategy{}.Compile(ctx, cond(TypeTag, tt.op, []string{"vip", "vip", " gold "}), nil)
			require.True(t, ok)
			assert.Contains(t, p.SQL, tt.prefix)
			require.Len(t, p.Args, 1)
		})
	}
}

func TestStringListDeduplicatesAndNormalizes(t *testing.T) {
	got, ok := stringList([]byte(`["a", " a ", 7, "7", "b"]`))
	require.True(t, ok)
	assert.Equal(t, []string{"a", "7", "b"}, got)

	_, ok = stringList([]byte(`["a", ""]`))
	assert.False(t, ok)
	_, ok = stringList([]byte(`"a"`))
	assert.False(t, ok)
}

func TestAddressEscapesWildcards(t *testing.T) {
	p, ok := AddressStrategy{}.Compile(context.Background(), cond(TypeAddress, OpContains, "100%_ok"), nil)
	require.True(t, ok)
	assert.Equal(t, []interface{}{`%100\%\_ok%`}, p.Args)
}

func TestTagCountValidation(t *testing.T) {
	s := TagCountStrategy{}
	assert.True(t, s.Validate(cond(TypeTagCount, OpEq, map[string]interface{}{"tag_name": "x", "count": 0})))
	assert.False(t, s.Validate(cond(TypeTagCount, OpEq, map[string]interface{}{"tag_name": "x", "count": -1})))
	assert.False(t, s.Validate(cond(TypeTagCount, "between", map[string]interface{}{"tag_name": "x", "count": 1})))
	assert.False(t, s.Validate(cond(TypeTagCount, OpLt, map[string]interface{}{"count": 1})))
}

func TestTagCountCountsRepeatedRows(t *testing.T) {
	p, ok := TagCountStrategy{}.Compile(context.Background(),
		cond(TypeTagCount, OpGte, map[string]interface{}{"tag_name": "visit", "count": 2}), nil)
	require.True(t, ok)
	assert.Equal(t,
		"(SELECT COUNT(*) FROM subscriber_tags st WHERE st.subscriber_id = s.id AND st.tag_name = $1) >= $2",
		p.SQL, "every tagging row counts, not distinct tag names")
	assert.Equal(t, []interface{}{"visit", 2}, p.Args)
}

func TestBindingStatusNotEquals(t *testing.T) {
	p, ok := BindingStatusStrategy{}.Compile(context.Background(), cond(TypeBindingStatus, OpNotEquals, "unbound"), nil)
	require.True(t, ok)
	assert.Equal(t, "COALESCE(s.binding_status, 'unbound') <> $1", p.SQL)
	assert.Equal(t, []interface{}{"unbound"}, p.Args)
}
