package widecol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func TestApplyPredicate(t *testing.T) {
	cols := []Column{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}, {Name: "e"}}

	tests := []struct {
		name string
		pred SlicePredicate
		want []string
	}{
		{"all", AllColumns(), []string{"a", "b", "c", "d", "e"}},
		{"names keep store order", ByNames("d", "b", "zz", "b"), []string{"b", "d"}},
		{"closed range", ByRange("b", "d", 0), []string{"b", "c", "d"}},
		{"open start", ByRange("", "b", 0), []string{"a", "b"}},
		{"open finish with count", ByRange("c", "", 2), []string{"c", "d"}},
		{"range between names", ByRange("bb", "cc", 0), []string{"c"}},
		{"reversed", SlicePredicate{SliceRange: &SliceRange{Start: "d", Finish: "b", Reversed: true}}, []string{"d", "c", "b"}},
		{"reversed open with count", SlicePredicate{SliceRange: &SliceRange{Reversed: true, Count: 2}}, []string{"e", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(ApplyPredicate(cols, ColumnName, tt.pred)))
		})
	}
}

func TestInKeyRange(t *testing.T) {
	assert.True(t, InKeyRange("b", KeyRange{StartKey: "b"}))
	assert.False(t, InKeyRange("a", KeyRange{StartKey: "b"}))
	assert.True(t, InKeyRange("c", KeyRange{StartKey: "b", EndKey: "c"}))
	assert.False(t, InKeyRange("d", KeyRange{StartKey: "b", EndKey: "c"}))
	assert.True(t, InKeyRange("zzz", KeyRange{}))
}

func TestSuperColumn_HasColumn(t *testing.T) {
	sc := SuperColumn{Name: "info", Columns: []Column{{Name: "h1", Value: []byte("x")}}}
	assert.True(t, sc.HasColumn("h1"))
	assert.False(t, sc.HasColumn("h2"))
	c, ok := sc.Column("h1")
	assert.True(t, ok)
	assert.Equal(t, []byte("x"), c.Value)
	assert.Equal(t, "info", ColumnOrSuperColumn{SuperColumn: &sc}.Name())
}
