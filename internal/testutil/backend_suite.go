package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/widetriple/internal/widecol"
)

// BackendFactory opens a fresh, empty backend for one subtest.
type BackendFactory func(t *testing.T) widecol.Backend

// RunBackendSuite checks the semantics every widecol.Backend must share.
// Each subtest gets its own backend from open.
func RunBackendSuite(t *testing.T, open BackendFactory) {
	t.Helper()
	ctx := context.Background()
	one := widecol.One

	mutate := func(t *testing.T, b widecol.Backend, key, family string, muts ...widecol.Mutation) {
		t.Helper()
		mm := widecol.MutationMap{}
		mm.Add(key, family, muts...)
		require.NoError(t, b.BatchMutate(ctx, mm, one))
	}
	col := func(name, value string, ts int64) widecol.Column {
		return widecol.Column{Name: name, Value: []byte(value), Timestamp: ts}
	}
	super := func(name string, cols ...widecol.Column) widecol.Mutation {
		return widecol.InsertSuperColumn(widecol.SuperColumn{Name: name, Columns: cols})
	}

	t.Run("get paths", func(t *testing.T) {
		b := open(t)
		mutate(t, b, "s", "RDF",
			widecol.InsertColumn(col("bare", "v", 1)),
			super("p", col("h2", "y", 1), col("h1", "x", 1)),
		)

		got, err := b.Get(ctx, "s", widecol.ColumnPath{ColumnFamily: "RDF", Column: "bare"}, one)
		require.NoError(t, err)
		require.NotNil(t, got.Column)
		assert.Equal(t, []byte("v"), got.Column.Value)

		got, err = b.Get(ctx, "s", widecol.ColumnPath{ColumnFamily: "RDF", SuperColumn: "p"}, one)
		require.NoError(t, err)
		require.NotNil(t, got.SuperColumn)
		assert.Equal(t, []widecol.Column{col("h1", "x", 1), col("h2", "y", 1)}, got.SuperColumn.Columns)

		got, err = b.Get(ctx, "s", widecol.ColumnPath{ColumnFamily: "RDF", SuperColumn: "p", Column: "h2"}, one)
		require.NoError(t, err)
		assert.Equal(t, []byte("y"), got.Column.Value)

		for _, path := range []widecol.ColumnPath{
			{ColumnFamily: "RDF", Column: "nope"},
			{ColumnFamily: "RDF", SuperColumn: "p", Column: "nope"},
			{ColumnFamily: "RDF", SuperColumn: "bare"},
			{ColumnFamily: "Other", Column: "bare"},
		} {
			_, err := b.Get(ctx, "s", path, one)
			assert.ErrorIs(t, err, widecol.ErrNotFound, "path %+v", path)
		}
		_, err = b.Get(ctx, "missing", widecol.ColumnPath{ColumnFamily: "RDF", Column: "bare"}, one)
		assert.ErrorIs(t, err, widecol.ErrNotFound)
	})

	t.Run("last write wins", func(t *testing.T) {
		b := open(t)
		mutate(t, b, "s", "RDF", super("p", col("h", "new", 10)))
		mutate(t, b, "s", "RDF", super("p", col("h", "stale", 5)))
		mutate(t, b, "s", "RDF", widecol.InsertColumn(col("c", "first", 3)))
		mutate(t, b, "s", "RDF", widecol.InsertColumn(col("c", "same-stamp", 3)))

		got, err := b.Get(ctx, "s", widecol.ColumnPath{ColumnFamily: "RDF", SuperColumn: "p", Column: "h"}, one)
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), got.Column.Value)

		got, err = b.Get(ctx, "s", widecol.ColumnPath{ColumnFamily: "RDF", Column: "c"}, one)
		require.NoError(t, err)
		assert.Equal(t, []byte("same-stamp"), got.Column.Value)
	})

	t.Run("deletion respects timestamps", func(t *testing.T) {
		b := open(t)
		mutate(t, b, "s", "RDF", super("p", col("old", "a", 1), col("new", "b", 9)))
		mutate(t, b, "s", "RDF", widecol.DeleteSuperColumn(5, "p"))

		got, err := b.GetSlice(ctx, "s", widecol.ColumnParent{ColumnFamily: "RDF", SuperColumn: "p"}, widecol.AllColumns(), one)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "new", got[0].Column.Name)
	})

	t.Run("sub-column deletion", func(t *testing.T) {
		b := open(t)
		mutate(t, b, "s", "RDF", super("p", col("h1", "x", 1), col("h2", "y", 1)))
		mutate(t, b, "s", "RDF", widecol.DeleteColumns(2, "p", "h1"))

		n, err := b.GetCount(ctx, "s", widecol.ColumnParent{ColumnFamily: "RDF", SuperColumn: "p"}, one)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		mutate(t, b, "s", "RDF", widecol.DeleteColumns(3, "p", "h2"))
		_, err = b.Get(ctx, "s", widecol.ColumnPath{ColumnFamily: "RDF", SuperColumn: "p"}, one)
		assert.ErrorIs(t, err, widecol.ErrNotFound, "emptied super column disappears")
	})

	t.Run("row deletion keeps a tombstone key", func(t *testing.T) {
		b := open(t)
		mutate(t, b, "a", "RDF", widecol.InsertColumn(col("p", "1", 1)))
		mutate(t, b, "b", "RDF", super("p", col("h", "2", 1)))
		mutate(t, b, "a", "RDF", widecol.DeleteRow(2))

		rows, err := b.GetRangeSlices(ctx, widecol.ColumnParent{ColumnFamily: "RDF"}, widecol.AllColumns(), widecol.KeyRange{}, one)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "a", rows[0].Key)
		assert.Empty(t, rows[0].Columns)
		assert.Equal(t, "b", rows[1].Key)
		assert.Len(t, rows[1].Columns, 1)

		n, err := b.GetCount(ctx, "a", widecol.ColumnParent{ColumnFamily: "RDF"}, one)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("range scan order and bounds", func(t *testing.T) {
		b := open(t)
		mm := widecol.MutationMap{}
		for _, k := range []string{"d", "a", "c", "b", "e"} {
			mm.Add(k, "RDF", widecol.InsertColumn(col("p", k, 1)))
		}
		mm.Add("c", "Index", widecol.InsertColumn(col("p", "other family", 1)))
		require.NoError(t, b.BatchMutate(ctx, mm, one))

		keys := func(kr widecol.KeyRange) []string {
			rows, err := b.GetRangeSlices(ctx, widecol.ColumnParent{ColumnFamily: "RDF"}, widecol.AllColumns(), kr, one)
			require.NoError(t, err)
			var out []string
			for _, r := range rows {
				out = append(out, r.Key)
			}
			return out
		}
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, keys(widecol.KeyRange{}))
		assert.Equal(t, []string{"b", "c"}, keys(widecol.KeyRange{StartKey: "b", Count: 2}))
		assert.Equal(t, []string{"b", "c", "d"}, keys(widecol.KeyRange{StartKey: "b", EndKey: "d"}))
		assert.Equal(t, []string{"e"}, keys(widecol.KeyRange{StartKey: "dd"}))
		assert.Empty(t, keys(widecol.KeyRange{StartKey: "f"}))

		rows, err := b.GetRangeSlices(ctx, widecol.ColumnParent{ColumnFamily: "Index"}, widecol.AllColumns(), widecol.KeyRange{}, one)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "c", rows[0].Key)
	})

	t.Run("slice predicates", func(t *testing.T) {
		b := open(t)
		mutate(t, b, "s", "RDF",
			widecol.InsertColumn(col("c", "3", 1)),
			widecol.InsertColumn(col("a", "1", 1)),
			super("b", col("y", "2y", 1), col("x", "2x", 1)),
		)
		parent := widecol.ColumnParent{ColumnFamily: "RDF"}

		all, err := b.GetSlice(ctx, "s", parent, widecol.AllColumns(), one)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "a", all[0].Name())
		assert.NotNil(t, all[1].SuperColumn)
		assert.Equal(t, "c", all[2].Name())

		named, err := b.GetSlice(ctx, "s", parent, widecol.ByNames("c", "zzz"), one)
		require.NoError(t, err)
		require.Len(t, named, 1)
		assert.Equal(t, "c", named[0].Name())

		ranged, err := b.GetSlice(ctx, "s", parent, widecol.ByRange("b", "", 1), one)
		require.NoError(t, err)
		require.Len(t, ranged, 1)
		assert.Equal(t, "b", ranged[0].Name())

		sub, err := b.GetSlice(ctx, "s", widecol.ColumnParent{ColumnFamily: "RDF", SuperColumn: "b"}, widecol.ByNames("y"), one)
		require.NoError(t, err)
		require.Len(t, sub, 1)
		assert.Equal(t, []byte("2y"), sub[0].Column.Value)

		n, err := b.GetCount(ctx, "s", parent, one)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		missing, err := b.GetSlice(ctx, "nobody", parent, widecol.AllColumns(), one)
		require.NoError(t, err)
		assert.Empty(t, missing)
	})

	t.Run("shape replacement", func(t *testing.T) {
		b := open(t)
		mutate(t, b, "s", "RDF", widecol.InsertColumn(col("p", "legacy", 1)))
		mutate(t, b, "s", "RDF", super("p", col("h", "multi", 2)))

		got, err := b.Get(ctx, "s", widecol.ColumnPath{ColumnFamily: "RDF", Column: "p"}, one)
		require.NoError(t, err)
		require.NotNil(t, got.SuperColumn)
		assert.Nil(t, got.Column)
		assert.Len(t, got.SuperColumn.Columns, 1)
	})

	t.Run("batch spans rows and families", func(t *testing.T) {
		b := open(t)
		mm := widecol.MutationMap{}
		mm.Add("s1", "RDF", super("p", col("h", "1", 1)))
		mm.Add("s2", "RDF", super("p", col("h", "2", 1)))
		mm.Add("k", "Index", super("info", col("h", "p", 1)))
		require.NoError(t, b.BatchMutate(ctx, mm, widecol.Any))

		for _, probe := range []struct{ family, key string }{{"RDF", "s1"}, {"RDF", "s2"}, {"Index", "k"}} {
			n, err := b.GetCount(ctx, probe.key, widecol.ColumnParent{ColumnFamily: probe.family}, one)
			require.NoError(t, err)
			assert.Equal(t, 1, n, "%s/%s", probe.family, probe.key)
		}
	})

	t.Run("returned values are copies", func(t *testing.T) {
		b := open(t)
		mutate(t, b, "s", "RDF", widecol.InsertColumn(col("p", "abc", 1)))

		got, err := b.Get(ctx, "s", widecol.ColumnPath{ColumnFamily: "RDF", Column: "p"}, one)
		require.NoError(t, err)
		got.Column.Value[0] = 'X'

		again, err := b.Get(ctx, "s", widecol.ColumnPath{ColumnFamily: "RDF", Column: "p"}, one)
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), again.Column.Value)
	})
}
