package widecol

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mutateBackend records BatchMutate calls and answers Get from a fixed map.
type mutateBackend struct {
	rangeBackend
	batches []MutationMap
	cells   map[string]Column
}

func (b *mutateBackend) Get(_ context.Context, key string, path ColumnPath, _ ConsistencyLevel) (ColumnOrSuperColumn, error) {
	c, ok := b.cells[key+"/"+path.Column]
	if !ok {
		return ColumnOrSuperColumn{}, ErrNotFound
	}
	return ColumnOrSuperColumn{Column: &c}, nil
}

func (b *mutateBackend) BatchMutate(_ context.Context, mm MutationMap, _ ConsistencyLevel) error {
	b.batches = append(b.batches, mm)
	return nil
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&mutateBackend{}, WithDefaultConsistency(ConsistencyLevel(42)))
	assert.ErrorIs(t, err, ErrInvalidConsistency)

	_, err = NewClient(&mutateBackend{}, WithDefaultSliceSize(0))
	assert.Error(t, err)

	c, err := NewClient(&mutateBackend{})
	require.NoError(t, err)
	assert.Equal(t, One, c.Consistency())
	assert.Equal(t, DefaultSliceSize, c.SliceSize())
	assert.NotNil(t, c.Clock())
}

func TestClient_Lookup(t *testing.T) {
	b := &mutateBackend{cells: map[string]Column{"s/p": {Name: "p", Value: []byte("v")}}}
	c := newTestClient(t, b)
	ctx := context.Background()

	got, ok, err := c.Lookup(ctx, "s", ColumnPath{ColumnFamily: "RDF", Column: "p"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got.Column.Value)

	_, ok, err = c.Lookup(ctx, "s", ColumnPath{ColumnFamily: "RDF", Column: "missing"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Get(ctx, "s", ColumnPath{ColumnFamily: "RDF", Column: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Get(ctx, "s", ColumnPath{ColumnFamily: "RDF", Column: "p"}, WithConsistency(Any))
	assert.ErrorIs(t, err, ErrInvalidConsistency)
}

func TestClient_BatchMutate(t *testing.T) {
	b := &mutateBackend{}
	c := newTestClient(t, b)
	ctx := context.Background()

	require.NoError(t, c.BatchMutate(ctx, MutationMap{}))
	assert.Empty(t, b.batches, "empty map issues no call")

	bad := MutationMap{}
	bad.Add("s", "RDF", Mutation{})
	assert.ErrorIs(t, c.BatchMutate(ctx, bad), ErrInvalidMutation)
	assert.Empty(t, b.batches)

	ok := MutationMap{}
	ok.Add("s", "RDF", InsertColumn(Column{Name: "p", Value: []byte("v"), Timestamp: 1}))
	require.NoError(t, c.BatchMutate(ctx, ok, WithConsistency(Any)), "writes accept ANY")
	assert.Len(t, b.batches, 1)
}

func TestClient_Insert(t *testing.T) {
	b := &mutateBackend{}
	c := newTestClient(t, b, WithClock(NewLogicalClockAt(41)))

	err := c.Insert(context.Background(), "RDF", "s", Row{
		Columns: map[string][]byte{"b": []byte("2"), "a": []byte("1")},
		SuperColumns: map[string]map[string][]byte{
			"p": {"h2": []byte("y"), "h1": []byte("x")},
		},
	})
	require.NoError(t, err)
	require.Len(t, b.batches, 1)

	muts := b.batches[0]["s"]["RDF"]
	require.Len(t, muts, 3)
	assert.Equal(t, "a", muts[0].ColumnOrSuperColumn.Column.Name)
	assert.Equal(t, "b", muts[1].ColumnOrSuperColumn.Column.Name)
	sc := muts[2].ColumnOrSuperColumn.SuperColumn
	require.NotNil(t, sc)
	assert.Equal(t, []Column{
		{Name: "h1", Value: []byte("x"), Timestamp: 42},
		{Name: "h2", Value: []byte("y"), Timestamp: 42},
	}, sc.Columns)
}

func TestClient_Remove(t *testing.T) {
	b := &mutateBackend{}
	c := newTestClient(t, b, WithClock(NewLogicalClock()))
	ctx := context.Background()

	require.NoError(t, c.Remove(ctx, "RDF", "s", nil))
	require.NoError(t, c.Remove(ctx, "RDF", "s", &ColumnPath{SuperColumn: "p"}))
	require.NoError(t, c.Remove(ctx, "RDF", "s", &ColumnPath{SuperColumn: "p", Column: "h1"}))
	require.Len(t, b.batches, 3)

	row := b.batches[0]["s"]["RDF"][0].Deletion
	assert.Equal(t, &Deletion{Timestamp: 1}, row)

	super := b.batches[1]["s"]["RDF"][0].Deletion
	assert.Equal(t, &Deletion{Timestamp: 2, SuperColumn: "p"}, super)

	sub := b.batches[2]["s"]["RDF"][0].Deletion
	assert.Equal(t, "p", sub.SuperColumn)
	assert.Equal(t, []string{"h1"}, sub.Predicate.ColumnNames)
}

func TestMutationMap(t *testing.T) {
	a := MutationMap{}
	a.Add("s1", "RDF", InsertColumn(Column{Name: "p"}))
	b := MutationMap{}
	b.Add("s1", "RDF", DeleteRow(1))
	b.Add("s2", "Index", DeleteRow(1))

	a.Merge(b)
	assert.Equal(t, 3, a.Len())
	assert.Len(t, a["s1"]["RDF"], 2)
	assert.NoError(t, a.Validate())

	both := Mutation{ColumnOrSuperColumn: &ColumnOrSuperColumn{Column: &Column{}}, Deletion: &Deletion{}}
	assert.ErrorIs(t, both.Validate(), ErrInvalidMutation)

	rng := ByRange("a", "z", 0)
	byRange := Mutation{Deletion: &Deletion{Predicate: &rng}}
	assert.ErrorIs(t, byRange.Validate(), ErrInvalidMutation)
}
