package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/memstore"
	"github.com/roach88/widetriple/internal/query"
	"github.com/roach88/widetriple/internal/rowmap"
	"github.com/roach88/widetriple/internal/testutil"
	"github.com/roach88/widetriple/internal/widecol"
)

var (
	s1 = ir.IRI("http://example.org/s1")
	s2 = ir.IRI("http://example.org/s2")
	p  = ir.IRI("http://example.org/p")
	q  = ir.IRI("http://example.org/q")
	o1 = ir.NewLiteral("o1")
	o2 = ir.NewLiteral("o2")
)

type fixture struct {
	rec    *testutil.RecordingBackend
	client *widecol.Client
	m      *Maintainer
}

func newFixture(t *testing.T, dirs ...Direction) *fixture {
	t.Helper()
	rec := testutil.NewRecordingBackend(memstore.New())
	client, err := widecol.NewClient(rec, widecol.WithClock(testutil.NewDeterministicClock()))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	m, err := New(client, query.New(client, []string{"RDF"}), dirs, Families{})
	require.NoError(t, err)
	return &fixture{rec: rec, client: client, m: m}
}

// insert writes triples and their index entries in one batch.
func (f *fixture) insert(t *testing.T, triples ...ir.Triple) {
	t.Helper()
	mm := widecol.MutationMap{}
	for _, tr := range triples {
		ts := f.client.Clock().Now()
		_, err := rowmap.AppendInsert(mm, "RDF", tr, ts)
		require.NoError(t, err)
		f.m.AppendInsert(mm, tr, ts)
	}
	require.NoError(t, f.client.BatchMutate(context.Background(), mm))
}

// deletePrimary removes triples from the primary family only.
func (f *fixture) deletePrimary(t *testing.T, triples ...ir.Triple) {
	t.Helper()
	mm := widecol.MutationMap{}
	for _, tr := range triples {
		enc, err := rowmap.Encode(tr)
		require.NoError(t, err)
		mm.Add(enc.RowKey, "RDF", enc.DeleteMutation(f.client.Clock().Now()))
	}
	require.NoError(t, f.client.BatchMutate(context.Background(), mm))
}

func (f *fixture) delete(t *testing.T, tr ir.Triple) []Direction {
	t.Helper()
	f.deletePrimary(t, tr)
	removed, err := f.m.Delete(context.Background(), tr)
	require.NoError(t, err)
	return removed
}

func (f *fixture) has(t *testing.T, d Direction, term ir.Term) bool {
	t.Helper()
	ok, err := f.m.HasMember(context.Background(), d, term)
	require.NoError(t, err)
	return ok
}

func TestParseDirection(t *testing.T) {
	for _, in := range []string{"ps", "OS", " op "} {
		_, err := ParseDirection(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseDirection("sp")
	assert.Error(t, err)
}

func TestDirection_Components(t *testing.T) {
	tr := ir.NewTriple(s1, p, o1)

	assert.Equal(t, ir.Term(p), PS.Indexed(tr))
	assert.Equal(t, ir.Term(s1), PS.Related(tr))
	assert.Equal(t, ir.Term(o1), OS.Indexed(tr))
	assert.Equal(t, ir.Term(s1), OS.Related(tr))
	assert.Equal(t, ir.Term(o1), OP.Indexed(tr))
	assert.Equal(t, ir.Term(p), OP.Related(tr))

	assert.Equal(t, ir.Pattern{Subject: s1, Predicate: p}, PS.Justifying(p, s1))
	assert.Equal(t, ir.Pattern{Subject: s1, Object: o1}, OS.Justifying(o1, s1))
	assert.Equal(t, ir.Pattern{Predicate: p, Object: o1}, OP.Justifying(o1, p))
}

func TestNew_Validation(t *testing.T) {
	client, err := widecol.NewClient(memstore.New())
	require.NoError(t, err)
	engine := query.New(client, []string{"RDF"})

	_, err = New(client, engine, []Direction{"xx"}, Families{})
	assert.Error(t, err)

	_, err = New(client, engine, []Direction{PS}, Families{Predicate: "RDF"})
	assert.Error(t, err, "index family may not be a primary family")

	m, err := New(client, engine, []Direction{OS, PS, OS, OP}, Families{})
	require.NoError(t, err)
	assert.Equal(t, []Direction{OS, PS, OP}, m.Directions())
	assert.Equal(t, []string{"RDFObjectIndex", "RDFPredicateIndex"}, m.IndexFamilies())
	assert.Equal(t, DefaultFamilies, m.Families())
}

func TestAppendInsert_Layout(t *testing.T) {
	f := newFixture(t, PS, OS, OP)
	tr := ir.NewTriple(s1, p, o1)
	f.insert(t, tr)
	ctx := context.Background()

	pKey := ir.TermHash(p)
	info, err := f.client.Get(ctx, pKey, widecol.ColumnPath{ColumnFamily: "RDFPredicateIndex", SuperColumn: InfoColumn, Column: pKey})
	require.NoError(t, err)
	assert.Equal(t, "<http://example.org/p>", string(info.Column.Value))

	ps, err := f.client.Get(ctx, pKey, widecol.ColumnPath{ColumnFamily: "RDFPredicateIndex", SuperColumn: "ps", Column: ir.TermHash(s1)})
	require.NoError(t, err)
	assert.Equal(t, "<http://example.org/s1>", string(ps.Column.Value))

	oKey := ir.TermHash(o1)
	row, err := f.client.GetSlice(ctx, oKey, widecol.ColumnParent{ColumnFamily: "RDFObjectIndex"}, widecol.AllColumns())
	require.NoError(t, err)
	var names []string
	for _, c := range row {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"info", "op", "os"}, names)
}

func TestIndexConsistency_PredicateMembership(t *testing.T) {
	f := newFixture(t, PS)
	a := ir.NewTriple(s1, p, o1)
	b := ir.NewTriple(s2, p, o2)
	f.insert(t, a, b)

	assert.True(t, f.has(t, PS, p))

	assert.Equal(t, []Direction{PS}, f.delete(t, a))
	assert.True(t, f.has(t, PS, p), "s2 still justifies p")

	f.delete(t, b)
	assert.False(t, f.has(t, PS, p))

	info, err := f.client.GetCount(context.Background(), ir.TermHash(p), widecol.ColumnParent{ColumnFamily: "RDFPredicateIndex", SuperColumn: InfoColumn})
	require.NoError(t, err)
	assert.Equal(t, 1, info, "info is never removed")
}

func TestDelete_RetainsJustifiedMembership(t *testing.T) {
	f := newFixture(t, PS, OS)
	f.insert(t, ir.NewTriple(s1, p, o1), ir.NewTriple(s1, p, o2))

	removed := f.delete(t, ir.NewTriple(s1, p, o1))

	assert.Equal(t, []Direction{OS}, removed, "(s1,p,o2) keeps s1 in ps(p)")
	assert.True(t, f.has(t, PS, p))
	assert.False(t, f.has(t, OS, o1))
	assert.True(t, f.has(t, OS, o2))
}

func TestDelete_ObjectPredicateMembership(t *testing.T) {
	f := newFixture(t, OP)
	f.insert(t, ir.NewTriple(s1, p, o1), ir.NewTriple(s2, p, o1), ir.NewTriple(s1, q, o1))

	f.delete(t, ir.NewTriple(s1, p, o1))
	members, err := f.m.Members(context.Background(), OP, o1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []ir.Term{p, q}, members)

	f.delete(t, ir.NewTriple(s2, p, o1))
	members, err = f.m.Members(context.Background(), OP, o1)
	require.NoError(t, err)
	assert.Equal(t, []ir.Term{q}, members)
}

func TestDelete_UsesCallerConsistency(t *testing.T) {
	f := newFixture(t, PS)
	tr := ir.NewTriple(s1, p, o1)
	f.insert(t, tr)
	f.deletePrimary(t, tr)
	f.rec.Reset()

	_, err := f.m.Delete(context.Background(), tr, widecol.WithConsistency(widecol.Quorum))
	require.NoError(t, err)

	calls := f.rec.Calls()
	require.NotEmpty(t, calls)
	for _, c := range calls {
		assert.Equal(t, widecol.Quorum, c.Level, "call %s", c.Op)
	}
	assert.Len(t, f.rec.CallsTo(testutil.OpBatchMutate), 1)
}

func TestDelete_NoDirectionsIsNoop(t *testing.T) {
	f := newFixture(t)
	removed, err := f.m.Delete(context.Background(), ir.NewTriple(s1, p, o1))
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Empty(t, f.rec.Calls())
}

func TestHasMember_DisabledDirection(t *testing.T) {
	f := newFixture(t, PS)
	_, err := f.m.HasMember(context.Background(), OS, o1)
	assert.Error(t, err)
	_, err = f.m.Members(context.Background(), OP, o1)
	assert.Error(t, err)
}

func TestAudit(t *testing.T) {
	f := newFixture(t, PS, OS, OP)
	ctx := context.Background()
	f.insert(t, ir.NewTriple(s1, p, o1), ir.NewTriple(s2, p, o2))

	report, err := f.m.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "drift: %v", report.Drift)
	assert.Equal(t, 2, report.Triples)
	assert.Equal(t, 6, report.Memberships)

	// Primary delete without index maintenance leaves stale memberships.
	f.deletePrimary(t, ir.NewTriple(s1, p, o1))
	// Primary insert without index maintenance leaves missing memberships.
	mm := widecol.MutationMap{}
	_, err = rowmap.AppendInsert(mm, "RDF", ir.NewTriple(s2, q, o2), f.client.Clock().Now())
	require.NoError(t, err)
	require.NoError(t, f.client.BatchMutate(ctx, mm))

	report, err = f.m.Audit(ctx)
	require.NoError(t, err)

	var stale, missing []string
	for _, d := range report.Drift {
		switch d.Kind {
		case Stale:
			stale = append(stale, string(d.Direction))
		case Missing:
			missing = append(missing, string(d.Direction))
		}
	}
	// s1 lost its only triple: ps(p)∋s1, os(o1)∋s1 and op(o1)∋p are stale.
	assert.ElementsMatch(t, []string{"ps", "os", "op"}, stale)
	// (s2,q,o2) was never indexed; os(o2)∋s2 is still justified by (s2,p,o2).
	assert.ElementsMatch(t, []string{"ps", "op"}, missing)
}
