package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/widetriple/internal/testutil"
	"github.com/roach88/widetriple/internal/widecol"
)

// createTestStore opens a store in a fresh temp directory.
func createTestStore(t *testing.T, keyspace string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, keyspace)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_BackendSuite(t *testing.T) {
	testutil.RunBackendSuite(t, func(t *testing.T) widecol.Backend {
		return createTestStore(t, "RDF")
	})
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t, "")
	assert.Equal(t, DefaultKeyspace, s.Keyspace())

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(path, "RDF")
	require.NoError(t, err)
	mm := widecol.MutationMap{}
	mm.Add("s", "RDF", widecol.InsertColumn(widecol.Column{Name: "p", Value: []byte("v"), Timestamp: 1}))
	require.NoError(t, s.BatchMutate(ctx, mm, widecol.One))
	require.NoError(t, s.Close())

	s, err = Open(path, "RDF")
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "s", widecol.ColumnPath{ColumnFamily: "RDF", Column: "p"}, widecol.One)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got.Column.Value)
}

func TestOpen_RefusesNewerLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path, "RDF")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestStore_KeyspacesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	a, err := Open(path, "A")
	require.NoError(t, err)
	mm := widecol.MutationMap{}
	mm.Add("s", "RDF", widecol.InsertColumn(widecol.Column{Name: "p", Value: []byte("a"), Timestamp: 1}))
	require.NoError(t, a.BatchMutate(ctx, mm, widecol.One))
	require.NoError(t, a.Close())

	b, err := Open(path, "B")
	require.NoError(t, err)
	defer b.Close()

	rows, err := b.GetRangeSlices(ctx, widecol.ColumnParent{ColumnFamily: "RDF"}, widecol.AllColumns(), widecol.KeyRange{}, widecol.One)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_ByteOrderedKeys(t *testing.T) {
	s := createTestStore(t, "RDF")
	ctx := context.Background()

	mm := widecol.MutationMap{}
	for _, k := range []string{"b", "B", "_:x", "http://a", "\xff"} {
		mm.Add(k, "RDF", widecol.InsertColumn(widecol.Column{Name: "p", Value: []byte(k), Timestamp: 1}))
	}
	require.NoError(t, s.BatchMutate(ctx, mm, widecol.One))

	rows, err := s.GetRangeSlices(ctx, widecol.ColumnParent{ColumnFamily: "RDF"}, widecol.AllColumns(), widecol.KeyRange{}, widecol.One)
	require.NoError(t, err)
	var keys []string
	for _, r := range rows {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"B", "_:x", "b", "http://a", "\xff"}, keys)
}

func TestStore_BatchIsAtomic(t *testing.T) {
	s := createTestStore(t, "RDF")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mm := widecol.MutationMap{}
	mm.Add("s", "RDF", widecol.InsertColumn(widecol.Column{Name: "p", Value: []byte("v"), Timestamp: 1}))
	require.Error(t, s.BatchMutate(ctx, mm, widecol.One))

	rows, err := s.GetRangeSlices(context.Background(), widecol.ColumnParent{ColumnFamily: "RDF"}, widecol.AllColumns(), widecol.KeyRange{}, widecol.One)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
