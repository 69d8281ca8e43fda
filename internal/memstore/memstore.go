// Package memstore is an ordered, in-memory widecol.Backend.
//
// Rows live in a B-tree ordered by (column family, row key), so range scans
// walk keys in byte order the way an order-preserving partitioner does.
// Column names are sorted on read. It backs the "memory:" server scheme and
// most tests.
package memstore

import (
	"bytes"
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/google/btree"

	"github.com/roach88/widetriple/internal/widecol"
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("memstore: closed")

const btreeDegree = 32

// Store holds every column family of one keyspace.
//
// Thread-safety: all methods are safe for concurrent use (RWMutex).
type Store struct {
	mu     sync.RWMutex
	rows   *btree.BTreeG[*row]
	closed bool
}

type row struct {
	family  string
	key     string
	entries map[string]*entry
}

// entry is one top-level name: a bare column or a super column.
type entry struct {
	bare *widecol.Column
	sub  map[string]widecol.Column
}

func rowLess(a, b *row) bool {
	if a.family != b.family {
		return a.family < b.family
	}
	return a.key < b.key
}

// New creates an empty store.
func New() *Store {
	return &Store{rows: btree.NewG(btreeDegree, rowLess)}
}

// Close releases the store. Later calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.rows.Clear(false)
	return nil
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Store) lookup(family, key string) (*row, bool) {
	return s.rows.Get(&row{family: family, key: key})
}

// Get implements widecol.Backend.
func (s *Store) Get(ctx context.Context, key string, path widecol.ColumnPath, _ widecol.ConsistencyLevel) (widecol.ColumnOrSuperColumn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return widecol.ColumnOrSuperColumn{}, err
	}

	r, ok := s.lookup(path.ColumnFamily, key)
	if !ok {
		return widecol.ColumnOrSuperColumn{}, widecol.ErrNotFound
	}
	switch {
	case path.SuperColumn != "" && path.Column != "":
		e, ok := r.entries[path.SuperColumn]
		if !ok || e.sub == nil {
			return widecol.ColumnOrSuperColumn{}, widecol.ErrNotFound
		}
		c, ok := e.sub[path.Column]
		if !ok {
			return widecol.ColumnOrSuperColumn{}, widecol.ErrNotFound
		}
		c = cloneColumn(c)
		return widecol.ColumnOrSuperColumn{Column: &c}, nil
	case path.SuperColumn != "":
		e, ok := r.entries[path.SuperColumn]
		if !ok || e.sub == nil {
			return widecol.ColumnOrSuperColumn{}, widecol.ErrNotFound
		}
		return e.materialize(path.SuperColumn), nil
	case path.Column != "":
		e, ok := r.entries[path.Column]
		if !ok {
			return widecol.ColumnOrSuperColumn{}, widecol.ErrNotFound
		}
		return e.materialize(path.Column), nil
	default:
		return widecol.ColumnOrSuperColumn{}, widecol.ErrNotFound
	}
}

// GetSlice implements widecol.Backend.
func (s *Store) GetSlice(ctx context.Context, key string, parent widecol.ColumnParent, pred widecol.SlicePredicate, _ widecol.ConsistencyLevel) ([]widecol.ColumnOrSuperColumn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	r, ok := s.lookup(parent.ColumnFamily, key)
	if !ok {
		return nil, nil
	}
	return r.slice(parent.SuperColumn, pred), nil
}

// GetCount implements widecol.Backend.
func (s *Store) GetCount(ctx context.Context, key string, parent widecol.ColumnParent, _ widecol.ConsistencyLevel) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	r, ok := s.lookup(parent.ColumnFamily, key)
	if !ok {
		return 0, nil
	}
	if parent.SuperColumn == "" {
		return len(r.entries), nil
	}
	if e, ok := r.entries[parent.SuperColumn]; ok {
		return len(e.sub), nil
	}
	return 0, nil
}

// GetRangeSlices implements widecol.Backend.
func (s *Store) GetRangeSlices(ctx context.Context, parent widecol.ColumnParent, pred widecol.SlicePredicate, kr widecol.KeyRange, _ widecol.ConsistencyLevel) ([]widecol.KeySlice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var out []widecol.KeySlice
	s.rows.AscendGreaterOrEqual(&row{family: parent.ColumnFamily, key: kr.StartKey}, func(r *row) bool {
		if r.family != parent.ColumnFamily || !widecol.InKeyRange(r.key, kr) {
			return false
		}
		out = append(out, widecol.KeySlice{Key: r.key, Columns: r.slice(parent.SuperColumn, pred)})
		return kr.Count <= 0 || len(out) < kr.Count
	})
	return out, nil
}

// BatchMutate implements widecol.Backend. The whole map applies under one
// write lock.
func (s *Store) BatchMutate(ctx context.Context, mm widecol.MutationMap, _ widecol.ConsistencyLevel) error {
	if err := mm.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	for key, byFamily := range mm {
		for family, muts := range byFamily {
			r, ok := s.lookup(family, key)
			if !ok {
				r = &row{family: family, key: key, entries: make(map[string]*entry)}
				s.rows.ReplaceOrInsert(r)
			}
			for _, m := range muts {
				if m.ColumnOrSuperColumn != nil {
					r.insert(*m.ColumnOrSuperColumn)
				} else {
					r.delete(*m.Deletion)
				}
			}
		}
	}
	return nil
}

func (r *row) insert(c widecol.ColumnOrSuperColumn) {
	if c.Column != nil {
		e, ok := r.entries[c.Column.Name]
		if ok && e.bare != nil && e.bare.Timestamp > c.Column.Timestamp {
			return
		}
		col := cloneColumn(*c.Column)
		r.entries[col.Name] = &entry{bare: &col}
		return
	}

	sc := c.SuperColumn
	e, ok := r.entries[sc.Name]
	if !ok || e.sub == nil {
		e = &entry{sub: make(map[string]widecol.Column, len(sc.Columns))}
		r.entries[sc.Name] = e
	}
	for _, col := range sc.Columns {
		if old, ok := e.sub[col.Name]; ok && old.Timestamp > col.Timestamp {
			continue
		}
		e.sub[col.Name] = cloneColumn(col)
	}
}

func (r *row) delete(d widecol.Deletion) {
	switch {
	case d.SuperColumn != "" && d.Predicate != nil:
		if e, ok := r.entries[d.SuperColumn]; ok && e.sub != nil {
			for _, name := range d.Predicate.ColumnNames {
				if c, ok := e.sub[name]; ok && c.Timestamp <= d.Timestamp {
					delete(e.sub, name)
				}
			}
			r.dropIfEmpty(d.SuperColumn)
		}
	case d.SuperColumn != "":
		if e, ok := r.entries[d.SuperColumn]; ok && e.sub != nil {
			r.deleteEntry(d.SuperColumn, d.Timestamp)
		}
	case d.Predicate != nil:
		for _, name := range d.Predicate.ColumnNames {
			r.deleteEntry(name, d.Timestamp)
		}
	default:
		for name := range r.entries {
			r.deleteEntry(name, d.Timestamp)
		}
	}
}

func (r *row) deleteEntry(name string, ts int64) {
	e, ok := r.entries[name]
	if !ok {
		return
	}
	if e.bare != nil {
		if e.bare.Timestamp <= ts {
			delete(r.entries, name)
		}
		return
	}
	for sub, c := range e.sub {
		if c.Timestamp <= ts {
			delete(e.sub, sub)
		}
	}
	r.dropIfEmpty(name)
}

func (r *row) dropIfEmpty(name string) {
	if e, ok := r.entries[name]; ok && e.bare == nil && len(e.sub) == 0 {
		delete(r.entries, name)
	}
}

func (r *row) slice(super string, pred widecol.SlicePredicate) []widecol.ColumnOrSuperColumn {
	if super != "" {
		e, ok := r.entries[super]
		if !ok || e.sub == nil {
			return nil
		}
		return widecol.Wrap(widecol.ApplyPredicate(e.sortedSub(), widecol.ColumnName, pred))
	}

	names := slices.Sorted(maps.Keys(r.entries))
	selected := widecol.ApplyPredicate(names, func(n string) string { return n }, pred)
	out := make([]widecol.ColumnOrSuperColumn, 0, len(selected))
	for _, name := range selected {
		out = append(out, r.entries[name].materialize(name))
	}
	return out
}

func (e *entry) sortedSub() []widecol.Column {
	cols := make([]widecol.Column, 0, len(e.sub))
	for _, name := range slices.Sorted(maps.Keys(e.sub)) {
		cols = append(cols, cloneColumn(e.sub[name]))
	}
	return cols
}

func (e *entry) materialize(name string) widecol.ColumnOrSuperColumn {
	if e.bare != nil {
		c := cloneColumn(*e.bare)
		return widecol.ColumnOrSuperColumn{Column: &c}
	}
	return widecol.ColumnOrSuperColumn{SuperColumn: &widecol.SuperColumn{Name: name, Columns: e.sortedSub()}}
}

func cloneColumn(c widecol.Column) widecol.Column {
	c.Value = bytes.Clone(c.Value)
	return c
}
