package widecol

import (
	"errors"
	"fmt"
)

// Column is a named value with its write timestamp.
type Column struct {
	Name      string
	Value     []byte
	Timestamp int64
}

// SuperColumn is a named, ordered group of sub-columns.
type SuperColumn struct {
	Name    string
	Columns []Column
}

// Column returns the sub-column with the given name.
func (s SuperColumn) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether a sub-column with the given name exists.
func (s SuperColumn) HasColumn(name string) bool {
	_, ok := s.Column(name)
	return ok
}

// ColumnOrSuperColumn holds exactly one of a bare column or a super column.
type ColumnOrSuperColumn struct {
	Column      *Column
	SuperColumn *SuperColumn
}

// Name returns the name of whichever member is set.
func (c ColumnOrSuperColumn) Name() string {
	switch {
	case c.Column != nil:
		return c.Column.Name
	case c.SuperColumn != nil:
		return c.SuperColumn.Name
	default:
		return ""
	}
}

// IsZero reports whether neither member is set.
func (c ColumnOrSuperColumn) IsZero() bool {
	return c.Column == nil && c.SuperColumn == nil
}

// ColumnPath addresses one column, one super column, or one sub-column.
type ColumnPath struct {
	ColumnFamily string
	SuperColumn  string
	Column       string
}

// ColumnParent addresses the container a slice reads from: a row, or one
// super column inside a row.
type ColumnParent struct {
	ColumnFamily string
	SuperColumn  string
}

// SliceRange selects columns by name range. Empty Start or Finish leaves
// that end open. When Reversed, Start is the high end. Count <= 0 means no
// limit.
type SliceRange struct {
	Start    string
	Finish   string
	Reversed bool
	Count    int
}

// SlicePredicate selects columns by explicit names or by range. With
// neither set it selects everything.
type SlicePredicate struct {
	ColumnNames []string
	SliceRange  *SliceRange
}

// ByNames selects the named columns.
func ByNames(names ...string) SlicePredicate {
	return SlicePredicate{ColumnNames: names}
}

// ByRange selects columns in [start, finish], at most count of them.
func ByRange(start, finish string, count int) SlicePredicate {
	return SlicePredicate{SliceRange: &SliceRange{Start: start, Finish: finish, Count: count}}
}

// AllColumns selects every column.
func AllColumns() SlicePredicate {
	return SlicePredicate{}
}

// KeyRange bounds one range scan. StartKey is inclusive; an empty EndKey
// is the open end of the keyspace.
type KeyRange struct {
	StartKey string
	EndKey   string
	Count    int
}

// KeySlice is one row returned by a range scan.
type KeySlice struct {
	Key     string
	Columns []ColumnOrSuperColumn
}

// Deletion removes columns from a row.
//
//   - SuperColumn and Predicate set: the named sub-columns
//   - SuperColumn only: the whole super column
//   - Predicate only: the named top-level columns or super columns
//   - neither: every column in the row (the key stays as a tombstone)
//
// Only entries whose timestamp is not newer than Timestamp are removed.
type Deletion struct {
	Timestamp   int64
	SuperColumn string
	Predicate   *SlicePredicate
}

// Mutation is either an insert or a deletion.
type Mutation struct {
	ColumnOrSuperColumn *ColumnOrSuperColumn
	Deletion            *Deletion
}

// ErrInvalidMutation is returned for mutations that set both or neither
// member, and for deletions using a range predicate.
var ErrInvalidMutation = errors.New("invalid mutation")

// Validate checks the mutation's shape.
func (m Mutation) Validate() error {
	switch {
	case m.ColumnOrSuperColumn != nil && m.Deletion != nil:
		return fmt.Errorf("%w: both insert and deletion set", ErrInvalidMutation)
	case m.ColumnOrSuperColumn != nil:
		if m.ColumnOrSuperColumn.IsZero() {
			return fmt.Errorf("%w: empty insert", ErrInvalidMutation)
		}
		if m.ColumnOrSuperColumn.Column != nil && m.ColumnOrSuperColumn.SuperColumn != nil {
			return fmt.Errorf("%w: insert sets both column and super column", ErrInvalidMutation)
		}
		return nil
	case m.Deletion != nil:
		if p := m.Deletion.Predicate; p != nil && p.SliceRange != nil {
			return fmt.Errorf("%w: deletion by range is not supported", ErrInvalidMutation)
		}
		return nil
	default:
		return fmt.Errorf("%w: neither insert nor deletion set", ErrInvalidMutation)
	}
}

// InsertColumn builds an insert mutation for a bare column.
func InsertColumn(c Column) Mutation {
	return Mutation{ColumnOrSuperColumn: &ColumnOrSuperColumn{Column: &c}}
}

// InsertSuperColumn builds an insert mutation for a super column.
func InsertSuperColumn(sc SuperColumn) Mutation {
	return Mutation{ColumnOrSuperColumn: &ColumnOrSuperColumn{SuperColumn: &sc}}
}

// DeleteColumns builds a deletion of the named sub-columns of super, or of
// the named top-level entries when super is empty.
func DeleteColumns(ts int64, super string, names ...string) Mutation {
	pred := ByNames(names...)
	return Mutation{Deletion: &Deletion{Timestamp: ts, SuperColumn: super, Predicate: &pred}}
}

// DeleteSuperColumn builds a deletion of one whole super column.
func DeleteSuperColumn(ts int64, super string) Mutation {
	return Mutation{Deletion: &Deletion{Timestamp: ts, SuperColumn: super}}
}

// DeleteRow builds a deletion of every column in a row.
func DeleteRow(ts int64) Mutation {
	return Mutation{Deletion: &Deletion{Timestamp: ts}}
}

// MutationMap is row key → column family → mutations.
// A store applies one map atomically per call, never across calls.
type MutationMap map[string]map[string][]Mutation

// Add appends mutations for one row and family.
func (m MutationMap) Add(key, family string, muts ...Mutation) {
	byFamily, ok := m[key]
	if !ok {
		byFamily = make(map[string][]Mutation)
		m[key] = byFamily
	}
	byFamily[family] = append(byFamily[family], muts...)
}

// Merge appends every mutation of o into m.
func (m MutationMap) Merge(o MutationMap) {
	for key, byFamily := range o {
		for family, muts := range byFamily {
			m.Add(key, family, muts...)
		}
	}
}

// Len returns the total number of mutations.
func (m MutationMap) Len() int {
	n := 0
	for _, byFamily := range m {
		for _, muts := range byFamily {
			n += len(muts)
		}
	}
	return n
}

// Validate checks every mutation in the map.
func (m MutationMap) Validate() error {
	for key, byFamily := range m {
		for family, muts := range byFamily {
			if family == "" {
				return fmt.Errorf("%w: empty column family for key %q", ErrInvalidMutation, key)
			}
			for i, mut := range muts {
				if err := mut.Validate(); err != nil {
					return fmt.Errorf("%s/%q[%d]: %w", family, key, i, err)
				}
			}
		}
	}
	return nil
}
