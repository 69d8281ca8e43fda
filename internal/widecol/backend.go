package widecol

import (
	"context"
	"errors"
)

// ErrNotFound marks an absent key, column or super column. It is a normal
// outcome, not a failure.
var ErrNotFound = errors.New("not found")

// Backend is a wide-column store.
//
// Semantics every implementation honors:
//   - inserts are last-write-wins by timestamp (equal stamps overwrite)
//   - a deletion removes entries whose timestamp is not newer than its own
//   - a top-level name holds one shape; inserting a bare column over a
//     super column (or the reverse) replaces the older shape
//   - row keys and column names are ordered by bytes
//   - row keys are never removed; emptied rows are returned by range scans
//     with no columns
//   - one BatchMutate call applies atomically
//
// The consistency level is passed through for stores that enforce it.
// Single-node backends accept and ignore it.
type Backend interface {
	// Get reads one entry. With SuperColumn and Column set it returns the
	// sub-column; with only one of them set it returns that top-level entry.
	Get(ctx context.Context, key string, path ColumnPath, level ConsistencyLevel) (ColumnOrSuperColumn, error)

	// GetSlice returns the entries of one row (or of one super column when
	// parent.SuperColumn is set) selected by pred, in name order.
	GetSlice(ctx context.Context, key string, parent ColumnParent, pred SlicePredicate, level ConsistencyLevel) ([]ColumnOrSuperColumn, error)

	// GetCount returns the number of entries GetSlice would return for an
	// all-columns predicate.
	GetCount(ctx context.Context, key string, parent ColumnParent, level ConsistencyLevel) (int, error)

	// GetRangeSlices returns up to kr.Count rows (all rows when Count <= 0)
	// whose keys fall inside kr, each with the entries selected by pred.
	GetRangeSlices(ctx context.Context, parent ColumnParent, pred SlicePredicate, kr KeyRange, level ConsistencyLevel) ([]KeySlice, error)

	// BatchMutate applies every mutation in mm.
	BatchMutate(ctx context.Context, mm MutationMap, level ConsistencyLevel) error

	Close() error
}

// IsNotFound reports whether err marks an absence.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
