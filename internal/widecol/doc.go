// Package widecol is the boundary to the wide-column store.
//
// It defines the store structures (columns, super columns, slice predicates,
// key ranges, mutations), the Backend interface every store implements, and
// Client, which issues the six store primitives at a configured or per-call
// consistency level:
//
//   - Get: point read of one column or super column (ErrNotFound if absent)
//   - GetSlice: ordered columns of one row, by names or by range
//   - GetCount: number of columns under a parent
//   - GetRangeSlices: one bounded key-range scan
//   - BatchMutate: inserts and deletions, atomic per call
//   - Insert / Remove: convenience forms built on BatchMutate
//
// # Pagination
//
// EachKeySlice turns bounded range scans into one lazy, resumable sequence
// of rows. Range starts are inclusive, so every continuation page asks for
// one extra key and drops the previous page's last key before yielding.
//
// # Row Keys
//
// Backends never remove row keys. A row whose last column is deleted stays
// visible to range scans with no columns (a tombstone). Callers that need
// "is there data" must test column presence, not key existence.
//
// # Ordering
//
// Row keys and column names compare as raw bytes. Range scans include the
// start key and a non-empty end key.
package widecol
