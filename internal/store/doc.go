// Package store is the durable widecol.Backend, on SQLite.
//
// One database file can hold several keyspaces. Every column family of a
// keyspace shares two tables:
//
//   - row_keys: one row per (family, row key). Keys are never deleted, so a
//     row emptied of columns still shows up in range scans (a tombstone).
//   - cells: one row per bare column or per sub-column of a super column,
//     keyed by (family, row key, name, sub_name). Bare columns have an
//     empty sub_name and super = 0.
//
// Row keys and names are stored as BLOBs so SQLite orders them by raw
// bytes, matching an order-preserving partitioner.
//
// # Write Semantics
//
//   - Upserts only replace a cell when the incoming timestamp is not older
//     (last write wins; equal stamps overwrite)
//   - Deletions remove cells whose timestamp is not newer than the deletion
//   - Writing a bare column drops a super column of the same name, and the
//     reverse
//   - One BatchMutate call runs in one transaction
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: cells must reference a row key
package store
