// Package ir provides the triple data model for widetriple.
//
// This package contains the term, triple and pattern types plus their
// canonical serialization. All other internal packages import ir; ir imports
// nothing internal.
//
// Key design constraints:
//   - The canonical form of every term is its N-Triples serialization
//   - Literal lexical forms are NFC normalized before serialization
//   - Every content-addressed key is computed by ContentHash over the
//     canonical form, on the insert path and the delete path alike
package ir
