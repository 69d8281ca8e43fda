package ir

import (
	"crypto/sha1"
	"encoding/hex"
)

// ContentHash computes the content-addressed key for a canonical form.
// Format: lowercase hex SHA-1 (40 characters).
//
// CRITICAL: this is the ONLY hash used for sub-keys and index row keys. The
// delete path must address an object with the same function the insert path
// used, otherwise deletes silently miss.
//
// SHA-1 keeps the layout readable by rows written with the historical
// N-Triples/SHA-1 layout; collision resistance is assumed, there is no
// collision path.
func ContentHash(canonical string) string {
	sum := sha1.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// TermHash computes ContentHash over a term's canonical form.
func TermHash(t Term) string {
	return ContentHash(t.String())
}
