package ntriples

import "github.com/google/uuid"

// IDGenerator produces load IDs for blank-node relabelling.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 load IDs, so relabelled
// blank nodes from later loads sort after earlier ones.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
// Panics if UUID generation fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
