package widecol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidConsistency is returned for unknown levels and for reads at ANY.
var ErrInvalidConsistency = errors.New("invalid consistency level")

// ConsistencyLevel is the number of replicas that must acknowledge a call.
// Values follow the Thrift API enum.
type ConsistencyLevel int

const (
	One         ConsistencyLevel = 1
	Quorum      ConsistencyLevel = 2
	LocalQuorum ConsistencyLevel = 3
	EachQuorum  ConsistencyLevel = 4
	All         ConsistencyLevel = 5
	Any         ConsistencyLevel = 6
	Two         ConsistencyLevel = 7
	Three       ConsistencyLevel = 8
)

// DefaultConsistency is used when neither the client nor the call sets one.
const DefaultConsistency = One

var levelNames = map[ConsistencyLevel]string{
	One:         "one",
	Quorum:      "quorum",
	LocalQuorum: "local_quorum",
	EachQuorum:  "each_quorum",
	All:         "all",
	Any:         "any",
	Two:         "two",
	Three:       "three",
}

func (l ConsistencyLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Valid reports whether l is a known level.
func (l ConsistencyLevel) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// ValidForRead reports whether l can be used for a read. ANY only
// applies to writes.
func (l ConsistencyLevel) ValidForRead() bool {
	return l.Valid() && l != Any
}

// ParseConsistency accepts a level name (case-insensitive, "-" or "_") or
// its numeric value.
func ParseConsistency(s string) (ConsistencyLevel, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for level, name := range levelNames {
		if name == norm {
			return level, nil
		}
	}
	if n, err := strconv.Atoi(norm); err == nil && ConsistencyLevel(n).Valid() {
		return ConsistencyLevel(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidConsistency, s)
}

// ConsistencyNames lists the accepted level names in enum order.
func ConsistencyNames() []string {
	names := make([]string, 0, len(levelNames))
	for l := One; l <= Three; l++ {
		names = append(names, levelNames[l])
	}
	return names
}
