package index

import (
	"fmt"
	"strings"

	"github.com/roach88/widetriple/internal/ir"
)

// Direction names one secondary index: which triple component is indexed
// and which related component is recorded as its member.
type Direction string

const (
	// PS maps predicate → subjects. Lives in the predicate index family.
	PS Direction = "ps"
	// OS maps object → subjects. Lives in the object index family.
	OS Direction = "os"
	// OP maps object → predicates. Lives in the object index family.
	OP Direction = "op"
)

// AllDirections lists every direction in canonical order.
var AllDirections = []Direction{PS, OS, OP}

// ParseDirection accepts "ps", "os" or "op" in any case.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case PS, OS, OP:
		return d, nil
	default:
		return "", fmt.Errorf("unknown index direction %q (want ps, os or op)", s)
	}
}

// Indexed returns the component of t this direction is keyed by.
func (d Direction) Indexed(t ir.Triple) ir.Term {
	if d == PS {
		return t.Predicate
	}
	return t.Object
}

// Related returns the component of t recorded as a member.
func (d Direction) Related(t ir.Triple) ir.Term {
	if d == OP {
		return t.Predicate
	}
	return t.Subject
}

// Justifying returns the pattern whose matches justify the membership
// related ∈ d(indexed): (s,p,?) for ps, (s,?,o) for os, (?,p,o) for op.
func (d Direction) Justifying(indexed, related ir.Term) ir.Pattern {
	switch d {
	case PS:
		return ir.Pattern{Subject: related, Predicate: indexed}
	case OS:
		return ir.Pattern{Subject: related, Object: indexed}
	default:
		return ir.Pattern{Predicate: related, Object: indexed}
	}
}

// Families names the two index column families.
type Families struct {
	Predicate string
	Object    string
}

// DefaultFamilies are the index family names used when none are configured.
var DefaultFamilies = Families{Predicate: "RDFPredicateIndex", Object: "RDFObjectIndex"}

// Family returns the column family holding d.
func (f Families) Family(d Direction) string {
	if d == PS {
		return f.Predicate
	}
	return f.Object
}
