package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTriple is returned for triples that cannot be stored.
var ErrInvalidTriple = errors.New("invalid triple")

// Triple is a single subject/predicate/object statement.
type Triple struct {
	Subject   Term // IRI or BlankNode
	Predicate IRI
	Object    Term
}

// NewTriple creates a triple. Use Validate before storing it.
func NewTriple(s Term, p IRI, o Term) Triple {
	return Triple{Subject: s, Predicate: p, Object: o}
}

// Validate checks the positional constraints of RDF.
func (t Triple) Validate() error {
	if !IsResource(t.Subject) {
		return fmt.Errorf("%w: subject must be an IRI or blank node, got %v", ErrInvalidTriple, t.Subject)
	}
	if blankLikeIRI(t.Subject) {
		return fmt.Errorf("%w: subject IRI %v would be read back as a blank node", ErrInvalidTriple, t.Subject)
	}
	if t.Predicate == "" {
		return fmt.Errorf("%w: empty predicate", ErrInvalidTriple)
	}
	if t.Object == nil {
		return fmt.Errorf("%w: nil object", ErrInvalidTriple)
	}
	if _, ok := t.Object.(Literal); !ok && !IsResource(t.Object) {
		return fmt.Errorf("%w: empty object", ErrInvalidTriple)
	}
	return nil
}

// String returns the N-Triples statement line without a trailing newline.
func (t Triple) String() string {
	return termString(t.Subject) + " " + t.Predicate.String() + " " + termString(t.Object) + " ."
}

// Equal compares two triples by canonical form.
func (t Triple) Equal(o Triple) bool {
	return Equal(t.Subject, o.Subject) && t.Predicate == o.Predicate && Equal(t.Object, o.Object)
}

// SubjectKey returns the raw row key for a subject: the IRI text, or
// "_:label" for a blank node.
func SubjectKey(t Term) string {
	switch v := t.(type) {
	case IRI:
		return string(v)
	case BlankNode:
		return v.String()
	default:
		return ""
	}
}

// SubjectFromKey is the inverse of SubjectKey for subjects that pass
// Triple.Validate.
func SubjectFromKey(key string) Term {
	if strings.HasPrefix(key, "_:") {
		return BlankNode(key[2:])
	}
	return IRI(key)
}

// Pattern is a triple pattern. A nil position is a wildcard.
type Pattern struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Validate rejects bound positions that can never match.
func (p Pattern) Validate() error {
	if p.Subject != nil && !IsResource(p.Subject) {
		return fmt.Errorf("invalid pattern: subject must be an IRI or blank node, got %v", p.Subject)
	}
	if blankLikeIRI(p.Subject) {
		return fmt.Errorf("invalid pattern: subject IRI %v cannot be stored", p.Subject)
	}
	if p.Predicate != nil {
		if iri, ok := p.Predicate.(IRI); !ok || iri == "" {
			return fmt.Errorf("invalid pattern: predicate must be an IRI, got %v", p.Predicate)
		}
	}
	return nil
}

// Matches reports whether t satisfies every bound position.
func (p Pattern) Matches(t Triple) bool {
	if p.Subject != nil && !Equal(p.Subject, t.Subject) {
		return false
	}
	if p.Predicate != nil && !Equal(p.Predicate, t.Predicate) {
		return false
	}
	if p.Object != nil && !Equal(p.Object, t.Object) {
		return false
	}
	return true
}

// String renders wildcards as "?".
func (p Pattern) String() string {
	return patternPos(p.Subject) + " " + patternPos(p.Predicate) + " " + patternPos(p.Object)
}

// PatternOf returns the fully bound pattern for t.
func PatternOf(t Triple) Pattern {
	return Pattern{Subject: t.Subject, Predicate: t.Predicate, Object: t.Object}
}

func patternPos(t Term) string {
	if t == nil {
		return "?"
	}
	return t.String()
}

// blankLikeIRI reports an IRI whose row key collides with blank node keys.
func blankLikeIRI(t Term) bool {
	iri, ok := t.(IRI)
	return ok && strings.HasPrefix(string(iri), "_:")
}

func termString(t Term) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
