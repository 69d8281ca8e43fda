package ir

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// XSDString is the implicit datatype of simple literals.
const XSDString IRI = "http://www.w3.org/2001/XMLSchema#string"

// RDFLangString is the implicit datatype of language-tagged literals.
const RDFLangString IRI = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"

// Term is a sealed interface for RDF terms.
// Only IRI, BlankNode and Literal implement it.
//
// String returns the canonical N-Triples form, which is also the stored
// representation of objects and the input to ContentHash.
type Term interface {
	term() // Sealed
	String() string
}

// IRI is an absolute resource identifier, stored without angle brackets.
type IRI string

func (IRI) term() {}

// String returns the N-Triples form: <iri>.
func (i IRI) String() string {
	return "<" + escapeIRI(string(i)) + ">"
}

// BlankNode is a document-scoped node label, stored without the "_:" prefix.
type BlankNode string

func (BlankNode) term() {}

// String returns the N-Triples form: _:label.
func (b BlankNode) String() string {
	return "_:" + string(b)
}

// Literal is an RDF literal.
// Use NewLiteral, NewLangLiteral or NewTypedLiteral so the value is in
// canonical form; the zero Datatype means xsd:string.
type Literal struct {
	Lexical  string
	Language string
	Datatype IRI
}

func (Literal) term() {}

// NewLiteral creates a simple literal.
func NewLiteral(lexical string) Literal {
	return Literal{Lexical: norm.NFC.String(lexical)}
}

// NewLangLiteral creates a language-tagged literal. Tags are lowercased.
func NewLangLiteral(lexical, lang string) Literal {
	return Literal{Lexical: norm.NFC.String(lexical), Language: strings.ToLower(lang)}
}

// NewTypedLiteral creates a typed literal.
// xsd:string collapses to a simple literal so both spellings hash the same.
func NewTypedLiteral(lexical string, datatype IRI) Literal {
	if datatype == XSDString {
		datatype = ""
	}
	return Literal{Lexical: norm.NFC.String(lexical), Datatype: datatype}
}

// String returns the N-Triples form with escapes applied.
func (l Literal) String() string {
	var b strings.Builder
	b.WriteByte('"')
	b.WriteString(escapeLiteral(norm.NFC.String(l.Lexical)))
	b.WriteByte('"')
	switch {
	case l.Language != "":
		b.WriteByte('@')
		b.WriteString(strings.ToLower(l.Language))
	case l.Datatype != "" && l.Datatype != XSDString:
		b.WriteString("^^")
		b.WriteString(l.Datatype.String())
	}
	return b.String()
}

// IsResource reports whether t can appear in subject position.
func IsResource(t Term) bool {
	switch v := t.(type) {
	case IRI:
		return v != ""
	case BlankNode:
		return v != ""
	default:
		return false
	}
}

// Equal compares two terms by canonical form.
// A nil term only equals another nil term.
func Equal(a, b Term) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}
