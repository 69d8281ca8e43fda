// Package ntriples reads and writes line-oriented N-Triples documents.
//
// Terms are parsed and printed by package ir, so a document written here
// re-reads to the same triples and the same content hashes. Blank-node
// labels can be prefixed with a per-load ID to keep separate loads of the
// same document from sharing nodes.
package ntriples
