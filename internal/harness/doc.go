// Package harness runs YAML scenarios against a repository and records a
// deterministic trace of every step.
//
// # Scenario Format
//
//	name: index_consistency
//	description: "What this scenario validates"
//	backend: memory            # or sqlite (in-memory database)
//	load_id: load-1            # optional; relabels blank nodes in load steps
//	config:
//	  directions: [ps]
//	  slice_size: 2
//	  batch_size: 2
//	setup:
//	  - op: insert
//	    triple: '<http://ex/s> <http://ex/p> "o" .'
//	flow:
//	  - op: query
//	    pattern: { predicate: "<http://ex/p>" }
//	    expect:
//	      count: 1
//	  - op: has_predicate
//	    term: "<http://ex/p>"
//	    expect: { value: true }
//	assertions:
//	  - type: contains
//	    triple: '<http://ex/s> <http://ex/p> "o" .'
//	  - type: store_calls
//	    op: batch_mutate
//	    count: 1
//
// # Operations
//
// insert, delete, load, query, count, empty, has, has_subject,
// has_predicate, has_object, clear and audit. Each step appends one trace
// event with its input and result.
//
// # Assertion Types
//
//   - contains / not_contains: a triple is (not) stored at the end
//   - count: the final number of stored triples
//   - store_calls: the number of backend calls of one primitive
//   - batch_sizes: the mutation count of every batched-mutate call
//   - membership: an index direction does (not) record a term
//
// # Deterministic Testing
//
// Each scenario runs on a fresh backend with a deterministic clock and a
// fixed load ID, so traces compare byte for byte against golden files.
package harness
