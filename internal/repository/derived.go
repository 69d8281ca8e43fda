package repository

import (
	"context"
	"iter"

	"github.com/roach88/widetriple/internal/index"
	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/rowmap"
	"github.com/roach88/widetriple/internal/widecol"
)

// Count returns the number of distinct stored triples. It scans every
// primary family; a triple held by more than one family counts once.
func (r *Repository) Count(ctx context.Context, opts ...widecol.CallOption) (int, error) {
	var seen map[string]struct{}
	if len(r.engine.Families()) > 1 {
		seen = make(map[string]struct{})
	}
	n := 0
	for t, err := range r.Each(ctx, opts...) {
		if err != nil {
			return 0, err
		}
		if seen != nil {
			key := t.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		n++
	}
	return n, nil
}

// Empty reports whether no triple is stored. Rows left behind as
// tombstones do not count.
func (r *Repository) Empty(ctx context.Context, opts ...widecol.CallOption) (bool, error) {
	found, err := r.Exists(ctx, ir.Pattern{}, opts...)
	return !found, err
}

// Has reports whether t is stored.
func (r *Repository) Has(ctx context.Context, t ir.Triple, opts ...widecol.CallOption) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	return r.Exists(ctx, ir.PatternOf(t), opts...)
}

// HasSubject reports whether any triple has subject s.
func (r *Repository) HasSubject(ctx context.Context, s ir.Term, opts ...widecol.CallOption) (bool, error) {
	return r.Exists(ctx, ir.Pattern{Subject: s}, opts...)
}

// HasPredicate reports whether any triple has predicate p. It reads the
// ps index when enabled and scans otherwise.
func (r *Repository) HasPredicate(ctx context.Context, p ir.IRI, opts ...widecol.CallOption) (bool, error) {
	if r.index.Enabled(index.PS) {
		return r.index.HasMember(ctx, index.PS, p, opts...)
	}
	return r.Exists(ctx, ir.Pattern{Predicate: p}, opts...)
}

// HasObject reports whether any triple has object o. It reads the os or
// op index when one is enabled and scans otherwise.
func (r *Repository) HasObject(ctx context.Context, o ir.Term, opts ...widecol.CallOption) (bool, error) {
	for _, d := range []index.Direction{index.OS, index.OP} {
		if r.index.Enabled(d) {
			return r.index.HasMember(ctx, d, o, opts...)
		}
	}
	return r.Exists(ctx, ir.Pattern{Object: o}, opts...)
}

// EachSubject yields every subject holding at least one column, once.
func (r *Repository) EachSubject(ctx context.Context, opts ...widecol.CallOption) iter.Seq2[ir.Term, error] {
	return func(yield func(ir.Term, error) bool) {
		scanOpts := append([]widecol.CallOption{widecol.WithColumnRange("", "", 1)}, opts...)
		seen := make(map[string]struct{})
		for _, family := range r.engine.Families() {
			for ks, err := range r.client.EachKeySlice(ctx, family, scanOpts...) {
				if err != nil {
					yield(nil, err)
					return
				}
				if !rowmap.HasColumns(ks) {
					continue
				}
				if _, dup := seen[ks.Key]; dup {
					continue
				}
				seen[ks.Key] = struct{}{}
				if !yield(ir.SubjectFromKey(ks.Key), nil) {
					return
				}
			}
		}
	}
}

// EachPredicate yields every predicate in use, once.
func (r *Repository) EachPredicate(ctx context.Context, opts ...widecol.CallOption) iter.Seq2[ir.Term, error] {
	return r.distinct(ctx, func(t ir.Triple) ir.Term { return t.Predicate }, opts)
}

// EachObject yields every distinct object, once.
func (r *Repository) EachObject(ctx context.Context, opts ...widecol.CallOption) iter.Seq2[ir.Term, error] {
	return r.distinct(ctx, func(t ir.Triple) ir.Term { return t.Object }, opts)
}

func (r *Repository) distinct(ctx context.Context, component func(ir.Triple) ir.Term, opts []widecol.CallOption) iter.Seq2[ir.Term, error] {
	return func(yield func(ir.Term, error) bool) {
		seen := make(map[string]struct{})
		for t, err := range r.Each(ctx, opts...) {
			if err != nil {
				yield(nil, err)
				return
			}
			term := component(t)
			key := term.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if !yield(term, nil) {
				return
			}
		}
	}
}
