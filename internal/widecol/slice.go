package widecol

import (
	"slices"
	"strings"
)

// ApplyPredicate selects entries from a list already sorted by name.
//
// Names select the listed entries in store order (duplicates and unknown
// names are ignored). A range selects the inclusive [Start, Finish] window,
// walking backwards when Reversed, and stops after Count entries. A zero
// predicate returns every entry.
//
// Backends share this so every store applies predicates identically.
func ApplyPredicate[T any](entries []T, name func(T) string, pred SlicePredicate) []T {
	switch {
	case len(pred.ColumnNames) > 0:
		want := make(map[string]struct{}, len(pred.ColumnNames))
		for _, n := range pred.ColumnNames {
			want[n] = struct{}{}
		}
		out := make([]T, 0, len(pred.ColumnNames))
		for _, e := range entries {
			if _, ok := want[name(e)]; ok {
				out = append(out, e)
			}
		}
		return out
	case pred.SliceRange != nil:
		return applyRange(entries, name, *pred.SliceRange)
	default:
		return slices.Clone(entries)
	}
}

func applyRange[T any](entries []T, name func(T) string, r SliceRange) []T {
	lo, hi := r.Start, r.Finish
	if r.Reversed {
		lo, hi = r.Finish, r.Start
	}
	inRange := func(n string) bool {
		if lo != "" && strings.Compare(n, lo) < 0 {
			return false
		}
		if hi != "" && strings.Compare(n, hi) > 0 {
			return false
		}
		return true
	}

	var out []T
	visit := func(e T) bool {
		if !inRange(name(e)) {
			return true
		}
		out = append(out, e)
		return r.Count <= 0 || len(out) < r.Count
	}
	if r.Reversed {
		for i := len(entries) - 1; i >= 0; i-- {
			if !visit(entries[i]) {
				break
			}
		}
		return out
	}
	for _, e := range entries {
		if !visit(e) {
			break
		}
	}
	return out
}

// ColumnName returns c.Name. It is the name accessor for ApplyPredicate.
func ColumnName(c Column) string { return c.Name }

// EntryName returns c.Name(). It is the name accessor for ApplyPredicate.
func EntryName(c ColumnOrSuperColumn) string { return c.Name() }

// InKeyRange reports whether key falls inside kr. The start key is
// inclusive, as is a non-empty end key.
func InKeyRange(key string, kr KeyRange) bool {
	if key < kr.StartKey {
		return false
	}
	return kr.EndKey == "" || key <= kr.EndKey
}

// Wrap returns the bare columns as entries.
func Wrap(cols []Column) []ColumnOrSuperColumn {
	out := make([]ColumnOrSuperColumn, len(cols))
	for i := range cols {
		c := cols[i]
		out[i] = ColumnOrSuperColumn{Column: &c}
	}
	return out
}
