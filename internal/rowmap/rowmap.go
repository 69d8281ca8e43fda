// Package rowmap maps triples onto wide-column rows and back.
//
// Layout of the primary family:
//
//	row key      subject (IRI text, or "_:label" for a blank node)
//	column name  predicate IRI text
//	sub-key      ir.ContentHash of the serialized object
//	value        serialized object (canonical N-Triples term)
//
// New writes always use the multi-value shape: one super column per
// predicate holding hash → object. Rows may also carry the legacy
// single-value shape, a bare column per predicate whose value is the
// serialized object. Both shapes decode through the ColumnValue variant.
package rowmap

import (
	"fmt"

	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/widecol"
)

// ColumnValue is one predicate column of a stored row: SingleValue or
// MultiValue.
type ColumnValue interface {
	columnValue() // Sealed
}

// SingleValue is the legacy shape: one serialized object.
type SingleValue struct {
	Value []byte
}

func (SingleValue) columnValue() {}

// MultiValue is the current shape: serialized objects by content hash,
// in hash order.
type MultiValue struct {
	Entries []Entry
}

func (MultiValue) columnValue() {}

// Entry is one sub-column of a MultiValue.
type Entry struct {
	Hash  string
	Value []byte
}

// ValueOf classifies a stored column by structure: a super column is
// MultiValue, a bare column is SingleValue. It returns the column name
// (the predicate) and false for an empty entry.
func ValueOf(c widecol.ColumnOrSuperColumn) (string, ColumnValue, bool) {
	switch {
	case c.SuperColumn != nil:
		mv := MultiValue{Entries: make([]Entry, len(c.SuperColumn.Columns))}
		for i, sub := range c.SuperColumn.Columns {
			mv.Entries[i] = Entry{Hash: sub.Name, Value: sub.Value}
		}
		return c.SuperColumn.Name, mv, true
	case c.Column != nil:
		return c.Column.Name, SingleValue{Value: c.Column.Value}, true
	default:
		return "", nil, false
	}
}

// Encoded is a triple in storage form.
type Encoded struct {
	RowKey string
	Column string
	SubKey string
	Value  []byte
}

// Encode converts a valid triple to storage form.
func Encode(t ir.Triple) (Encoded, error) {
	if err := t.Validate(); err != nil {
		return Encoded{}, err
	}
	obj := t.Object.String()
	return Encoded{
		RowKey: ir.SubjectKey(t.Subject),
		Column: string(t.Predicate),
		SubKey: ir.ContentHash(obj),
		Value:  []byte(obj),
	}, nil
}

// InsertMutation writes e as one sub-column of its predicate's super
// column. Re-inserting the same object overwrites the same sub-key.
func (e Encoded) InsertMutation(ts int64) widecol.Mutation {
	return widecol.InsertSuperColumn(widecol.SuperColumn{
		Name:    e.Column,
		Columns: []widecol.Column{{Name: e.SubKey, Value: e.Value, Timestamp: ts}},
	})
}

// DeleteMutation removes e's sub-column.
func (e Encoded) DeleteMutation(ts int64) widecol.Mutation {
	return widecol.DeleteColumns(ts, e.Column, e.SubKey)
}

// LegacyDeleteMutation removes a legacy bare column for e's predicate.
// The caller must first confirm that the bare value is e's object.
func (e Encoded) LegacyDeleteMutation(ts int64) widecol.Mutation {
	return widecol.DeleteColumns(ts, "", e.Column)
}

// AppendInsert encodes t and adds its insert mutation for family to mm.
func AppendInsert(mm widecol.MutationMap, family string, t ir.Triple, ts int64) (Encoded, error) {
	enc, err := Encode(t)
	if err != nil {
		return Encoded{}, err
	}
	mm.Add(enc.RowKey, family, enc.InsertMutation(ts))
	return enc, nil
}

// DecodeError describes one stored value that could not be decoded.
type DecodeError struct {
	RowKey string
	Column string
	SubKey string // empty for a legacy bare column
	Err    error
}

func (e *DecodeError) Error() string {
	if e.SubKey == "" {
		return fmt.Sprintf("decode %q %q: %v", e.RowKey, e.Column, e.Err)
	}
	return fmt.Sprintf("decode %q %q [%s]: %v", e.RowKey, e.Column, e.SubKey, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeColumn flattens one stored column of row rowKey into triples.
// Values that fail to decode are skipped and returned as errors; the rest
// of the column still decodes.
func DecodeColumn(rowKey string, c widecol.ColumnOrSuperColumn) ([]ir.Triple, []*DecodeError) {
	name, v, ok := ValueOf(c)
	if !ok {
		return nil, nil
	}
	if rowKey == "" || name == "" {
		return nil, []*DecodeError{{RowKey: rowKey, Column: name, Err: fmt.Errorf("%w: empty row key or column name", ir.ErrInvalidTriple)}}
	}
	subject := ir.SubjectFromKey(rowKey)
	predicate := ir.IRI(name)

	switch v := v.(type) {
	case SingleValue:
		obj, err := ir.ParseTerm(string(v.Value))
		if err != nil {
			return nil, []*DecodeError{{RowKey: rowKey, Column: name, Err: err}}
		}
		return []ir.Triple{ir.NewTriple(subject, predicate, obj)}, nil
	case MultiValue:
		var errs []*DecodeError
		triples := make([]ir.Triple, 0, len(v.Entries))
		for _, e := range v.Entries {
			obj, err := ir.ParseTerm(string(e.Value))
			if err != nil {
				errs = append(errs, &DecodeError{RowKey: rowKey, Column: name, SubKey: e.Hash, Err: err})
				continue
			}
			triples = append(triples, ir.NewTriple(subject, predicate, obj))
		}
		return triples, errs
	default:
		return nil, nil
	}
}

// DecodeSlice flattens every column of one scanned row.
func DecodeSlice(ks widecol.KeySlice) ([]ir.Triple, []*DecodeError) {
	var (
		triples []ir.Triple
		errs    []*DecodeError
	)
	for _, c := range ks.Columns {
		ts, es := DecodeColumn(ks.Key, c)
		triples = append(triples, ts...)
		errs = append(errs, es...)
	}
	return triples, errs
}

// HasColumns reports whether a scanned row still holds data. Tombstoned
// rows come back from range scans with no columns.
func HasColumns(ks widecol.KeySlice) bool {
	return len(ks.Columns) > 0
}

// UpgradeLegacy rewrites a legacy bare column as a one-entry super column
// so later multi-value writes to the same predicate keep its object.
func UpgradeLegacy(c widecol.Column, ts int64) widecol.Mutation {
	return widecol.InsertSuperColumn(widecol.SuperColumn{
		Name:    c.Name,
		Columns: []widecol.Column{{Name: ir.ContentHash(string(c.Value)), Value: c.Value, Timestamp: ts}},
	})
}
