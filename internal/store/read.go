package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/widetriple/internal/widecol"
)

// cell is one row of the cells table.
type cell struct {
	key   string
	name  string
	sub   string
	super bool
	value []byte
	ts    int64
}

func (c cell) column() widecol.Column {
	name := c.name
	if c.super {
		name = c.sub
	}
	return widecol.Column{Name: name, Value: c.value, Timestamp: c.ts}
}

// blob binds s as a BLOB so comparisons are bytewise.
func blob(s string) []byte {
	if s == "" {
		return []byte{}
	}
	return []byte(s)
}

func scanCells(rows *sql.Rows) ([]cell, error) {
	defer rows.Close()
	var out []cell
	for rows.Next() {
		var (
			c              cell
			key, name, sub []byte
			super          int
		)
		if err := rows.Scan(&key, &name, &sub, &super, &c.value, &c.ts); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		c.key, c.name, c.sub, c.super = string(key), string(name), string(sub), super == 1
		if c.value == nil {
			c.value = []byte{}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cells: %w", err)
	}
	return out, nil
}

// groupEntries folds cells of one row, ordered by (name, sub_name), into
// top-level entries.
func groupEntries(cells []cell) []widecol.ColumnOrSuperColumn {
	var out []widecol.ColumnOrSuperColumn
	for _, c := range cells {
		if !c.super {
			col := c.column()
			out = append(out, widecol.ColumnOrSuperColumn{Column: &col})
			continue
		}
		if n := len(out); n > 0 && out[n-1].SuperColumn != nil && out[n-1].SuperColumn.Name == c.name {
			out[n-1].SuperColumn.Columns = append(out[n-1].SuperColumn.Columns, c.column())
			continue
		}
		out = append(out, widecol.ColumnOrSuperColumn{SuperColumn: &widecol.SuperColumn{
			Name:    c.name,
			Columns: []widecol.Column{c.column()},
		}})
	}
	return out
}

func columnsOf(cells []cell) []widecol.Column {
	cols := make([]widecol.Column, len(cells))
	for i, c := range cells {
		cols[i] = c.column()
	}
	return cols
}

const cellColumns = `row_key, name, sub_name, super, value, ts`

func (s *Store) rowCells(ctx context.Context, q queryer, family, key string) ([]cell, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+cellColumns+`
		FROM cells
		WHERE keyspace = ? AND column_family = ? AND row_key = ?
		ORDER BY name, sub_name
	`, s.keyspace, family, blob(key))
	if err != nil {
		return nil, fmt.Errorf("query row: %w", err)
	}
	return scanCells(rows)
}

// entryCells returns the cells of one top-level name. With superOnly, bare
// columns are excluded.
func (s *Store) entryCells(ctx context.Context, q queryer, family, key, name string, superOnly bool) ([]cell, error) {
	query := `
		SELECT ` + cellColumns + `
		FROM cells
		WHERE keyspace = ? AND column_family = ? AND row_key = ? AND name = ?`
	if superOnly {
		query += ` AND super = 1`
	}
	query += ` ORDER BY sub_name`

	rows, err := q.QueryContext(ctx, query, s.keyspace, family, blob(key), blob(name))
	if err != nil {
		return nil, fmt.Errorf("query entry: %w", err)
	}
	return scanCells(rows)
}

// Get implements widecol.Backend.
func (s *Store) Get(ctx context.Context, key string, path widecol.ColumnPath, _ widecol.ConsistencyLevel) (widecol.ColumnOrSuperColumn, error) {
	switch {
	case path.SuperColumn != "" && path.Column != "":
		var (
			value []byte
			ts    int64
		)
		err := s.db.QueryRowContext(ctx, `
			SELECT value, ts
			FROM cells
			WHERE keyspace = ? AND column_family = ? AND row_key = ? AND name = ? AND sub_name = ? AND super = 1
		`, s.keyspace, path.ColumnFamily, blob(key), blob(path.SuperColumn), blob(path.Column)).Scan(&value, &ts)
		if errors.Is(err, sql.ErrNoRows) {
			return widecol.ColumnOrSuperColumn{}, widecol.ErrNotFound
		}
		if err != nil {
			return widecol.ColumnOrSuperColumn{}, fmt.Errorf("get sub-column: %w", err)
		}
		if value == nil {
			value = []byte{}
		}
		return widecol.ColumnOrSuperColumn{Column: &widecol.Column{Name: path.Column, Value: value, Timestamp: ts}}, nil

	case path.SuperColumn != "" || path.Column != "":
		name, superOnly := path.Column, false
		if path.SuperColumn != "" {
			name, superOnly = path.SuperColumn, true
		}
		cells, err := s.entryCells(ctx, s.db, path.ColumnFamily, key, name, superOnly)
		if err != nil {
			return widecol.ColumnOrSuperColumn{}, err
		}
		entries := groupEntries(cells)
		if len(entries) == 0 {
			return widecol.ColumnOrSuperColumn{}, widecol.ErrNotFound
		}
		return entries[0], nil

	default:
		return widecol.ColumnOrSuperColumn{}, widecol.ErrNotFound
	}
}

// GetSlice implements widecol.Backend.
func (s *Store) GetSlice(ctx context.Context, key string, parent widecol.ColumnParent, pred widecol.SlicePredicate, _ widecol.ConsistencyLevel) ([]widecol.ColumnOrSuperColumn, error) {
	if parent.SuperColumn != "" {
		cells, err := s.entryCells(ctx, s.db, parent.ColumnFamily, key, parent.SuperColumn, true)
		if err != nil {
			return nil, err
		}
		return widecol.Wrap(widecol.ApplyPredicate(columnsOf(cells), widecol.ColumnName, pred)), nil
	}

	cells, err := s.rowCells(ctx, s.db, parent.ColumnFamily, key)
	if err != nil {
		return nil, err
	}
	return widecol.ApplyPredicate(groupEntries(cells), widecol.EntryName, pred), nil
}

// GetCount implements widecol.Backend.
func (s *Store) GetCount(ctx context.Context, key string, parent widecol.ColumnParent, _ widecol.ConsistencyLevel) (int, error) {
	var (
		n   int
		err error
	)
	if parent.SuperColumn != "" {
		err = s.db.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM cells
			WHERE keyspace = ? AND column_family = ? AND row_key = ? AND name = ? AND super = 1
		`, s.keyspace, parent.ColumnFamily, blob(key), blob(parent.SuperColumn)).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `
			SELECT COUNT(DISTINCT name)
			FROM cells
			WHERE keyspace = ? AND column_family = ? AND row_key = ?
		`, s.keyspace, parent.ColumnFamily, blob(key)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count columns: %w", err)
	}
	return n, nil
}

// GetRangeSlices implements widecol.Backend.
//
// Keys come from row_keys, so tombstoned rows are returned with no
// columns. Both queries run in one transaction for a consistent page.
func (s *Store) GetRangeSlices(ctx context.Context, parent widecol.ColumnParent, pred widecol.SlicePredicate, kr widecol.KeyRange, _ widecol.ConsistencyLevel) ([]widecol.KeySlice, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin range scan: %w", err)
	}
	defer tx.Rollback()

	keys, err := s.rangeKeys(ctx, tx, parent.ColumnFamily, kr)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + cellColumns + `
		FROM cells
		WHERE keyspace = ? AND column_family = ? AND row_key >= ? AND row_key <= ?`
	args := []any{s.keyspace, parent.ColumnFamily, blob(keys[0]), blob(keys[len(keys)-1])}
	if parent.SuperColumn != "" {
		query += ` AND name = ? AND super = 1`
		args = append(args, blob(parent.SuperColumn))
	}
	query += ` ORDER BY row_key, name, sub_name`

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query range cells: %w", err)
	}
	cells, err := scanCells(rows)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string][]cell, len(keys))
	for _, c := range cells {
		byKey[c.key] = append(byKey[c.key], c)
	}

	out := make([]widecol.KeySlice, 0, len(keys))
	for _, key := range keys {
		var cols []widecol.ColumnOrSuperColumn
		if parent.SuperColumn != "" {
			cols = widecol.Wrap(widecol.ApplyPredicate(columnsOf(byKey[key]), widecol.ColumnName, pred))
		} else {
			cols = widecol.ApplyPredicate(groupEntries(byKey[key]), widecol.EntryName, pred)
		}
		out = append(out, widecol.KeySlice{Key: key, Columns: cols})
	}
	return out, nil
}

func (s *Store) rangeKeys(ctx context.Context, q queryer, family string, kr widecol.KeyRange) ([]string, error) {
	query := `
		SELECT row_key
		FROM row_keys
		WHERE keyspace = ? AND column_family = ? AND row_key >= ?`
	args := []any{s.keyspace, family, blob(kr.StartKey)}
	if kr.EndKey != "" {
		query += ` AND row_key <= ?`
		args = append(args, blob(kr.EndKey))
	}
	limit := -1
	if kr.Count > 0 {
		limit = kr.Count
	}
	query += ` ORDER BY row_key LIMIT ?`
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query row keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key []byte
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan row key: %w", err)
		}
		keys = append(keys, string(key))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate row keys: %w", err)
	}
	return keys, nil
}
