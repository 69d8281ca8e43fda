package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/widetriple/internal/widecol"
)

// BatchMutate implements widecol.Backend. The whole map is applied in one
// transaction; any failure rolls it back.
func (s *Store) BatchMutate(ctx context.Context, mm widecol.MutationMap, _ widecol.ConsistencyLevel) error {
	if err := mm.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	for key, byFamily := range mm {
		for family, muts := range byFamily {
			w := rowWriter{tx: tx, keyspace: s.keyspace, family: family, key: blob(key)}
			if err := w.ensureRow(ctx); err != nil {
				return err
			}
			for _, m := range muts {
				if m.ColumnOrSuperColumn != nil {
					err = w.insert(ctx, *m.ColumnOrSuperColumn)
				} else {
					err = w.delete(ctx, *m.Deletion)
				}
				if err != nil {
					return fmt.Errorf("%s/%q: %w", family, key, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// rowWriter applies mutations to one row of one family inside a batch.
type rowWriter struct {
	tx       *sql.Tx
	keyspace string
	family   string
	key      []byte
}

func (w rowWriter) exec(ctx context.Context, query string, args ...any) error {
	_, err := w.tx.ExecContext(ctx, query, append([]any{w.keyspace, w.family, w.key}, args...)...)
	return err
}

func (w rowWriter) ensureRow(ctx context.Context) error {
	if err := w.exec(ctx, `
		INSERT INTO row_keys (keyspace, column_family, row_key)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`); err != nil {
		return fmt.Errorf("write row key: %w", err)
	}
	return nil
}

// upsert writes one cell unless the stored cell is newer.
func (w rowWriter) upsert(ctx context.Context, name, sub string, super int, c widecol.Column) error {
	value := c.Value
	if value == nil {
		value = []byte{}
	}
	return w.exec(ctx, `
		INSERT INTO cells (keyspace, column_family, row_key, name, sub_name, super, value, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (keyspace, column_family, row_key, name, sub_name)
		DO UPDATE SET value = excluded.value, ts = excluded.ts, super = excluded.super
		WHERE excluded.ts >= cells.ts
	`, blob(name), blob(sub), super, value, c.Timestamp)
}

func (w rowWriter) insert(ctx context.Context, c widecol.ColumnOrSuperColumn) error {
	if c.Column != nil {
		// A bare column replaces a super column of the same name.
		if err := w.exec(ctx, `
			DELETE FROM cells
			WHERE keyspace = ? AND column_family = ? AND row_key = ? AND name = ? AND super = 1
		`, blob(c.Column.Name)); err != nil {
			return fmt.Errorf("replace super column: %w", err)
		}
		if err := w.upsert(ctx, c.Column.Name, "", 0, *c.Column); err != nil {
			return fmt.Errorf("write column: %w", err)
		}
		return nil
	}

	sc := c.SuperColumn
	if err := w.exec(ctx, `
		DELETE FROM cells
		WHERE keyspace = ? AND column_family = ? AND row_key = ? AND name = ? AND super = 0
	`, blob(sc.Name)); err != nil {
		return fmt.Errorf("replace column: %w", err)
	}
	for _, col := range sc.Columns {
		if err := w.upsert(ctx, sc.Name, col.Name, 1, col); err != nil {
			return fmt.Errorf("write sub-column: %w", err)
		}
	}
	return nil
}

func (w rowWriter) delete(ctx context.Context, d widecol.Deletion) error {
	const base = `
		DELETE FROM cells
		WHERE keyspace = ? AND column_family = ? AND row_key = ? AND ts <= ?`

	var err error
	switch {
	case d.SuperColumn != "" && d.Predicate != nil:
		for _, name := range d.Predicate.ColumnNames {
			if err = w.exec(ctx, base+` AND name = ? AND super = 1 AND sub_name = ?`, d.Timestamp, blob(d.SuperColumn), blob(name)); err != nil {
				break
			}
		}
	case d.SuperColumn != "":
		err = w.exec(ctx, base+` AND name = ? AND super = 1`, d.Timestamp, blob(d.SuperColumn))
	case d.Predicate != nil:
		for _, name := range d.Predicate.ColumnNames {
			if err = w.exec(ctx, base+` AND name = ?`, d.Timestamp, blob(name)); err != nil {
				break
			}
		}
	default:
		err = w.exec(ctx, base, d.Timestamp)
	}
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}
