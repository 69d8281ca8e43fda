// Package index maintains the secondary index rows.
//
// Each enabled direction keeps one row per indexed term, keyed by the
// content hash of the term's serialized form:
//
//	info         hash(indexed) → indexed term    (written once, never removed)
//	<direction>  hash(related) → related term    (one entry per member)
//
// Inserts add memberships in the same batch as the primary write. Deletes
// remove a membership only after a primary-store query finds no remaining
// triple that justifies it.
//
// # Known Race
//
// The reference check and the removal are two store calls. A delete of the
// last justifying triple racing an insert of a new one can remove a
// membership that should stay (or keep one that should go). Callers that
// need strict results serialize mutations on the same terms. Audit reports
// whatever drift results; nothing repairs it automatically.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/metrics"
	"github.com/roach88/widetriple/internal/query"
	"github.com/roach88/widetriple/internal/widecol"
)

// InfoColumn is the super column holding the indexed term.
const InfoColumn = "info"

// Maintainer keeps the enabled index directions in step with the primary
// families.
type Maintainer struct {
	client     *widecol.Client
	engine     *query.Engine
	directions []Direction
	families   Families
	logger     *slog.Logger
}

// New creates a maintainer. The engine must scan every monitored primary
// family; it answers the reference checks on delete. Duplicate directions
// are collapsed.
func New(client *widecol.Client, engine *query.Engine, directions []Direction, families Families) (*Maintainer, error) {
	if families.Predicate == "" {
		families.Predicate = DefaultFamilies.Predicate
	}
	if families.Object == "" {
		families.Object = DefaultFamilies.Object
	}

	var dirs []Direction
	for _, d := range directions {
		if _, err := ParseDirection(string(d)); err != nil {
			return nil, err
		}
		if !slices.Contains(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	for _, primary := range engine.Families() {
		for _, d := range dirs {
			if families.Family(d) == primary {
				return nil, fmt.Errorf("index family %q for %s is also a primary family", primary, d)
			}
		}
	}

	return &Maintainer{
		client:     client,
		engine:     engine,
		directions: dirs,
		families:   families,
		logger:     client.Logger(),
	}, nil
}

// Directions returns the enabled directions.
func (m *Maintainer) Directions() []Direction {
	return m.directions
}

// Enabled reports whether d is maintained.
func (m *Maintainer) Enabled(d Direction) bool {
	return slices.Contains(m.directions, d)
}

// Families returns the index family names.
func (m *Maintainer) Families() Families {
	return m.families
}

// IndexFamilies returns the distinct families used by enabled directions.
func (m *Maintainer) IndexFamilies() []string {
	var out []string
	for _, d := range m.directions {
		if f := m.families.Family(d); !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// AppendInsert adds the index writes for t to mm, stamped with ts.
func (m *Maintainer) AppendInsert(mm widecol.MutationMap, t ir.Triple, ts int64) {
	for _, d := range m.directions {
		indexed, related := d.Indexed(t), d.Related(t)
		key := ir.TermHash(indexed)
		mm.Add(key, m.families.Family(d),
			widecol.InsertSuperColumn(widecol.SuperColumn{
				Name:    InfoColumn,
				Columns: []widecol.Column{{Name: key, Value: []byte(indexed.String()), Timestamp: ts}},
			}),
			widecol.InsertSuperColumn(widecol.SuperColumn{
				Name:    string(d),
				Columns: []widecol.Column{{Name: ir.TermHash(related), Value: []byte(related.String()), Timestamp: ts}},
			}),
		)
	}
}

// Delete updates the index after t was removed from the primary families.
//
// For each direction it queries the primary families, at the options'
// consistency level, for a triple that still justifies the membership, and
// removes the membership only when there is none. All removals go out in
// one batch. It returns the directions whose membership was removed.
func (m *Maintainer) Delete(ctx context.Context, t ir.Triple, opts ...widecol.CallOption) ([]Direction, error) {
	if len(m.directions) == 0 {
		return nil, nil
	}

	mm := widecol.MutationMap{}
	var removed []Direction
	for _, d := range m.directions {
		indexed, related := d.Indexed(t), d.Related(t)
		justified, err := m.engine.Exists(ctx, d.Justifying(indexed, related), opts...)
		if err != nil {
			return nil, fmt.Errorf("check %s membership: %w", d, err)
		}
		if justified {
			metrics.RecordMembershipRetained(string(d))
			m.logger.DebugContext(ctx, "index membership retained", "direction", d, "indexed", indexed, "related", related)
			continue
		}
		mm.Add(ir.TermHash(indexed), m.families.Family(d),
			widecol.DeleteColumns(m.client.Clock().Now(), string(d), ir.TermHash(related)))
		removed = append(removed, d)
	}

	if err := m.client.BatchMutate(ctx, mm, opts...); err != nil {
		return nil, fmt.Errorf("remove index memberships: %w", err)
	}
	for _, d := range removed {
		metrics.RecordMembershipRemoved(string(d))
	}
	return removed, nil
}

// HasMember reports whether the d index records any member for term.
func (m *Maintainer) HasMember(ctx context.Context, d Direction, term ir.Term, opts ...widecol.CallOption) (bool, error) {
	if !m.Enabled(d) {
		return false, fmt.Errorf("index direction %s is not enabled", d)
	}
	n, err := m.client.GetCount(ctx, ir.TermHash(term), widecol.ColumnParent{
		ColumnFamily: m.families.Family(d),
		SuperColumn:  string(d),
	}, opts...)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Members returns the related terms recorded for term in the d index,
// in hash order. Entries that fail to parse are skipped and logged.
func (m *Maintainer) Members(ctx context.Context, d Direction, term ir.Term, opts ...widecol.CallOption) ([]ir.Term, error) {
	if !m.Enabled(d) {
		return nil, fmt.Errorf("index direction %s is not enabled", d)
	}
	cols, err := m.client.GetSlice(ctx, ir.TermHash(term), widecol.ColumnParent{
		ColumnFamily: m.families.Family(d),
		SuperColumn:  string(d),
	}, widecol.AllColumns(), opts...)
	if err != nil {
		return nil, err
	}

	out := make([]ir.Term, 0, len(cols))
	for _, c := range cols {
		if c.Column == nil {
			continue
		}
		t, err := ir.ParseTerm(string(c.Column.Value))
		if err != nil {
			metrics.RecordDecodeError()
			m.logger.WarnContext(ctx, "skipping undecodable index member", "direction", d, "term", term, "error", err)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
