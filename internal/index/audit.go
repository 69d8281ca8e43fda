package index

import (
	"context"
	"fmt"

	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/metrics"
	"github.com/roach88/widetriple/internal/widecol"
)

// DriftKind classifies an index entry that disagrees with the primary
// families.
type DriftKind string

const (
	// Stale: a membership with no justifying triple.
	Stale DriftKind = "stale"
	// Missing: a triple whose membership is absent.
	Missing DriftKind = "missing"
)

// Drift is one disagreement found by Audit.
type Drift struct {
	Kind      DriftKind
	Direction Direction
	Indexed   ir.Term
	Related   ir.Term
}

func (d Drift) String() string {
	return fmt.Sprintf("%s %s: %s -> %s", d.Kind, d.Direction, termString(d.Indexed), d.Related)
}

func termString(t ir.Term) string {
	if t == nil {
		return "?"
	}
	return t.String()
}

// DriftReport summarizes an audit.
type DriftReport struct {
	Memberships int // index memberships checked
	Triples     int // primary triples checked
	Malformed   int // index entries that failed to decode
	Drift       []Drift
}

// Clean reports whether the audit found no drift.
func (r DriftReport) Clean() bool {
	return len(r.Drift) == 0
}

// Audit re-checks every enabled index against the primary families.
//
// It scans each index row and queries the primary families for a triple
// justifying every membership (stale entries), then scans the primary
// families and looks up the membership of every triple (missing entries).
// Drift is logged and counted; Audit never repairs it.
func (m *Maintainer) Audit(ctx context.Context, opts ...widecol.CallOption) (DriftReport, error) {
	var report DriftReport
	if len(m.directions) == 0 {
		return report, nil
	}

	for _, family := range m.IndexFamilies() {
		if err := m.auditFamily(ctx, family, &report, opts); err != nil {
			return report, err
		}
	}
	if err := m.auditPrimary(ctx, &report, opts); err != nil {
		return report, err
	}
	return report, nil
}

func (m *Maintainer) auditFamily(ctx context.Context, family string, report *DriftReport, opts []widecol.CallOption) error {
	var dirs []Direction
	for _, d := range m.directions {
		if m.families.Family(d) == family {
			dirs = append(dirs, d)
		}
	}

	for ks, err := range m.client.EachKeySlice(ctx, family, opts...) {
		if err != nil {
			return fmt.Errorf("audit %s: %w", family, err)
		}
		var indexed ir.Term
		members := map[Direction][]widecol.Column{}
		for _, c := range ks.Columns {
			sc := c.SuperColumn
			if sc == nil {
				continue
			}
			if sc.Name == InfoColumn {
				if info, ok := sc.Column(ks.Key); ok {
					if t, err := ir.ParseTerm(string(info.Value)); err == nil {
						indexed = t
					}
				}
				continue
			}
			for _, d := range dirs {
				if sc.Name == string(d) {
					members[d] = sc.Columns
				}
			}
		}
		if len(members) == 0 {
			continue
		}
		if indexed == nil {
			report.Malformed++
			m.logger.WarnContext(ctx, "index row without info entry", "family", family, "row", ks.Key)
			continue
		}

		for _, d := range dirs {
			for _, col := range members[d] {
				related, err := ir.ParseTerm(string(col.Value))
				if err != nil {
					report.Malformed++
					metrics.RecordDecodeError()
					m.logger.WarnContext(ctx, "skipping undecodable index member", "direction", d, "row", ks.Key, "error", err)
					continue
				}
				report.Memberships++
				pattern := d.Justifying(indexed, related)
				// A member of the wrong kind (say a literal recorded as a
				// subject) can never be justified.
				if pattern.Validate() != nil {
					m.recordDrift(ctx, report, Drift{Kind: Stale, Direction: d, Indexed: indexed, Related: related})
					continue
				}
				ok, err := m.engine.Exists(ctx, pattern, opts...)
				if err != nil {
					return fmt.Errorf("audit %s membership: %w", d, err)
				}
				if !ok {
					m.recordDrift(ctx, report, Drift{Kind: Stale, Direction: d, Indexed: indexed, Related: related})
				}
			}
		}
	}
	return nil
}

func (m *Maintainer) auditPrimary(ctx context.Context, report *DriftReport, opts []widecol.CallOption) error {
	for t, err := range m.engine.Query(ctx, ir.Pattern{}, opts...) {
		if err != nil {
			return fmt.Errorf("audit primary: %w", err)
		}
		report.Triples++
		for _, d := range m.directions {
			indexed, related := d.Indexed(t), d.Related(t)
			_, ok, err := m.client.Lookup(ctx, ir.TermHash(indexed), widecol.ColumnPath{
				ColumnFamily: m.families.Family(d),
				SuperColumn:  string(d),
				Column:       ir.TermHash(related),
			}, opts...)
			if err != nil {
				return fmt.Errorf("audit %s lookup: %w", d, err)
			}
			if !ok {
				m.recordDrift(ctx, report, Drift{Kind: Missing, Direction: d, Indexed: indexed, Related: related})
			}
		}
	}
	return nil
}

func (m *Maintainer) recordDrift(ctx context.Context, report *DriftReport, d Drift) {
	report.Drift = append(report.Drift, d)
	metrics.RecordDrift(string(d.Direction))
	m.logger.WarnContext(ctx, "index drift",
		"kind", d.Kind,
		"direction", d.Direction,
		"indexed", termString(d.Indexed),
		"related", d.Related,
	)
}
