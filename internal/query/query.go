// Package query evaluates triple patterns against the primary families.
//
// Every query is a primary-store scan. A bound subject narrows the scan to
// a single-row fetch through the paginator (first key = subject, page
// width 1, limit 1); anything else scans the whole family. Rows are then
// filtered by predicate and object. Indexes are never consulted here.
package query

import (
	"context"
	"iter"
	"log/slog"

	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/metrics"
	"github.com/roach88/widetriple/internal/rowmap"
	"github.com/roach88/widetriple/internal/widecol"
)

// DecodeErrorHandler receives stored values that failed to decode. The
// scan skips them and continues.
type DecodeErrorHandler func(ctx context.Context, err *rowmap.DecodeError)

// Engine scans one or more primary column families.
type Engine struct {
	client   *widecol.Client
	families []string
	logger   *slog.Logger
	onDecode DecodeErrorHandler
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Nil means the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithDecodeErrorHandler is called for every skipped value, after it is
// logged and counted.
func WithDecodeErrorHandler(h DecodeErrorHandler) Option {
	return func(e *Engine) { e.onDecode = h }
}

// New creates an engine over the given primary families, scanned in order.
func New(client *widecol.Client, families []string, opts ...Option) *Engine {
	e := &Engine{client: client, families: families}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = client.Logger()
	}
	return e
}

// Families returns the scanned primary families.
func (e *Engine) Families() []string {
	return e.families
}

// Query returns the triples matching p. Each call returns a fresh sequence
// and every iteration re-scans the store; nothing is cached. Call options
// (consistency, slice size) apply to every scan.
func (e *Engine) Query(ctx context.Context, p ir.Pattern, opts ...widecol.CallOption) iter.Seq2[ir.Triple, error] {
	return func(yield func(ir.Triple, error) bool) {
		if err := p.Validate(); err != nil {
			yield(ir.Triple{}, err)
			return
		}

		scanOpts := append([]widecol.CallOption(nil), opts...)
		var subjectKey string
		if p.Subject != nil {
			subjectKey = ir.SubjectKey(p.Subject)
			scanOpts = append(scanOpts, widecol.WithFirstKey(subjectKey), widecol.WithSliceSize(1), widecol.WithLimit(1))
		}
		var predicate string
		if p.Predicate != nil {
			predicate = string(p.Predicate.(ir.IRI))
			scanOpts = append(scanOpts, widecol.WithPredicate(widecol.ByNames(predicate)))
		}

		for _, family := range e.families {
			for ks, err := range e.client.EachKeySlice(ctx, family, scanOpts...) {
				if err != nil {
					yield(ir.Triple{}, err)
					return
				}
				// The single-row fetch returns the next key when the
				// subject has no row.
				if subjectKey != "" && ks.Key != subjectKey {
					continue
				}
				for _, c := range ks.Columns {
					if predicate != "" && c.Name() != predicate {
						continue
					}
					triples, errs := rowmap.DecodeColumn(ks.Key, c)
					for _, de := range errs {
						e.reportDecodeError(ctx, de)
					}
					for _, t := range triples {
						if p.Object != nil && !ir.Equal(p.Object, t.Object) {
							continue
						}
						if !yield(t, nil) {
							return
						}
					}
				}
			}
		}
	}
}

// Exists reports whether any triple matches p. It stops at the first match.
func (e *Engine) Exists(ctx context.Context, p ir.Pattern, opts ...widecol.CallOption) (bool, error) {
	for _, err := range e.Query(ctx, p, opts...) {
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (e *Engine) reportDecodeError(ctx context.Context, de *rowmap.DecodeError) {
	metrics.RecordDecodeError()
	e.logger.WarnContext(ctx, "skipping undecodable value",
		"row", de.RowKey,
		"column", de.Column,
		"sub_key", de.SubKey,
		"error", de.Err,
	)
	if e.onDecode != nil {
		e.onDecode(ctx, de)
	}
}
