// Package batch accumulates triple inserts and flushes them in bounded
// batched-mutate calls.
package batch

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/roach88/widetriple/internal/index"
	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/metrics"
	"github.com/roach88/widetriple/internal/rowmap"
	"github.com/roach88/widetriple/internal/widecol"
)

// DefaultThreshold is the number of triples per flushed batch.
const DefaultThreshold = 100

// Builder collects row → family → mutations for a run of triples. Every
// Add stamps its writes with a fresh clock value; conflicting writes are
// left to the store's last-write-wins.
//
// A Builder is used by one goroutine at a time.
type Builder struct {
	client    *widecol.Client
	family    string
	index     *index.Maintainer
	threshold int
	callOpts  []widecol.CallOption

	mm      widecol.MutationMap
	pending int
	flushed int
}

// Option configures a Builder.
type Option func(*Builder)

// WithThreshold sets the triples-per-batch threshold.
func WithThreshold(n int) Option {
	return func(b *Builder) { b.threshold = n }
}

// WithIndex adds each triple's index writes to the same batch.
func WithIndex(m *index.Maintainer) Option {
	return func(b *Builder) { b.index = m }
}

// WithCallOptions applies options (consistency) to every flush.
func WithCallOptions(opts ...widecol.CallOption) Option {
	return func(b *Builder) { b.callOpts = opts }
}

// New creates a builder writing to the primary family.
func New(client *widecol.Client, family string, opts ...Option) (*Builder, error) {
	b := &Builder{
		client:    client,
		family:    family,
		threshold: DefaultThreshold,
		mm:        widecol.MutationMap{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.threshold <= 0 {
		return nil, fmt.Errorf("batch threshold must be positive, got %d", b.threshold)
	}
	if b.family == "" {
		return nil, fmt.Errorf("batch: empty column family")
	}
	return b, nil
}

// Add queues t and flushes once the threshold is reached.
func (b *Builder) Add(ctx context.Context, t ir.Triple) error {
	ts := b.client.Clock().Now()
	if _, err := rowmap.AppendInsert(b.mm, b.family, t, ts); err != nil {
		return err
	}
	if b.index != nil {
		b.index.AppendInsert(b.mm, t, ts)
	}
	b.pending++
	if b.pending >= b.threshold {
		return b.Flush(ctx)
	}
	return nil
}

// Flush sends queued triples in one batched-mutate call. With nothing
// queued it issues no call.
func (b *Builder) Flush(ctx context.Context) error {
	if b.pending == 0 {
		return nil
	}
	n := b.pending
	if err := b.client.BatchMutate(ctx, b.mm, b.callOpts...); err != nil {
		return fmt.Errorf("flush %d triples: %w", n, err)
	}
	b.mm = widecol.MutationMap{}
	b.pending = 0
	b.flushed += n

	metrics.RecordBatchFlush(n)
	metrics.RecordInserted(n)
	b.client.Logger().DebugContext(ctx, "batch flushed", "family", b.family, "triples", n, "total", b.flushed)
	return nil
}

// Pending returns the number of queued, unflushed triples.
func (b *Builder) Pending() int { return b.pending }

// Flushed returns the number of triples written so far.
func (b *Builder) Flushed() int { return b.flushed }

// InsertAll adds every triple of seq and flushes the remainder when seq is
// exhausted. It returns the number of triples written by this call.
//
// A triple that fails to encode stops the run: triples queued before it
// are flushed first, then the encode error is returned. On a store error
// the unflushed batch is lost and only earlier batches count.
func (b *Builder) InsertAll(ctx context.Context, seq iter.Seq[ir.Triple]) (int, error) {
	start := b.flushed
	for t := range seq {
		queued := b.pending
		if err := b.Add(ctx, t); err != nil {
			if b.pending == queued {
				if ferr := b.Flush(ctx); ferr != nil {
					return b.flushed - start, errors.Join(err, ferr)
				}
			}
			return b.flushed - start, err
		}
	}
	if err := b.Flush(ctx); err != nil {
		return b.flushed - start, err
	}
	return b.flushed - start, nil
}
