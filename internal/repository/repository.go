// Package repository is the triple store API: insert, delete and pattern
// queries over one wide-column backend, with optional secondary indexes.
//
// The primitive operations live here; count, emptiness and containment are
// composed from them in derived.go.
package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/roach88/widetriple/internal/batch"
	"github.com/roach88/widetriple/internal/config"
	"github.com/roach88/widetriple/internal/index"
	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/memstore"
	"github.com/roach88/widetriple/internal/metrics"
	"github.com/roach88/widetriple/internal/query"
	"github.com/roach88/widetriple/internal/rowmap"
	"github.com/roach88/widetriple/internal/store"
	"github.com/roach88/widetriple/internal/widecol"
)

// Repository stores triples in one primary column family and reads them
// from every monitored primary family.
//
// Calls block and take a context. A Repository may be shared, but the
// index reference check on delete is not atomic with concurrent inserts
// (see package index).
type Repository struct {
	client    *widecol.Client
	engine    *query.Engine
	index     *index.Maintainer
	family    string
	batchSize int
	logger    *slog.Logger
	server    string
}

type options struct {
	logger   *slog.Logger
	clock    widecol.Clock
	onDecode query.DecodeErrorHandler
}

// Option configures a Repository.
type Option func(*options)

// WithLogger sets the logger for the repository and its client.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the write timestamp source.
func WithClock(c widecol.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDecodeErrorHandler receives stored values skipped during scans.
func WithDecodeErrorHandler(h query.DecodeErrorHandler) Option {
	return func(o *options) { o.onDecode = h }
}

// Open connects to the first available server of cfg.Servers and returns
// a repository on it. Servers are tried in order; unavailable ones are
// logged and skipped.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Repository, error) {
	o := resolve(opts)
	var errs []error
	for _, server := range cfg.Servers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := openBackend(server, cfg.Keyspace)
		if err != nil {
			o.logger.WarnContext(ctx, "server unavailable", "server", server, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", server, err))
			continue
		}
		r, err := New(b, cfg, opts...)
		if err != nil {
			b.Close()
			return nil, err
		}
		r.server = server
		o.logger.DebugContext(ctx, "repository opened", "server", server, "keyspace", cfg.Keyspace)
		return r, nil
	}
	if len(errs) == 0 {
		return nil, errors.New("no servers configured")
	}
	return nil, fmt.Errorf("no server available: %w", errors.Join(errs...))
}

// openBackend opens one server address: "sqlite:<path>" or "memory:".
func openBackend(server, keyspace string) (widecol.Backend, error) {
	scheme, rest, _ := strings.Cut(server, ":")
	switch scheme {
	case "sqlite":
		if rest == "" {
			return nil, errors.New("sqlite server needs a path")
		}
		return store.Open(rest, keyspace)
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unsupported server scheme %q", scheme)
	}
}

// New builds a repository on an already open backend. The repository owns
// b and closes it on Close.
func New(b widecol.Backend, cfg config.Config, opts ...Option) (*Repository, error) {
	o := resolve(opts)

	level, err := widecol.ParseConsistency(cfg.Consistency)
	if err != nil {
		return nil, err
	}
	if !level.ValidForRead() {
		return nil, fmt.Errorf("%w: default level %s is write-only", widecol.ErrInvalidConsistency, level)
	}
	clientOpts := []widecol.ClientOption{
		widecol.WithDefaultConsistency(level),
		widecol.WithLogger(o.logger),
	}
	if cfg.SliceSize > 0 {
		clientOpts = append(clientOpts, widecol.WithDefaultSliceSize(cfg.SliceSize))
	}
	if o.clock != nil {
		clientOpts = append(clientOpts, widecol.WithClock(o.clock))
	}
	client, err := widecol.NewClient(b, clientOpts...)
	if err != nil {
		return nil, err
	}

	if cfg.ColumnFamily == "" {
		return nil, errors.New("empty column family")
	}
	primary := cfg.PrimaryFamilies()
	engine := query.New(client, primary,
		query.WithLogger(o.logger),
		query.WithDecodeErrorHandler(o.onDecode),
	)

	dirs := make([]index.Direction, 0, len(cfg.Index.Directions))
	for _, s := range cfg.Index.Directions {
		d, err := index.ParseDirection(s)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, d)
	}
	idx, err := index.New(client, engine, dirs, index.Families{
		Predicate: cfg.Index.PredicateFamily,
		Object:    cfg.Index.ObjectFamily,
	})
	if err != nil {
		return nil, err
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = batch.DefaultThreshold
	}
	return &Repository{
		client:    client,
		engine:    engine,
		index:     idx,
		family:    cfg.ColumnFamily,
		batchSize: batchSize,
		logger:    o.logger,
	}, nil
}

func resolve(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Close closes the backend.
func (r *Repository) Close() error {
	return r.client.Close()
}

// Server returns the address the repository was opened on, or "" when
// built with New.
func (r *Repository) Server() string { return r.server }

// Client returns the underlying store client.
func (r *Repository) Client() *widecol.Client { return r.client }

// Index returns the index maintainer. With no directions enabled it does
// nothing.
func (r *Repository) Index() *index.Maintainer { return r.index }

// Families returns every column family the repository touches: the
// primary families first, then the index families of enabled directions.
func (r *Repository) Families() []string {
	return append(append([]string(nil), r.engine.Families()...), r.index.IndexFamilies()...)
}

// Insert stores t. Inserting a triple that is already present rewrites the
// same sub-column. A legacy bare column for the same predicate is first
// upgraded to the multi-value form so its object is kept.
func (r *Repository) Insert(ctx context.Context, t ir.Triple, opts ...widecol.CallOption) error {
	enc, err := rowmap.Encode(t)
	if err != nil {
		return err
	}

	legacy, err := r.legacyColumn(ctx, enc, opts)
	if err != nil {
		return err
	}

	ts := r.client.Clock().Now()
	mm := widecol.MutationMap{}
	if legacy != nil {
		r.logger.DebugContext(ctx, "upgrading legacy column", "row", enc.RowKey, "column", enc.Column)
		mm.Add(enc.RowKey, r.family, rowmap.UpgradeLegacy(*legacy, ts))
	}
	mm.Add(enc.RowKey, r.family, enc.InsertMutation(ts))
	r.index.AppendInsert(mm, t, ts)

	if err := r.client.BatchMutate(ctx, mm, opts...); err != nil {
		return fmt.Errorf("insert %s: %w", t, err)
	}
	metrics.RecordInserted(1)
	return nil
}

// Delete removes t from the write family, then updates the indexes. A
// legacy bare column holding t's object is removed as well. Deleting an
// absent triple is not an error.
func (r *Repository) Delete(ctx context.Context, t ir.Triple, opts ...widecol.CallOption) error {
	enc, err := rowmap.Encode(t)
	if err != nil {
		return err
	}

	legacy, err := r.legacyColumn(ctx, enc, opts)
	if err != nil {
		return err
	}

	ts := r.client.Clock().Now()
	mm := widecol.MutationMap{}
	mm.Add(enc.RowKey, r.family, enc.DeleteMutation(ts))
	if legacy != nil && legacyHolds(*legacy, t.Object) {
		mm.Add(enc.RowKey, r.family, enc.LegacyDeleteMutation(ts))
	}
	if err := r.client.BatchMutate(ctx, mm, opts...); err != nil {
		return fmt.Errorf("delete %s: %w", t, err)
	}

	if _, err := r.index.Delete(ctx, t, opts...); err != nil {
		return fmt.Errorf("delete %s: %w", t, err)
	}
	metrics.RecordDeleted(1)
	return nil
}

// legacyColumn returns the bare column stored for enc's predicate, if any.
func (r *Repository) legacyColumn(ctx context.Context, enc rowmap.Encoded, opts []widecol.CallOption) (*widecol.Column, error) {
	res, ok, err := r.client.Lookup(ctx, enc.RowKey, widecol.ColumnPath{
		ColumnFamily: r.family,
		Column:       enc.Column,
	}, opts...)
	if err != nil || !ok {
		return nil, err
	}
	return res.Column, nil
}

func legacyHolds(c widecol.Column, object ir.Term) bool {
	stored, err := ir.ParseTerm(string(c.Value))
	return err == nil && ir.Equal(stored, object)
}

// InsertAll bulk-inserts seq through a batch builder flushing every
// batch_size triples. It returns the number of triples written; see
// batch.Builder.InsertAll for partial failures.
func (r *Repository) InsertAll(ctx context.Context, seq iter.Seq[ir.Triple], opts ...widecol.CallOption) (int, error) {
	b, err := batch.New(r.client, r.family,
		batch.WithThreshold(r.batchSize),
		batch.WithIndex(r.index),
		batch.WithCallOptions(opts...),
	)
	if err != nil {
		return 0, err
	}
	return b.InsertAll(ctx, seq)
}

// Query returns the triples matching p. See query.Engine.Query.
func (r *Repository) Query(ctx context.Context, p ir.Pattern, opts ...widecol.CallOption) iter.Seq2[ir.Triple, error] {
	return r.engine.Query(ctx, p, opts...)
}

// Each returns every stored triple.
func (r *Repository) Each(ctx context.Context, opts ...widecol.CallOption) iter.Seq2[ir.Triple, error] {
	return r.engine.Query(ctx, ir.Pattern{}, opts...)
}

// Exists reports whether any triple matches p.
func (r *Repository) Exists(ctx context.Context, p ir.Pattern, opts ...widecol.CallOption) (bool, error) {
	return r.engine.Exists(ctx, p, opts...)
}

// Audit checks the enabled indexes against the primary families.
func (r *Repository) Audit(ctx context.Context, opts ...widecol.CallOption) (index.DriftReport, error) {
	return r.index.Audit(ctx, opts...)
}

// Clear removes every column from the primary and index families and
// returns the number of rows cleared. Row keys stay behind as tombstones.
func (r *Repository) Clear(ctx context.Context, opts ...widecol.CallOption) (int, error) {
	scanOpts := append([]widecol.CallOption{widecol.WithColumnRange("", "", 1)}, opts...)
	cleared := 0
	for _, family := range r.Families() {
		mm := widecol.MutationMap{}
		flush := func() error {
			if err := r.client.BatchMutate(ctx, mm, opts...); err != nil {
				return fmt.Errorf("clear %s: %w", family, err)
			}
			cleared += len(mm)
			mm = widecol.MutationMap{}
			return nil
		}
		for ks, err := range r.client.EachKeySlice(ctx, family, scanOpts...) {
			if err != nil {
				return cleared, err
			}
			if !rowmap.HasColumns(ks) {
				continue
			}
			mm.Add(ks.Key, family, widecol.DeleteRow(r.client.Clock().Now()))
			if len(mm) >= r.batchSize {
				if err := flush(); err != nil {
					return cleared, err
				}
			}
		}
		if err := flush(); err != nil {
			return cleared, err
		}
	}
	r.logger.InfoContext(ctx, "repository cleared", "rows", cleared)
	return cleared, nil
}
