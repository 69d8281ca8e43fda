package widecol

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/roach88/widetriple/internal/metrics"
)

// DefaultSliceSize is the page width used when neither the client nor the
// call sets one.
const DefaultSliceSize = 100

// Client issues the store primitives against a Backend.
//
// Every call resolves its consistency level from the call options, then the
// client default. Levels are validated before any I/O; reads at ANY are
// rejected. Each primitive is timed, counted in metrics and logged at debug.
//
// Thread-safety: Client holds no mutable state of its own and is safe for
// concurrent use when its Backend is.
type Client struct {
	backend     Backend
	consistency ConsistencyLevel
	sliceSize   int
	clock       Clock
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDefaultConsistency sets the level used by calls that don't pass one.
func WithDefaultConsistency(level ConsistencyLevel) ClientOption {
	return func(c *Client) { c.consistency = level }
}

// WithDefaultSliceSize sets the pagination page width.
func WithDefaultSliceSize(n int) ClientOption {
	return func(c *Client) { c.sliceSize = n }
}

// WithClock sets the source of write timestamps.
func WithClock(clock Clock) ClientOption {
	return func(c *Client) { c.clock = clock }
}

// WithLogger sets the logger. Nil means slog.Default().
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient wraps a backend.
func NewClient(b Backend, opts ...ClientOption) (*Client, error) {
	c := &Client{
		backend:     b,
		consistency: DefaultConsistency,
		sliceSize:   DefaultSliceSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if b == nil {
		return nil, fmt.Errorf("widecol: nil backend")
	}
	if !c.consistency.Valid() {
		return nil, fmt.Errorf("widecol: default %w: %d", ErrInvalidConsistency, int(c.consistency))
	}
	if c.sliceSize <= 0 {
		return nil, fmt.Errorf("widecol: slice size must be positive, got %d", c.sliceSize)
	}
	if c.clock == nil {
		c.clock = NewWallClock()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Consistency returns the client's default level.
func (c *Client) Consistency() ConsistencyLevel { return c.consistency }

// SliceSize returns the client's default page width.
func (c *Client) SliceSize() int { return c.sliceSize }

// Clock returns the timestamp source for writes.
func (c *Client) Clock() Clock { return c.clock }

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Close closes the backend.
func (c *Client) Close() error {
	return c.backend.Close()
}

// callConfig is the resolved set of per-call options.
type callConfig struct {
	consistency ConsistencyLevel
	firstKey    string
	limit       int // < 0 means unlimited
	sliceSize   int
	predicate   SlicePredicate
	superColumn string
}

// CallOption adjusts a single call.
type CallOption func(*callConfig)

// WithConsistency overrides the consistency level for one call.
func WithConsistency(level ConsistencyLevel) CallOption {
	return func(cc *callConfig) { cc.consistency = level }
}

// WithFirstKey starts a scan at key (inclusive).
func WithFirstKey(key string) CallOption {
	return func(cc *callConfig) { cc.firstKey = key }
}

// WithLimit caps the number of rows a scan yields. Zero yields nothing and
// issues no request.
func WithLimit(n int) CallOption {
	return func(cc *callConfig) { cc.limit = n }
}

// WithSliceSize sets the page width for one scan.
func WithSliceSize(n int) CallOption {
	return func(cc *callConfig) { cc.sliceSize = n }
}

// WithColumnRange selects each row's columns by name range.
func WithColumnRange(start, finish string, count int) CallOption {
	return func(cc *callConfig) { cc.predicate = ByRange(start, finish, count) }
}

// WithPredicate selects each row's columns with pred.
func WithPredicate(pred SlicePredicate) CallOption {
	return func(cc *callConfig) { cc.predicate = pred }
}

// WithSuperColumn scans the sub-columns of one super column per row.
func WithSuperColumn(name string) CallOption {
	return func(cc *callConfig) { cc.superColumn = name }
}

func (c *Client) resolve(read bool, opts []CallOption) (callConfig, error) {
	cc := callConfig{
		consistency: c.consistency,
		limit:       -1,
		sliceSize:   c.sliceSize,
	}
	for _, opt := range opts {
		opt(&cc)
	}
	if !cc.consistency.Valid() {
		return cc, fmt.Errorf("%w: %d", ErrInvalidConsistency, int(cc.consistency))
	}
	if read && !cc.consistency.ValidForRead() {
		return cc, fmt.Errorf("%w: %s is write-only", ErrInvalidConsistency, cc.consistency)
	}
	if cc.sliceSize <= 0 {
		return cc, fmt.Errorf("widecol: slice size must be positive, got %d", cc.sliceSize)
	}
	return cc, nil
}

func (c *Client) observe(ctx context.Context, op string, start time.Time, err error, attrs ...any) {
	outcome := metrics.OutcomeOK
	switch {
	case IsNotFound(err):
		outcome = metrics.OutcomeNotFound
	case err != nil:
		outcome = metrics.OutcomeError
	}
	d := time.Since(start)
	metrics.ObserveStoreCall(op, outcome, d)
	c.logger.DebugContext(ctx, "store call", append([]any{"op", op, "outcome", outcome, "duration", d}, attrs...)...)
}

// Get reads one column, super column or sub-column.
// Absent entries return ErrNotFound.
func (c *Client) Get(ctx context.Context, key string, path ColumnPath, opts ...CallOption) (ColumnOrSuperColumn, error) {
	cc, err := c.resolve(true, opts)
	if err != nil {
		return ColumnOrSuperColumn{}, err
	}
	start := time.Now()
	res, err := c.backend.Get(ctx, key, path, cc.consistency)
	c.observe(ctx, "get", start, err, "family", path.ColumnFamily, "key", key)
	if err != nil {
		if IsNotFound(err) {
			return ColumnOrSuperColumn{}, err
		}
		return ColumnOrSuperColumn{}, fmt.Errorf("get %s/%q: %w", path.ColumnFamily, key, err)
	}
	return res, nil
}

// Lookup is Get with absence reported as ok=false instead of an error.
func (c *Client) Lookup(ctx context.Context, key string, path ColumnPath, opts ...CallOption) (ColumnOrSuperColumn, bool, error) {
	res, err := c.Get(ctx, key, path, opts...)
	if IsNotFound(err) {
		return ColumnOrSuperColumn{}, false, nil
	}
	if err != nil {
		return ColumnOrSuperColumn{}, false, err
	}
	return res, true, nil
}

// GetSlice returns the entries of one row selected by pred. An absent row
// is an empty slice.
func (c *Client) GetSlice(ctx context.Context, key string, parent ColumnParent, pred SlicePredicate, opts ...CallOption) ([]ColumnOrSuperColumn, error) {
	cc, err := c.resolve(true, opts)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := c.backend.GetSlice(ctx, key, parent, pred, cc.consistency)
	if IsNotFound(err) {
		err = nil
	}
	c.observe(ctx, "get_slice", start, err, "family", parent.ColumnFamily, "key", key, "columns", len(res))
	if err != nil {
		return nil, fmt.Errorf("get slice %s/%q: %w", parent.ColumnFamily, key, err)
	}
	return res, nil
}

// GetCount returns the number of entries under parent.
func (c *Client) GetCount(ctx context.Context, key string, parent ColumnParent, opts ...CallOption) (int, error) {
	cc, err := c.resolve(true, opts)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	n, err := c.backend.GetCount(ctx, key, parent, cc.consistency)
	if IsNotFound(err) {
		n, err = 0, nil
	}
	c.observe(ctx, "get_count", start, err, "family", parent.ColumnFamily, "key", key)
	if err != nil {
		return 0, fmt.Errorf("get count %s/%q: %w", parent.ColumnFamily, key, err)
	}
	return n, nil
}

// GetRangeSlices issues one bounded key-range scan.
func (c *Client) GetRangeSlices(ctx context.Context, parent ColumnParent, pred SlicePredicate, kr KeyRange, opts ...CallOption) ([]KeySlice, error) {
	cc, err := c.resolve(true, opts)
	if err != nil {
		return nil, err
	}
	return c.rangeSlices(ctx, parent, pred, kr, cc)
}

func (c *Client) rangeSlices(ctx context.Context, parent ColumnParent, pred SlicePredicate, kr KeyRange, cc callConfig) ([]KeySlice, error) {
	start := time.Now()
	res, err := c.backend.GetRangeSlices(ctx, parent, pred, kr, cc.consistency)
	c.observe(ctx, "get_range_slices", start, err, "family", parent.ColumnFamily, "start", kr.StartKey, "count", kr.Count, "rows", len(res))
	if err != nil {
		return nil, fmt.Errorf("get range slices %s from %q: %w", parent.ColumnFamily, kr.StartKey, err)
	}
	return res, nil
}

// BatchMutate applies mm in one store call. An empty map issues no call.
func (c *Client) BatchMutate(ctx context.Context, mm MutationMap, opts ...CallOption) error {
	cc, err := c.resolve(false, opts)
	if err != nil {
		return err
	}
	if mm.Len() == 0 {
		return nil
	}
	if err := mm.Validate(); err != nil {
		return err
	}
	start := time.Now()
	err = c.backend.BatchMutate(ctx, mm, cc.consistency)
	c.observe(ctx, "batch_mutate", start, err, "rows", len(mm), "mutations", mm.Len())
	if err != nil {
		return fmt.Errorf("batch mutate: %w", err)
	}
	return nil
}

// Row is the nested value form accepted by Insert: bare columns and super
// columns by name.
type Row struct {
	Columns      map[string][]byte
	SuperColumns map[string]map[string][]byte
}

// Mutations converts r into insert mutations stamped with ts, in name order.
func (r Row) Mutations(ts int64) []Mutation {
	muts := make([]Mutation, 0, len(r.Columns)+len(r.SuperColumns))
	for _, name := range slices.Sorted(maps.Keys(r.Columns)) {
		muts = append(muts, InsertColumn(Column{Name: name, Value: r.Columns[name], Timestamp: ts}))
	}
	for _, name := range slices.Sorted(maps.Keys(r.SuperColumns)) {
		sub := r.SuperColumns[name]
		sc := SuperColumn{Name: name, Columns: make([]Column, 0, len(sub))}
		for _, col := range slices.Sorted(maps.Keys(sub)) {
			sc.Columns = append(sc.Columns, Column{Name: col, Value: sub[col], Timestamp: ts})
		}
		muts = append(muts, InsertSuperColumn(sc))
	}
	return muts
}

// Insert writes one row's values in a single call.
func (c *Client) Insert(ctx context.Context, family, key string, row Row, opts ...CallOption) error {
	return c.InsertData(ctx, map[string]map[string]Row{family: {key: row}}, opts...)
}

// InsertData writes family → key → row in a single call, every value
// stamped with the same timestamp.
func (c *Client) InsertData(ctx context.Context, data map[string]map[string]Row, opts ...CallOption) error {
	ts := c.clock.Now()
	mm := make(MutationMap)
	for family, rows := range data {
		for key, row := range rows {
			if muts := row.Mutations(ts); len(muts) > 0 {
				mm.Add(key, family, muts...)
			}
		}
	}
	return c.BatchMutate(ctx, mm, opts...)
}

// Remove deletes from one row. A nil path removes every column; otherwise
// the path names a super column, a top-level column, or one sub-column.
// The row key itself stays.
func (c *Client) Remove(ctx context.Context, family, key string, path *ColumnPath, opts ...CallOption) error {
	ts := c.clock.Now()
	var mut Mutation
	switch {
	case path == nil || (path.SuperColumn == "" && path.Column == ""):
		mut = DeleteRow(ts)
	case path.Column == "":
		mut = DeleteSuperColumn(ts, path.SuperColumn)
	default:
		mut = DeleteColumns(ts, path.SuperColumn, path.Column)
	}
	mm := make(MutationMap)
	mm.Add(key, family, mut)
	return c.BatchMutate(ctx, mm, opts...)
}
