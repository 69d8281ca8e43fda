package testutil

import (
	"context"
	"sync"

	"github.com/roach88/widetriple/internal/widecol"
)

// Backend operation names recorded by RecordingBackend.
const (
	OpGet            = "get"
	OpGetSlice       = "get_slice"
	OpGetCount       = "get_count"
	OpGetRangeSlices = "get_range_slices"
	OpBatchMutate    = "batch_mutate"
)

// Call is one recorded backend call.
type Call struct {
	Op        string
	Key       string
	Family    string
	Level     widecol.ConsistencyLevel
	KeyRange  widecol.KeyRange // range scans only
	Mutations int              // batch mutations only
}

// RecordingBackend wraps a backend, records every call and can inject
// failures per operation.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type RecordingBackend struct {
	inner widecol.Backend

	mu    sync.Mutex
	calls []Call
	fail  map[string]error
}

// NewRecordingBackend wraps inner.
func NewRecordingBackend(inner widecol.Backend) *RecordingBackend {
	return &RecordingBackend{inner: inner, fail: make(map[string]error)}
}

// FailOn makes every later call to op return err. A nil err clears it.
func (r *RecordingBackend) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

// Calls returns a copy of the recorded calls.
func (r *RecordingBackend) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the recorded calls to one operation.
func (r *RecordingBackend) CallsTo(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// BatchSizes returns the mutation count of every BatchMutate call.
func (r *RecordingBackend) BatchSizes() []int {
	var out []int
	for _, c := range r.CallsTo(OpBatchMutate) {
		out = append(out, c.Mutations)
	}
	return out
}

// Reset forgets recorded calls. Injected failures stay.
func (r *RecordingBackend) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *RecordingBackend) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.fail[c.Op]
}

// Get implements widecol.Backend.
func (r *RecordingBackend) Get(ctx context.Context, key string, path widecol.ColumnPath, level widecol.ConsistencyLevel) (widecol.ColumnOrSuperColumn, error) {
	if err := r.record(Call{Op: OpGet, Key: key, Family: path.ColumnFamily, Level: level}); err != nil {
		return widecol.ColumnOrSuperColumn{}, err
	}
	return r.inner.Get(ctx, key, path, level)
}

// GetSlice implements widecol.Backend.
func (r *RecordingBackend) GetSlice(ctx context.Context, key string, parent widecol.ColumnParent, pred widecol.SlicePredicate, level widecol.ConsistencyLevel) ([]widecol.ColumnOrSuperColumn, error) {
	if err := r.record(Call{Op: OpGetSlice, Key: key, Family: parent.ColumnFamily, Level: level}); err != nil {
		return nil, err
	}
	return r.inner.GetSlice(ctx, key, parent, pred, level)
}

// GetCount implements widecol.Backend.
func (r *RecordingBackend) GetCount(ctx context.Context, key string, parent widecol.ColumnParent, level widecol.ConsistencyLevel) (int, error) {
	if err := r.record(Call{Op: OpGetCount, Key: key, Family: parent.ColumnFamily, Level: level}); err != nil {
		return 0, err
	}
	return r.inner.GetCount(ctx, key, parent, level)
}

// GetRangeSlices implements widecol.Backend.
func (r *RecordingBackend) GetRangeSlices(ctx context.Context, parent widecol.ColumnParent, pred widecol.SlicePredicate, kr widecol.KeyRange, level widecol.ConsistencyLevel) ([]widecol.KeySlice, error) {
	if err := r.record(Call{Op: OpGetRangeSlices, Key: kr.StartKey, Family: parent.ColumnFamily, Level: level, KeyRange: kr}); err != nil {
		return nil, err
	}
	return r.inner.GetRangeSlices(ctx, parent, pred, kr, level)
}

// BatchMutate implements widecol.Backend.
func (r *RecordingBackend) BatchMutate(ctx context.Context, mm widecol.MutationMap, level widecol.ConsistencyLevel) error {
	if err := r.record(Call{Op: OpBatchMutate, Level: level, Mutations: mm.Len()}); err != nil {
		return err
	}
	return r.inner.BatchMutate(ctx, mm, level)
}

// Close implements widecol.Backend.
func (r *RecordingBackend) Close() error {
	return r.inner.Close()
}
