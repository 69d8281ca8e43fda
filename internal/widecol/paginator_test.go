package widecol

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rangeBackend serves range scans over a fixed, sorted key list and records
// each request.
type rangeBackend struct {
	keys     []string
	requests []KeyRange
	levels   []ConsistencyLevel
	failAt   int // 1-based request number that fails, 0 = never
}

func newRangeBackend(n int) *rangeBackend {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("key%04d", i)
	}
	return &rangeBackend{keys: keys}
}

func (b *rangeBackend) Get(context.Context, string, ColumnPath, ConsistencyLevel) (ColumnOrSuperColumn, error) {
	return ColumnOrSuperColumn{}, ErrNotFound
}

func (b *rangeBackend) GetSlice(context.Context, string, ColumnParent, SlicePredicate, ConsistencyLevel) ([]ColumnOrSuperColumn, error) {
	return nil, nil
}

func (b *rangeBackend) GetCount(context.Context, string, ColumnParent, ConsistencyLevel) (int, error) {
	return 0, nil
}

func (b *rangeBackend) GetRangeSlices(_ context.Context, _ ColumnParent, _ SlicePredicate, kr KeyRange, level ConsistencyLevel) ([]KeySlice, error) {
	b.requests = append(b.requests, kr)
	b.levels = append(b.levels, level)
	if b.failAt == len(b.requests) {
		return nil, errors.New("connection reset")
	}
	var out []KeySlice
	for _, k := range b.keys {
		if !InKeyRange(k, kr) {
			continue
		}
		out = append(out, KeySlice{Key: k})
		if kr.Count > 0 && len(out) == kr.Count {
			break
		}
	}
	return out, nil
}

func (b *rangeBackend) BatchMutate(context.Context, MutationMap, ConsistencyLevel) error { return nil }

func (b *rangeBackend) Close() error { return nil }

func newTestClient(t *testing.T, b Backend, opts ...ClientOption) *Client {
	t.Helper()
	c, err := NewClient(b, opts...)
	require.NoError(t, err)
	return c
}

func collectKeys(t *testing.T, seq func(func(KeySlice, error) bool)) []string {
	t.Helper()
	var keys []string
	for ks, err := range seq {
		require.NoError(t, err)
		keys = append(keys, ks.Key)
	}
	return keys
}

func TestEachKeySlice_Completeness(t *testing.T) {
	b := newRangeBackend(250)
	c := newTestClient(t, b)

	keys := collectKeys(t, c.EachKeySlice(context.Background(), "RDF", WithSliceSize(100)))

	assert.Equal(t, b.keys, keys, "every key once, in order")
	require.Len(t, b.requests, 3)
	assert.Equal(t, KeyRange{StartKey: "", Count: 100}, b.requests[0])
	assert.Equal(t, KeyRange{StartKey: "key0099", Count: 101}, b.requests[1])
	assert.Equal(t, KeyRange{StartKey: "key0199", Count: 101}, b.requests[2])
}

func TestEachKeySlice_PageSizes(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		sliceSize int
		wantCalls int
	}{
		{"empty", 0, 100, 1},
		{"single partial page", 5, 100, 1},
		{"exact page then empty continuation", 100, 100, 2},
		{"exact multiple", 200, 100, 3},
		{"width one", 4, 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newRangeBackend(tt.n)
			c := newTestClient(t, b, WithDefaultSliceSize(tt.sliceSize))

			keys := collectKeys(t, c.EachKeySlice(context.Background(), "RDF"))

			assert.Len(t, keys, tt.n)
			assert.Len(t, b.requests, tt.wantCalls)
			sorted := slices.Clone(keys)
			slices.Sort(sorted)
			assert.Equal(t, len(slices.Compact(sorted)), len(keys), "no duplicates")
		})
	}
}

func TestEachKeySlice_LimitZeroIssuesNoRequest(t *testing.T) {
	b := newRangeBackend(10)
	c := newTestClient(t, b)

	keys := collectKeys(t, c.EachKeySlice(context.Background(), "RDF", WithLimit(0)))

	assert.Empty(t, keys)
	assert.Empty(t, b.requests)
}

func TestEachKeySlice_LimitStopsMidPage(t *testing.T) {
	b := newRangeBackend(250)
	c := newTestClient(t, b)

	keys := collectKeys(t, c.EachKeySlice(context.Background(), "RDF", WithLimit(150)))

	assert.Equal(t, b.keys[:150], keys)
	assert.Len(t, b.requests, 2)
}

func TestEachKeySlice_FirstKeyIsInclusive(t *testing.T) {
	b := newRangeBackend(20)
	c := newTestClient(t, b)

	keys := collectKeys(t, c.EachKeySlice(context.Background(), "RDF", WithFirstKey("key0007"), WithSliceSize(1), WithLimit(1)))

	assert.Equal(t, []string{"key0007"}, keys)
	require.Len(t, b.requests, 1)
	assert.Equal(t, KeyRange{StartKey: "key0007", Count: 1}, b.requests[0])
}

func TestEachKeySlice_EarlyBreak(t *testing.T) {
	b := newRangeBackend(250)
	c := newTestClient(t, b)

	n := 0
	for _, err := range c.EachKeySlice(context.Background(), "RDF") {
		require.NoError(t, err)
		n++
		if n == 10 {
			break
		}
	}
	assert.Equal(t, 10, n)
	assert.Len(t, b.requests, 1, "no page fetched after the consumer stops")
}

func TestEachKeySlice_Restartable(t *testing.T) {
	b := newRangeBackend(30)
	c := newTestClient(t, b)

	seq := c.EachKeySlice(context.Background(), "RDF", WithSliceSize(10))
	first := collectKeys(t, seq)
	second := collectKeys(t, seq)

	assert.Equal(t, first, second)
	assert.Len(t, b.requests, 8, "each iteration re-scans")
}

func TestEachKeySlice_ErrorEndsSequence(t *testing.T) {
	b := newRangeBackend(250)
	b.failAt = 2
	c := newTestClient(t, b)

	var keys []string
	var gotErr error
	for ks, err := range c.EachKeySlice(context.Background(), "RDF") {
		if err != nil {
			gotErr = err
			continue
		}
		keys = append(keys, ks.Key)
	}
	assert.Len(t, keys, 100)
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "connection reset")
}

func TestEachKeySlice_ContextCancelledBetweenPages(t *testing.T) {
	b := newRangeBackend(250)
	c := newTestClient(t, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var n int
	var gotErr error
	for _, err := range c.EachKeySlice(ctx, "RDF") {
		if err != nil {
			gotErr = err
			break
		}
		n++
		if n == 100 {
			cancel()
		}
	}
	assert.Equal(t, 100, n)
	assert.ErrorIs(t, gotErr, context.Canceled)
	assert.Len(t, b.requests, 1)
}

func TestEachKeySlice_Consistency(t *testing.T) {
	b := newRangeBackend(3)
	c := newTestClient(t, b, WithDefaultConsistency(Quorum))

	collectKeys(t, c.EachKeySlice(context.Background(), "RDF"))
	collectKeys(t, c.EachKeySlice(context.Background(), "RDF", WithConsistency(All)))
	assert.Equal(t, []ConsistencyLevel{Quorum, All}, b.levels)

	for _, err := range c.EachKeySlice(context.Background(), "RDF", WithConsistency(Any)) {
		assert.ErrorIs(t, err, ErrInvalidConsistency)
	}
	assert.Len(t, b.requests, 2, "invalid level rejected before I/O")
}
