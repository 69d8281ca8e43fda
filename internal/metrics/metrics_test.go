package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveStoreCall(t *testing.T) {
	storeMet.init()
	before := testutil.ToFloat64(storeMet.calls.WithLabelValues("get", OutcomeNotFound))

	ObserveStoreCall("get", OutcomeNotFound, time.Millisecond)
	ObserveStoreCall("get", OutcomeNotFound, 2*time.Millisecond)

	assert.Equal(t, before+2, testutil.ToFloat64(storeMet.calls.WithLabelValues("get", OutcomeNotFound)))
}

func TestRecordHelpers(t *testing.T) {
	RecordBatchFlush(100)
	RecordInserted(3)
	RecordDeleted(1)
	RecordMembershipRemoved("ps")
	RecordMembershipRetained("os")
	RecordDrift("op")
	RecordDecodeError()

	assert.GreaterOrEqual(t, testutil.ToFloat64(storeMet.batchesFlushed), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(storeMet.triplesInserted), 3.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(storeMet.driftDetected.WithLabelValues("op")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(storeMet.decodeErrors), 1.0)
}

func TestHandler(t *testing.T) {
	RecordInserted(1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "widetriple_triples_inserted_total")
}
