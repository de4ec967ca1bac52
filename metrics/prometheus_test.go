package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordPrice(10)
	r.RecordPrice(12.5)
	r.RecordDecision("continue")
	r.RecordDecision("continue")
	r.RecordDecision("accept")
	r.RecordEstimationError("insufficient_data")
	r.RecordDrift("increase")
	r.RecordCalibration(0.7, 150, 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.observed))
	assert.Equal(t, 12.5, testutil.ToFloat64(r.lastPrice))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.decisions.WithLabelValues("continue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("accept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.estimationErrors.WithLabelValues("insufficient_data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.driftEvents.WithLabelValues("increase")))
	assert.Equal(t, 0.7, testutil.ToFloat64(r.threshold))
	assert.Equal(t, 150.0, testutil.ToFloat64(r.holdoutSize))
	assert.Equal(t, 1, testutil.CollectAndCount(r.calibrationTime))
}

func TestNewRegistersOncePerRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).RecordDecision("accept")

	rec := httptest.NewRecorder()
	NewHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `picker_decisions_total{decision="accept"} 1`)
}
