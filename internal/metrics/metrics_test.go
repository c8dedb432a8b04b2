package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(runsTotal.WithLabelValues("metrics-test", "success"))
	RecordRun("metrics-test", "success", 1500*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(runsTotal.WithLabelValues("metrics-test", "success")))
}

func TestRecordRecordAndRequest(t *testing.T) {
	RecordRecord("metrics-test", "created")
	RecordRecord("metrics-test", "created")
	assert.Equal(t, 2.0, testutil.ToFloat64(recordsTotal.WithLabelValues("metrics-test", "created")))

	RecordRequest("GET", "/health", 200)
	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/health", "200")), 1.0)
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordRecord("metrics-handler", "unchanged")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `storesync_records_total{action="unchanged",source="metrics-handler"}`)
}
