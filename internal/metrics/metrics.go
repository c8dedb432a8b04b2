// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storesync_runs_total",
		Help: "Sync runs by source and final status.",
	}, []string{"source", "status"})

	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storesync_records_total",
		Help: "Processed feed records by source and reconcile action.",
	}, []string{"source", "action"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storesync_run_duration_seconds",
		Help:    "Wall time of a sync run.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"source"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storesync_http_requests_total",
		Help: "Admin API requests.",
	}, []string{"method", "route", "status"})
)

func RecordRun(source, status string, d time.Duration) {
	runsTotal.WithLabelValues(source, status).Inc()
	runDuration.WithLabelValues(source).Observe(d.Seconds())
}

func RecordRecord(source, action string) {
	recordsTotal.WithLabelValues(source, action).Inc()
}

func RecordRequest(method, route string, statusCode int) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
