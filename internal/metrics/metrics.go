package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Downloader
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamemeta_http_requests_total",
		Help: "Total number of HTTP requests made to metadata providers.",
	}, []string{"host", "status"}) // status: HTTP code or "error"

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamemeta_http_request_duration_seconds",
		Help:    "Duration of HTTP requests to metadata providers in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"host"})

	// Bulk import
	ImportRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamemeta_import_records_total",
		Help: "Total number of records processed by bulk imports.",
	}, []string{"workflow", "status"}) // status: succeeded, skipped, failed

	ImportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamemeta_import_duration_seconds",
		Help:    "Duration of bulk import runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"workflow"})

	// Walker
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamemeta_walk_pages_total",
		Help: "Total number of pages fetched by pagination and category walks.",
	}, []string{"kind"}) // kind: linear, category
)

// RecordHTTP records the outcome of one provider request. A zero status means
// the request failed before a response arrived.
func RecordHTTP(host string, status int, start time.Time) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	HTTPRequests.WithLabelValues(host, label).Inc()
	HTTPDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
}

// RecordImportDuration records the time taken for a bulk import run.
func RecordImportDuration(workflow string, start time.Time) {
	ImportDuration.WithLabelValues(workflow).Observe(time.Since(start).Seconds())
}
