// Package metrics holds the Prometheus collectors shared by the API process
// and the reminder worker.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carecal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carecal_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	SweepTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "carecal_sweep_ticks_total",
			Help: "Number of reminder sweep ticks executed",
		},
	)

	SweepDueBatch = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carecal_sweep_due_batch_size",
			Help:    "Due reminders found per sweep tick",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	DispatchEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "carecal_dispatch_enqueued_total",
			Help: "Jobs accepted by the dispatch queue",
		},
	)

	DispatchDeduped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "carecal_dispatch_deduped_total",
			Help: "Jobs rejected by idempotency-key deduplication",
		},
	)

	DispatchCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carecal_dispatch_completed_total",
			Help: "Completed dispatch jobs by final status",
		},
		[]string{"status"},
	)

	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carecal_deliveries_total",
			Help: "Delivery attempts recorded by outcome and channel",
		},
		[]string{"status", "channel"},
	)
)

// Init registers all collectors with the default registry. Call once per
// process before serving /metrics.
func Init() {
	prometheus.MustRegister(
		RequestCount,
		RequestDuration,
		SweepTicks,
		SweepDueBatch,
		DispatchEnqueued,
		DispatchDeduped,
		DispatchCompleted,
		Deliveries,
	)
}
