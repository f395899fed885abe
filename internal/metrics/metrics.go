// Package metrics holds the Prometheus instruments of the directory. All
// collectors are registered with the global registry, so mounting
// promhttp.Handler() is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EntriesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "directory_entries_created_total",
			Help: "Entries created, by entry type.",
		}, []string{"entry_type"})

	ReviewsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "directory_reviews_submitted_total",
			Help: "Reviews committed together with their aggregate.",
		})

	ReviewsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "directory_reviews_deleted_total",
			Help: "Reviews deleted by their author or an administrator.",
		})

	AggregateRecomputes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "directory_aggregate_recomputes_total",
			Help: "Rating aggregate recomputations that were written.",
		})

	AggregateErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "directory_aggregate_errors_total",
			Help: "Rating aggregate recomputations that failed.",
		})

	SlugCollisions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "directory_slug_collisions_total",
			Help: "Inserts or updates rejected by the slug unique index and retried.",
		})

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "directory_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"})
)

func init() {
	prometheus.MustRegister(
		EntriesCreated,
		ReviewsSubmitted,
		ReviewsDeleted,
		AggregateRecomputes,
		AggregateErrors,
		SlugCollisions,
		HTTPRequestDuration,
	)
}
