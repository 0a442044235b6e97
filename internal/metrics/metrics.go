package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RatingSubmissions counts ledger submissions by outcome:
	// current, stale, invalid, not_found, conflict or error
	RatingSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notes_rating_submissions_total",
		Help: "Rating submissions by outcome",
	}, []string{"outcome"})

	// RatingSubmitDuration tracks the critical section of a submission
	RatingSubmitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notes_rating_submit_duration_seconds",
		Help:    "Time spent holding a note lock during submission",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	})

	// RatingConflictRetries counts retried conflicting submissions
	RatingConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notes_rating_conflict_retries_total",
		Help: "Submissions retried after a ledger conflict",
	})

	// ScoreCacheLookups counts score cache lookups by result (hit, stale or miss)
	ScoreCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notes_score_cache_lookups_total",
		Help: "Score cache lookups by result",
	}, []string{"result"})

	// ScoreCacheEntries is the number of notes with a cached score
	ScoreCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notes_score_cache_entries",
		Help: "Notes with a cached score",
	})

	// ScoreRecomputations counts full recomputations from the ledger
	ScoreRecomputations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notes_score_recomputations_total",
		Help: "Full score recomputations from the rating ledger",
	})

	// ScoreDrift counts cached scores that disagreed with the ledger during an audit
	ScoreDrift = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notes_score_drift_total",
		Help: "Cached scores found to differ from recomputation",
	})

	// HTTPRequests counts HTTP requests by method, route pattern and status
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notes_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks HTTP latency by method and route pattern
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notes_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Handler serves the default registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.Handler()
}
