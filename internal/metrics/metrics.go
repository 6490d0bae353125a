// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksTotal          *prometheus.CounterVec
	scrapeAttemptsTotal *prometheus.CounterVec
	scrapeDurationSecs  prometheus.Histogram
	cacheDecisionsTotal *prometheus.CounterVec
	activeWorkers       prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_tasks_total",
				Help: "Total number of tasks processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		scrapeAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_scrape_attempts_total",
				Help: "Total number of scrape results, labeled by fetch status.",
			},
			[]string{"status"},
		)

		scrapeDurationSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingestor_scrape_duration_seconds",
				Help:    "Wall-clock duration of scrape calls, including retries and backoff.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		)

		cacheDecisionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestor_cache_decisions_total",
				Help: "Cache-aside decisions, labeled by resolution source.",
			},
			[]string{"source"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingestor_active_workers",
				Help: "Number of workers currently processing tasks.",
			},
		)
	})
}

// TaskProcessed increments the per-outcome task counter.
func TaskProcessed(outcome string) {
	if tasksTotal != nil {
		tasksTotal.WithLabelValues(outcome).Inc()
	}
}

// ScrapeObserved records one scrape result and its duration.
func ScrapeObserved(status string, d time.Duration) {
	if scrapeAttemptsTotal != nil {
		scrapeAttemptsTotal.WithLabelValues(status).Inc()
	}
	if scrapeDurationSecs != nil {
		scrapeDurationSecs.Observe(d.Seconds())
	}
}

// CacheDecision records where a scrape-or-skip decision was resolved.
func CacheDecision(source string) {
	if cacheDecisionsTotal != nil {
		cacheDecisionsTotal.WithLabelValues(source).Inc()
	}
}

// WorkerStarted and WorkerFinished track the active worker gauge.
func WorkerStarted() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// WorkerFinished decrements the active worker gauge.
func WorkerFinished() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}
