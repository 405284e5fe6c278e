// Package metrics provides Prometheus metrics for the library caches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache names used as label values.
const (
	CacheSearch = "search"
	CacheAnswer = "answer"
	CacheBrowse = "browse"
)

var (
	// Cache metrics
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smj_cache_lookups_total",
			Help: "Total cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	cacheRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smj_cache_refreshes_total",
			Help: "Total cache entries recomputed during flushes",
		},
		[]string{"cache"},
	)

	// Flush metrics
	flushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smj_flush_duration_seconds",
			Help:    "Time to refresh derived caches and commit",
			Buckets: prometheus.DefBuckets,
		},
	)

	flushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smj_flushes_total",
			Help: "Total flushes",
		},
		[]string{"status"},
	)

	workloadPairs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smj_flush_workload_pairs",
			Help:    "Distinct (artist, album) pairs refreshed per flush",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// Library metrics
	tracksTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smj_tracks",
			Help: "Number of tracks in the library",
		},
	)

	pendingChanges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smj_pending_changes",
			Help: "Tracks added or removed since the last flush",
		},
	)

	// Scan metrics
	scannedFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smj_scanned_files_total",
			Help: "Media files seen by the scanner",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCacheLookup records a hit or a miss.
func RecordCacheLookup(cache string, hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	cacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// RecordCacheRefresh records a recomputed cache entry.
func RecordCacheRefresh(cache string) {
	cacheRefreshesTotal.WithLabelValues(cache).Inc()
}

// RecordFlush records a flush.
func RecordFlush(pairs int, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	flushesTotal.WithLabelValues(status).Inc()
	flushDuration.Observe(duration.Seconds())
	workloadPairs.Observe(float64(pairs))
}

// SetTracks sets the track count gauge.
func SetTracks(n int) {
	tracksTotal.Set(float64(n))
}

// SetPending sets the pending changes gauge.
func SetPending(n int) {
	pendingChanges.Set(float64(n))
}

// RecordScannedFile records one file seen by the scanner. Result is one of
// added, unchanged, failed.
func RecordScannedFile(result string) {
	scannedFilesTotal.WithLabelValues(result).Inc()
}
