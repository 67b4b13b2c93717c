// Package metrics exposes the fabric's histograms and counters over a
// private prometheus registry, plus a read-only snapshot API that mirrors
// the original implementation's mean/percentile/hit_rate convenience
// readouts (see SPEC_FULL.md §1C).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// DefaultLatencyBuckets are the spec's §4.10 default histogram buckets, in
// seconds, plus prometheus's implicit +Inf overflow bucket.
var DefaultLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

// Registry groups every metric the fabric emits. It is not the global
// prometheus default registry, so multiple fabric instances in one process
// (e.g. in tests) don't collide.
type Registry struct {
	reg *prometheus.Registry

	SearchDuration     *prometheus.HistogramVec
	SearchResultCount  *prometheus.HistogramVec
	EmbeddingDuration  prometheus.Histogram
	EmbeddingFromCache prometheus.Counter
	EmbeddingFromModel prometheus.Counter
	CacheSize          prometheus.Gauge
	FailedSearches     prometheus.Counter
}

// New builds a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fabric_search_duration_seconds",
			Help:    "Duration of hybrid search operations.",
			Buckets: DefaultLatencyBuckets,
		}, []string{"outcome"}),
		SearchResultCount: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fabric_search_result_count",
			Help:    "Number of results returned per search.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"outcome"}),
		EmbeddingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fabric_embedding_duration_seconds",
			Help:    "Duration of embedding calls.",
			Buckets: DefaultLatencyBuckets,
		}),
		EmbeddingFromCache: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fabric_embedding_cache_hits_total",
			Help: "Embedding calls served from cache.",
		}),
		EmbeddingFromModel: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fabric_embedding_cache_misses_total",
			Help: "Embedding calls that required model inference.",
		}),
		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fabric_embedding_cache_size",
			Help: "Current embedder LRU cache occupancy.",
		}),
		FailedSearches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fabric_search_failures_total",
			Help: "Searches that errored rather than returning results.",
		}),
	}

	reg.MustRegister(r.SearchDuration, r.SearchResultCount, r.EmbeddingDuration,
		r.EmbeddingFromCache, r.EmbeddingFromModel, r.CacheSize, r.FailedSearches)

	return r
}

// Gatherer exposes the underlying registry for an optional /metrics HTTP
// handler; the spec requires no server, but the registry is real and
// scrapeable if the embedding binary chooses to serve it.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Snapshot is a point-in-time read of derived stats, computed client-side
// from the histogram's bucket counts since the prometheus Go client does
// not expose server-side percentile math.
type Snapshot struct {
	SearchCount     uint64
	FailedSearches  uint64
	SearchMeanSecs  float64
	SearchP95Secs   float64
	CacheHits       uint64
	CacheMisses     uint64
	CacheHitRate    float64
}

// Snapshot reads the current counters/histograms into a Snapshot.
func (r *Registry) Snapshot() (Snapshot, error) {
	var snap Snapshot

	var searchMetric dto.Metric
	if err := r.SearchDuration.WithLabelValues("ok").Write(&searchMetric); err == nil {
		h := searchMetric.GetHistogram()
		snap.SearchCount = h.GetSampleCount()
		if snap.SearchCount > 0 {
			snap.SearchMeanSecs = h.GetSampleSum() / float64(snap.SearchCount)
		}
		snap.SearchP95Secs = percentileFromBuckets(h, 0.95)
	}

	var failMetric dto.Metric
	if err := r.FailedSearches.Write(&failMetric); err == nil {
		snap.FailedSearches = uint64(failMetric.GetCounter().GetValue())
	}

	var hitsMetric, missMetric dto.Metric
	if err := r.EmbeddingFromCache.Write(&hitsMetric); err == nil {
		snap.CacheHits = uint64(hitsMetric.GetCounter().GetValue())
	}
	if err := r.EmbeddingFromModel.Write(&missMetric); err == nil {
		snap.CacheMisses = uint64(missMetric.GetCounter().GetValue())
	}
	if total := snap.CacheHits + snap.CacheMisses; total > 0 {
		snap.CacheHitRate = float64(snap.CacheHits) / float64(total)
	}

	return snap, nil
}

// percentileFromBuckets walks cumulative bucket counts to find the smallest
// upper bound whose cumulative count meets the target percentile, matching
// the original Histogram::percentile's bucket-walk approach.
func percentileFromBuckets(h *dto.Histogram, p float64) float64 {
	total := h.GetSampleCount()
	if total == 0 {
		return 0
	}
	target := uint64(float64(total) * p)
	var cumulative uint64
	for _, b := range h.GetBucket() {
		cumulative = b.GetCumulativeCount()
		if cumulative >= target {
			return b.GetUpperBound()
		}
	}
	buckets := h.GetBucket()
	if len(buckets) > 0 {
		return buckets[len(buckets)-1].GetUpperBound()
	}
	return 0
}
