package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/veyralabs/fundmatch-go/internal/domain"
)

// Metrics holds all Prometheus metrics for the matching engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	pairsScored     prometheus.Counter
	degradedSearch  prometheus.Counter
	indexedProfiles *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fundmatch_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundmatch_external_errors_total",
				Help: "Total errors from external collaborators.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundmatch_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundmatch_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		pairsScored: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fundmatch_pairs_scored_total",
				Help: "Total profile pairs scored by the compatibility scorer.",
			},
		),
		degradedSearch: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fundmatch_search_degraded_total",
				Help: "Searches answered by the fail-open profile store scan.",
			},
		),
		indexedProfiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundmatch_indexed_profiles_total",
				Help: "Profiles (re)indexed by the search index.",
			},
			[]string{"trigger"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundmatch_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// AddPairsScored adds n scored pairs.
func (m *Metrics) AddPairsScored(n int) {
	m.pairsScored.Add(float64(n))
}

// IncrDegradedSearch counts a fail-open fallback scan.
func (m *Metrics) IncrDegradedSearch() {
	m.degradedSearch.Inc()
}

// IncrIndexedProfile counts one (re)indexed profile by trigger
// ("single" or "full").
func (m *Metrics) IncrIndexedProfile(trigger string) {
	m.indexedProfiles.WithLabelValues(trigger).Inc()
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// EngineSnapshot returns current engine counters for the
// GET /v1/metrics/engine endpoint. Prometheus counters are cumulative.
func (m *Metrics) EngineSnapshot() *domain.EngineMetrics {
	recoHits := getCounterValue(m.cacheHits, "recommendations")
	recoMisses := getCounterValue(m.cacheMisses, "recommendations")
	searchHits := getCounterValue(m.cacheHits, "search")
	searchMisses := getCounterValue(m.cacheMisses, "search")

	hitRate := func(hits, misses float64) float64 {
		if hits+misses == 0 {
			return 0
		}
		return hits / (hits + misses)
	}

	totalRequests := getCounterValue(m.requestsTotal, "success") +
		getCounterValue(m.requestsTotal, "error")
	errorRate := float64(0)
	if totalRequests > 0 {
		errorRate = getCounterValue(m.requestsTotal, "error") / totalRequests
	}

	return &domain.EngineMetrics{
		TotalRequests:      int64(totalRequests),
		ErrorRate:          errorRate,
		PairsScored:        int64(counterValue(m.pairsScored)),
		RecoCacheHitRate:   hitRate(recoHits, recoMisses),
		SearchCacheHitRate: hitRate(searchHits, searchMisses),
		DegradedSearches:   int64(counterValue(m.degradedSearch)),
		ProfilesIndexed: int64(getCounterValue(m.indexedProfiles, "single") +
			getCounterValue(m.indexedProfiles, "full")),
		Period: "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return counterValue(cv.WithLabelValues(label))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
