package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the lookup pipeline. All
// methods are nil-safe so components can run without metrics in tests.
type Metrics struct {
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	Scrapes           *prometheus.CounterVec
	StaleServed       prometheus.Counter
	SingleflightJoins prometheus.Counter
	ScrapeDuration    prometheus.Histogram
	ThrottleWait      prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orglens_cache_hits_total",
			Help: "Lookups served from a fresh cache entry without an outbound fetch",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orglens_cache_misses_total",
			Help: "Lookups that required an outbound fetch (miss, stale, or forced)",
		}),
		Scrapes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "orglens_scrapes_total",
			Help: "Outbound scrape attempts by outcome",
		}, []string{"outcome"}),
		StaleServed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orglens_stale_served_total",
			Help: "Degraded responses served from a stale cache entry after a failed refresh",
		}),
		SingleflightJoins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orglens_singleflight_joins_total",
			Help: "Lookups that joined an in-flight fetch instead of starting their own",
		}),
		ScrapeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "orglens_scrape_duration_seconds",
			Help:    "Duration of outbound scrape attempts",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		ThrottleWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "orglens_throttle_wait_seconds",
			Help:    "Time spent waiting on the global outbound throttle",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) IncrementCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) IncrementCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) RecordScrape(outcome string) {
	if m != nil {
		m.Scrapes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementStaleServed() {
	if m != nil {
		m.StaleServed.Inc()
	}
}

func (m *Metrics) IncrementSingleflightJoin() {
	if m != nil {
		m.SingleflightJoins.Inc()
	}
}

func (m *Metrics) ObserveScrapeDuration(seconds float64) {
	if m != nil {
		m.ScrapeDuration.Observe(seconds)
	}
}

func (m *Metrics) ObserveThrottleWait(seconds float64) {
	if m != nil {
		m.ThrottleWait.Observe(seconds)
	}
}
