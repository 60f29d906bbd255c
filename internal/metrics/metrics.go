package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for segvote. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	VotesTotal          *prometheus.CounterVec
	LockAcquireTotal    *prometheus.CounterVec
	CacheInvalidateErrs prometheus.Counter
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	DurationChecks      *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	RequestsInFlight    prometheus.Gauge
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		VotesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "segvote_votes_total",
				Help: "Vote requests by kind (numeric, category) and response status.",
			},
			[]string{"kind", "status"},
		),
		LockAcquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "segvote_lock_acquire_total",
				Help: "Vote lock acquisitions by result (acquired, contended, fail_open).",
			},
			[]string{"result"},
		),
		CacheInvalidateErrs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "segvote_cache_invalidate_errors_total",
				Help: "Failed cache key deletions.",
			},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "segvote_cache_hits_total",
				Help: "Total Redis cache hits.",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "segvote_cache_misses_total",
				Help: "Total Redis cache misses.",
			},
		),
		DurationChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "segvote_duration_checks_total",
				Help: "Video duration consistency checks by outcome.",
			},
			[]string{"outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "segvote_api_request_duration_seconds",
				Help:    "HTTP request duration in seconds, by endpoint and method.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "method", "status"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "segvote_requests_in_flight",
				Help: "Number of HTTP requests currently being served.",
			},
		),
	}

	reg.MustRegister(
		m.VotesTotal,
		m.LockAcquireTotal,
		m.CacheInvalidateErrs,
		m.CacheHits,
		m.CacheMisses,
		m.DurationChecks,
		m.RequestDuration,
		m.RequestsInFlight,
	)
	return m
}

// RegisterPool adds gauges reading live stats from a pgx pool.
func RegisterPool(reg prometheus.Registerer, store string, pool *pgxpool.Pool) {
	if pool == nil {
		return
	}
	labels := prometheus.Labels{"store": store}
	reg.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "segvote_db_connection_pool_active",
				Help:        "Number of active database connections.",
				ConstLabels: labels,
			},
			func() float64 { return float64(pool.Stat().AcquiredConns()) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "segvote_db_connection_pool_idle",
				Help:        "Number of idle database connections.",
				ConstLabels: labels,
			},
			func() float64 { return float64(pool.Stat().IdleConns()) },
		),
	)
}

func (m *Metrics) Vote(kind, status string) {
	if m == nil {
		return
	}
	m.VotesTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) Lock(result string) {
	if m == nil {
		return
	}
	m.LockAcquireTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheInvalidateError() {
	if m == nil {
		return
	}
	m.CacheInvalidateErrs.Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) DurationCheck(outcome string) {
	if m == nil {
		return
	}
	m.DurationChecks.WithLabelValues(outcome).Inc()
}
