// Package metrics records per-operation outcomes both as an append-only log
// for in-process aggregation and as Prometheus series for external
// scraping. Neither is persisted across restarts.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OperationRecord is one completed dispatch, appended once per outcome.
type OperationRecord struct {
	Upstream       string
	OpName         string
	DurationMs     int64
	TokensEstimate int
	Cached         bool
	Success        bool
	Timestamp      time.Time
}

// UpstreamStats aggregates OperationRecords for a single upstream.
type UpstreamStats struct {
	Calls     int64
	Successes int64
	Failures  int64
	CacheHits int64
}

// Snapshot is a point-in-time aggregation across every recorded operation.
type Snapshot struct {
	TotalCalls          int64
	SuccessCount        int64
	FailureCount        int64
	CacheHitCount       int64
	TotalTokensEstimate int64
	ByUpstream          map[string]UpstreamStats
}

// Prometheus holds the external-facing series. Registered once per process
// against the Registerer passed to New.
type Prometheus struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	CacheHitsTotal    *prometheus.CounterVec
	TokensEstimated   prometheus.Counter
}

func newPrometheus(reg prometheus.Registerer) *Prometheus {
	return &Prometheus{
		OperationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway_mcp",
				Name:      "operations_total",
				Help:      "Total number of dispatched operations",
			},
			[]string{"upstream", "operation", "outcome"},
		),
		OperationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gateway_mcp",
				Name:      "operation_duration_seconds",
				Help:      "Dispatch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"upstream", "operation"},
		),
		CacheHitsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway_mcp",
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits by upstream",
			},
			[]string{"upstream"},
		),
		TokensEstimated: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "gateway_mcp",
				Name:      "tokens_estimated_total",
				Help:      "Sum of estimated response tokens across all operations",
			},
		),
	}
}

// Recorder is the append-only operation log plus its Prometheus mirror. All
// counters are process-lifetime only; nothing here is persisted.
type Recorder struct {
	enabled bool
	prom    *Prometheus

	totalCalls    atomic.Int64
	successCount  atomic.Int64
	failureCount  atomic.Int64
	cacheHitCount atomic.Int64
	totalTokens   atomic.Int64

	mu         sync.Mutex
	byUpstream map[string]*UpstreamStats
	log        []OperationRecord
}

// New constructs a Recorder. When enabled is false, Record is a no-op;
// the Prometheus collectors are still registered, so the unlabelled tokens
// counter reads zero, while the labelled vectors export no series until a
// label set has been recorded.
func New(reg prometheus.Registerer, enabled bool) *Recorder {
	return &Recorder{
		enabled:    enabled,
		prom:       newPrometheus(reg),
		byUpstream: make(map[string]*UpstreamStats),
	}
}

// Record appends one OperationRecord and updates every aggregate.
func (r *Recorder) Record(rec OperationRecord) {
	if !r.enabled {
		return
	}

	r.totalCalls.Add(1)
	if rec.Success {
		r.successCount.Add(1)
	} else {
		r.failureCount.Add(1)
	}
	if rec.Cached {
		r.cacheHitCount.Add(1)
	}
	r.totalTokens.Add(int64(rec.TokensEstimate))

	outcome := "failure"
	if rec.Success {
		outcome = "success"
	}
	r.prom.OperationsTotal.WithLabelValues(rec.Upstream, rec.OpName, outcome).Inc()
	r.prom.OperationDuration.WithLabelValues(rec.Upstream, rec.OpName).Observe(float64(rec.DurationMs) / 1000)
	if rec.Cached {
		r.prom.CacheHitsTotal.WithLabelValues(rec.Upstream).Inc()
	}
	r.prom.TokensEstimated.Add(float64(rec.TokensEstimate))

	r.mu.Lock()
	defer r.mu.Unlock()

	r.log = append(r.log, rec)

	stats, ok := r.byUpstream[rec.Upstream]
	if !ok {
		stats = &UpstreamStats{}
		r.byUpstream[rec.Upstream] = stats
	}
	stats.Calls++
	if rec.Success {
		stats.Successes++
	} else {
		stats.Failures++
	}
	if rec.Cached {
		stats.CacheHits++
	}
}

// Snapshot returns a consistent-per-field aggregation of every recorded
// operation so far. Individual upstream totals are copied under lock; the
// top-level atomics are read independently and so may not be perfectly
// synchronized with each other under heavy concurrent write load, matching
// the snapshot semantics of an append-only counter log.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	byUpstream := make(map[string]UpstreamStats, len(r.byUpstream))
	for k, v := range r.byUpstream {
		byUpstream[k] = *v
	}
	r.mu.Unlock()

	return Snapshot{
		TotalCalls:          r.totalCalls.Load(),
		SuccessCount:        r.successCount.Load(),
		FailureCount:        r.failureCount.Load(),
		CacheHitCount:        r.cacheHitCount.Load(),
		TotalTokensEstimate: r.totalTokens.Load(),
		ByUpstream:          byUpstream,
	}
}

// TokensEstimate estimates the token cost of a serialized response as
// ceil(len(serialized)/4), the convention used to populate
// OperationRecord.TokensEstimate. It is zero for failed calls by
// construction: callers only invoke this on a successful serialized body.
func TokensEstimate(serializedLen int) int {
	if serializedLen <= 0 {
		return 0
	}
	return (serializedLen + 3) / 4
}
