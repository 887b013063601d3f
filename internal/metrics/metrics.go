package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zlegacy"

// Refresh results
const (
	RefreshOK       = "ok"
	RefreshDegraded = "degraded"
	RefreshFailed   = "failed"
)

// DefaultRefreshBuckets covers a balance lookup plus a price lookup over HTTP
var DefaultRefreshBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Metrics holds the Prometheus collectors of the allocation backend.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	AllocationWrites *prometheus.CounterVec
	OverAllocations  *prometheus.CounterVec
	AssetRefreshes   *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	TrackedWallets   prometheus.Gauge
}

// New creates the collectors on a dedicated registry, plus the Go runtime and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AllocationWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocation_writes_total",
			Help:      "Accepted allocation writes by operation.",
		}, []string{"op"}),
		OverAllocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overallocations_total",
			Help:      "Writes that would have over-allocated, by scope.",
		}, []string{"scope"}),
		AssetRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_refresh_total",
			Help:      "Asset snapshot refreshes by result.",
		}, []string{"result"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asset_refresh_duration_seconds",
			Help:      "Time spent building one asset snapshot.",
			Buckets:   DefaultRefreshBuckets,
		}),
		TrackedWallets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_wallets",
			Help:      "Wallets refreshed by the asset registry.",
		}),
	}

	m.registry.MustRegister(
		m.AllocationWrites,
		m.OverAllocations,
		m.AssetRefreshes,
		m.RefreshDuration,
		m.TrackedWallets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry (used by tests and the HTTP handler)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordWrite counts an accepted write
func (m *Metrics) RecordWrite(op string) {
	if m == nil {
		return
	}
	m.AllocationWrites.WithLabelValues(op).Inc()
}

// RecordOverAllocation counts a rejected or clamped write
func (m *Metrics) RecordOverAllocation(scope string) {
	if m == nil {
		return
	}
	m.OverAllocations.WithLabelValues(scope).Inc()
}

// RecordRefresh counts a refresh and observes its duration
func (m *Metrics) RecordRefresh(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AssetRefreshes.WithLabelValues(result).Inc()
	m.RefreshDuration.Observe(elapsed.Seconds())
}

// SetTrackedWallets reports how many wallets the registry refreshes
func (m *Metrics) SetTrackedWallets(n int) {
	if m == nil {
		return
	}
	m.TrackedWallets.Set(float64(n))
}
