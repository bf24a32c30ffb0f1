package metrics

import (
	"kairo-hq/guardrails/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks the verdict cache.
//
// Metrics:
//   - kairo_guardrails_verdict_cache_hits_total: cache hits by capability
//   - kairo_guardrails_verdict_cache_misses_total: cache misses by capability
type CacheMetrics struct {
	hitsTotal   *prometheus.CounterVec
	missesTotal *prometheus.CounterVec
}

// NewCacheMetrics creates and registers cache metrics with the provided registry.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		hitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "verdict_cache_hits_total",
				Help:      "Total number of verdict cache hits",
			},
			[]string{"capability"},
		),

		missesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "verdict_cache_misses_total",
				Help:      "Total number of verdict cache misses",
			},
			[]string{"capability"},
		),
	}

	registry.MustRegister(cm.hitsTotal, cm.missesTotal)

	return cm
}

// RecordHit records a cache hit.
func (cm *CacheMetrics) RecordHit(capability string) {
	cm.hitsTotal.WithLabelValues(capability).Inc()
}

// RecordMiss records a cache miss.
func (cm *CacheMetrics) RecordMiss(capability string) {
	cm.missesTotal.WithLabelValues(capability).Inc()
}
