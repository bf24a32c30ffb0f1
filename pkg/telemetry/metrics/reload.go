package metrics

import (
	"time"

	"kairo-hq/guardrails/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ReloadMetrics tracks rule registry loads.
//
// Metrics:
//   - kairo_guardrails_rule_reloads_total: reload attempts by source and result
//   - kairo_guardrails_rule_reload_duration_seconds: time to load and compile rules
//   - kairo_guardrails_rules_loaded: rules in the published registry
//   - kairo_guardrails_rules_last_reload_timestamp_seconds: time of the last successful reload
type ReloadMetrics struct {
	reloadsTotal   *prometheus.CounterVec
	reloadDuration *prometheus.HistogramVec
	rulesLoaded    prometheus.Gauge
	lastReload     prometheus.Gauge
}

// NewReloadMetrics creates and registers reload metrics with the provided registry.
func NewReloadMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ReloadMetrics {
	rm := &ReloadMetrics{
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_reloads_total",
				Help:      "Total number of rule reload attempts",
			},
			[]string{"source", "result"},
		),

		reloadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_reload_duration_seconds",
				Help:      "Duration of rule reloads in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"source"},
		),

		rulesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rules_loaded",
				Help:      "Number of rules in the active registry",
			},
		),

		lastReload: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rules_last_reload_timestamp_seconds",
				Help:      "Unix time of the last successful rule reload",
			},
		),
	}

	registry.MustRegister(rm.reloadsTotal, rm.reloadDuration, rm.rulesLoaded, rm.lastReload)

	return rm
}

// RecordReload records a reload attempt. result is "success" or "failure"; on
// success the rule gauge and timestamp are updated.
func (rm *ReloadMetrics) RecordReload(source, result string, duration time.Duration, rules int) {
	rm.reloadsTotal.WithLabelValues(source, result).Inc()
	rm.reloadDuration.WithLabelValues(source).Observe(duration.Seconds())

	if result == ReloadSuccess {
		rm.rulesLoaded.Set(float64(rules))
		rm.lastReload.SetToCurrentTime()
	}
}
