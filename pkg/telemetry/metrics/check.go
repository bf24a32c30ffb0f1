package metrics

import (
	"time"

	"kairo-hq/guardrails/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckMetrics tracks compliance checks.
//
// Metrics:
//   - kairo_guardrails_checks_total: checks by mode and resulting action
//   - kairo_guardrails_check_duration_seconds: check latency by mode
//   - kairo_guardrails_checks_rejected_total: checks refused before evaluation, by error kind
type CheckMetrics struct {
	checksTotal   *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	rejected      *prometheus.CounterVec
}

// NewCheckMetrics creates and registers check metrics with the provided registry.
func NewCheckMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CheckMetrics {
	cm := &CheckMetrics{
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "checks_total",
				Help:      "Total number of compliance checks",
			},
			[]string{"mode", "action"},
		),

		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "check_duration_seconds",
				Help:      "Duration of compliance checks in seconds",
				Buckets:   cfg.CheckDurationBuckets,
			},
			[]string{"mode"},
		),

		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "checks_rejected_total",
				Help:      "Total number of checks rejected before evaluation",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(cm.checksTotal, cm.checkDuration, cm.rejected)

	return cm
}

// RecordCheck records a completed check.
func (cm *CheckMetrics) RecordCheck(mode, action string, duration time.Duration) {
	cm.checksTotal.WithLabelValues(mode, action).Inc()
	cm.checkDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordRejected records a check refused with an error of the given kind.
func (cm *CheckMetrics) RecordRejected(kind string) {
	cm.rejected.WithLabelValues(kind).Inc()
}
