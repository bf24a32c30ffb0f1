package metrics

import (
	"kairo-hq/guardrails/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RuleMetrics tracks per-rule outcomes.
//
// Metrics:
//   - kairo_guardrails_rule_violations_total: triggered rules by rule and severity
//   - kairo_guardrails_rule_inconclusive_total: external rules that could not be verified
//   - kairo_guardrails_rule_errors_total: rules skipped because evaluation failed
type RuleMetrics struct {
	violationsTotal   *prometheus.CounterVec
	inconclusiveTotal *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
}

// NewRuleMetrics creates and registers rule metrics with the provided registry.
func NewRuleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RuleMetrics {
	rm := &RuleMetrics{
		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_violations_total",
				Help:      "Total number of rule violations",
			},
			[]string{"rule_id", "severity"},
		),

		inconclusiveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_inconclusive_total",
				Help:      "Total number of inconclusive external verifications",
			},
			[]string{"rule_id"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_errors_total",
				Help:      "Total number of rule evaluation errors",
			},
			[]string{"rule_id"},
		),
	}

	registry.MustRegister(rm.violationsTotal, rm.inconclusiveTotal, rm.errorsTotal)

	return rm
}

// RecordViolation records a triggered rule.
func (rm *RuleMetrics) RecordViolation(ruleID, severity string) {
	rm.violationsTotal.WithLabelValues(ruleID, severity).Inc()
}

// RecordInconclusive records an external rule whose verification did not complete.
func (rm *RuleMetrics) RecordInconclusive(ruleID string) {
	rm.inconclusiveTotal.WithLabelValues(ruleID).Inc()
}

// RecordError records a rule skipped because its evaluation failed.
func (rm *RuleMetrics) RecordError(ruleID string) {
	rm.errorsTotal.WithLabelValues(ruleID).Inc()
}
