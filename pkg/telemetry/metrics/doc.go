// Package metrics provides Prometheus metrics for the guardrail engine.
//
// A Collector records check outcomes, per-rule violations, inconclusive
// verifications, evaluation errors, rule reloads and verdict cache traffic. It
// satisfies the checker's Recorder interface and is exposed over HTTP by Handler.
//
// # Metrics
//
//   - checks_total{mode,action} and check_duration_seconds{mode}
//   - checks_rejected_total{kind}
//   - rule_violations_total{rule_id,severity}
//   - rule_inconclusive_total{rule_id} and rule_errors_total{rule_id}
//   - rule_reloads_total{source,result}, rule_reload_duration_seconds{source}
//   - rules_loaded and rules_last_reload_timestamp_seconds
//   - verdict_cache_hits_total{capability} and verdict_cache_misses_total{capability}
//
// Names are prefixed with the configured namespace and subsystem
// (kairo_guardrails_ by default). Rule IDs beyond the cardinality limit are
// folded into rule_id="other".
package metrics
