// Package tracing provides OpenTelemetry tracing for guardrail checks.
//
// New builds a provider exporting over OTLP gRPC, or a noop tracer when tracing
// is disabled. Every check runs in a "guardrail.check" span carrying the mode,
// rule version and input lengths; the outcome is added when the check finishes
// and each violation becomes a span event. Texts are never attached to spans.
//
// # Sampling
//
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample a fraction of traces by trace ID
//   - parent_ratio: follow the caller's decision, apply the ratio to root spans
//
// # Propagation
//
// W3C Trace Context headers are injected into verification requests so remote
// verifiers join the check's trace, and HTTPMiddleware extracts them on the
// operations server.
package tracing
