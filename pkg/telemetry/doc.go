// Package telemetry groups the observability packages used by the guardrail
// service.
//
//   - logging: slog construction and context-scoped request and reload ids
//   - metrics: Prometheus counters and histograms for checks, rule reloads
//     and verifier calls
//   - tracing: OpenTelemetry tracer setup with an OTLP exporter
//   - health: liveness, readiness and version endpoints
//
// A typical server wires them together like this:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	tp, err := tracing.New(ctx, &cfg.Telemetry.Tracing)
//	if err != nil {
//		return err
//	}
//	defer tp.Shutdown(context.Background())
//
//	c, err := checker.New(holder, checkerCfg,
//		checker.WithRecorder(collector),
//		checker.WithTracer(tp.Tracer()),
//	)
package telemetry
