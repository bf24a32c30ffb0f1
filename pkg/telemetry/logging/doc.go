// Package logging builds the process logger and carries per-check fields through
// the context.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "Check started") // includes request_id
//
// # Context Fields
//
// The handler returned by New adds these attributes to every record logged with a
// context that carries them:
//
//   - request_id: set by the CLI or the embedding service per check
//   - check_mode: set by the checker (full, jailbreak-only, step-by-step-only)
//   - reload_id: set by the rule manager for each reload
//   - trace_id, span_id: taken from the active OpenTelemetry span
//
// Raw user input and AI output are never logged; components log lengths and
// evidence hashes instead.
package logging
