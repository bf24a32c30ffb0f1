package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	checkModeKey
	reloadIDKey
)

// contextFields lists the values ContextHandler copies onto records, in the
// order they appear in output.
var contextFields = []struct {
	key  ctxKey
	attr string
}{
	{requestIDKey, "request_id"},
	{checkModeKey, "check_mode"},
	{reloadIDKey, "reload_id"},
}

// WithRequestID tags ctx with the id of one check request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the request id in ctx, or "".
func GetRequestID(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

// WithCheckMode tags ctx with the mode of the running check.
func WithCheckMode(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, checkModeKey, mode)
}

// GetCheckMode returns the check mode in ctx, or "".
func GetCheckMode(ctx context.Context) string { return stringValue(ctx, checkModeKey) }

// WithReloadID tags ctx with the id of one rule load attempt, so every log
// line of a reload can be correlated.
func WithReloadID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, reloadIDKey, id)
}

// GetReloadID returns the reload id in ctx, or "".
func GetReloadID(ctx context.Context) string { return stringValue(ctx, reloadIDKey) }

func stringValue(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, f := range contextFields {
		if v := stringValue(ctx, f.key); v != "" {
			attrs = append(attrs, slog.String(f.attr, v))
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}

// ContextHandler adds the request, check mode, reload and trace ids found in
// the record's context.
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler wraps next.
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if attrs := contextAttrs(ctx); len(attrs) > 0 {
			r = r.Clone()
			r.AddAttrs(attrs...)
		}
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}
