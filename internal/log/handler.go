package log

import (
	"context"
	"log/slog"

	"github.com/ErlanBelekov/points-rebuild/internal/runctx"
)

// ContextHandler wraps an slog.Handler and copies correlation values
// (run_id, request_id, stage) from the record's context into its attrs.
type ContextHandler struct {
	inner slog.Handler
}

func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := runctx.RunID(ctx); id != "" {
		r.AddAttrs(slog.String("run_id", id))
	}
	if id := runctx.RequestID(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	if stage := runctx.Stage(ctx); stage != "" {
		r.AddAttrs(slog.String("stage", stage))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
