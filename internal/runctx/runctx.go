// Package runctx carries correlation values (run ID, request ID, stage)
// through a context so log handlers and outbound calls can pick them up.
package runctx

import (
	"context"

	"github.com/google/uuid"
)

type (
	runIDKey     struct{}
	requestIDKey struct{}
	stageKey     struct{}
)

// NewID generates a random UUID v4.
func NewID() string {
	return uuid.NewString()
}

func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run ID in ctx, or "" if absent.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID in ctx, or "" if absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

func Stage(ctx context.Context) string {
	s, _ := ctx.Value(stageKey{}).(string)
	return s
}
