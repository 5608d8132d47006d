package domain

import (
	"context"
	"time"
)

// Logger is the minimal structured logging contract consumed by the lot
// services. Args are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards all log output. It is the default when no logger is
// injected.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// MetricsRecorder observes service operation outcomes and degraded-mode
// events. Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	// Observe records one operation outcome with its duration.
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	// Degraded counts one weakened-invariant event (sequence fallback,
	// unpersisted resolution) by reason.
	Degraded(ctx context.Context, operation, reason string)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) Observe(context.Context, string, bool, time.Duration) {}
func (NopMetrics) Degraded(context.Context, string, string)             {}
