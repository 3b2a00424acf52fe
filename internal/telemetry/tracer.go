package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/alarmclock/internal/logger"
)

// Attribute keys for lifecycle spans.
const (
	AttrInstanceID = "service.instance.id"
	AttrState      = "lifecycle.state"
	AttrTrigger    = "lifecycle.trigger"
	AttrSignal     = "lifecycle.signal"
	AttrOutcome    = "lifecycle.outcome"
	AttrExitCode   = "process.exit_code"
	AttrTimeoutMs  = "lifecycle.timeout_ms"
	AttrCacheDir   = "cache.dir"
)

// Span names.
const (
	SpanStartup  = "lifecycle.startup"
	SpanTeardown = "lifecycle.teardown"

	// EventTriggerIgnored marks a shutdown trigger that arrived after the first.
	EventTriggerIgnored = "lifecycle.trigger_ignored"
)

// InstanceID returns an attribute for the application instance ID.
func InstanceID(id string) attribute.KeyValue {
	return attribute.String(AttrInstanceID, id)
}

// State returns an attribute for a lifecycle state.
func State(state string) attribute.KeyValue {
	return attribute.String(AttrState, state)
}

// Trigger returns an attribute for the shutdown trigger kind.
func Trigger(kind string) attribute.KeyValue {
	return attribute.String(AttrTrigger, kind)
}

// Signal returns an attribute for an OS signal name.
func Signal(name string) attribute.KeyValue {
	return attribute.String(AttrSignal, name)
}

// Outcome returns an attribute for a teardown outcome.
func Outcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

// ExitCode returns an attribute for the process exit code.
func ExitCode(code int) attribute.KeyValue {
	return attribute.Int(AttrExitCode, code)
}

// TimeoutMs returns an attribute for a deadline in milliseconds.
func TimeoutMs(ms int64) attribute.KeyValue {
	return attribute.Int64(AttrTimeoutMs, ms)
}

// CacheDir returns an attribute for the configured cache directory.
func CacheDir(path string) attribute.KeyValue {
	return attribute.String(AttrCacheDir, path)
}

// StartTeardownSpan starts the span covering an application teardown.
func StartTeardownSpan(ctx context.Context, trigger string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{Trigger(trigger)}, attrs...)
	return StartSpan(ctx, SpanTeardown,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartStartupSpan starts the span covering resource configuration and construction.
func StartStartupSpan(ctx context.Context, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanStartup,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// WithLogTrace tags the LogContext carried by ctx with the active span, so
// *Ctx log lines can be matched to the trace.
func WithLogTrace(ctx context.Context) context.Context {
	lc := logger.FromContext(ctx)
	if lc == nil {
		return ctx
	}
	traceID := TraceID(ctx)
	if traceID == "" {
		return ctx
	}
	return logger.WithContext(ctx, lc.WithTrace(traceID, SpanID(ctx)))
}
