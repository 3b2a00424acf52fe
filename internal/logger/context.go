package logger

import "context"

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext carries the fields every *Ctx call prepends to its output.
type LogContext struct {
	InstanceID string // Process run, one per supervisor
	TraceID    string // Set once a teardown span is active
	SpanID     string
	Component  string // supervisor, app, api, ...
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the LogContext stored in ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

func NewLogContext(instanceID string) *LogContext {
	return &LogContext{InstanceID: instanceID}
}

// Clone returns a shallow copy; nil stays nil.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

func (lc *LogContext) WithComponent(component string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Component = component
	}
	return c
}

// WithTrace returns a copy tagged with the given span. Empty ids leave the
// copy untagged.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil && traceID != "" {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}
