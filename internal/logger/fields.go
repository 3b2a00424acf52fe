package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID
	KeySpanID  = "span_id"  // OpenTelemetry span ID

	// ========================================================================
	// Process Lifecycle
	// ========================================================================
	KeyInstanceID = "instance_id" // Application instance ID for the current run
	KeyComponent  = "component"   // Emitting component
	KeyCommand    = "command"     // Command token the process was invoked with
	KeyAction     = "action"      // Dispatch result for the command token
	KeyState      = "state"       // Supervisor or application state
	KeySignal     = "signal"      // OS signal name
	KeyTrigger    = "trigger"     // Shutdown trigger kind: signal, fault, context, manual
	KeyExitCode   = "exit_code"   // Process exit code
	KeyTimeout    = "timeout"     // Configured deadline

	// ========================================================================
	// Resources
	// ========================================================================
	KeyPath = "path" // Filesystem path
	KeySize = "size" // Human readable size
	KeyPort = "port" // Listening port

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeySource     = "source"      // Configuration source
)

// ----------------------------------------------------------------------------
// Field helpers
// These functions provide type-safe construction of slog.Attr values.
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for the trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// InstanceID returns a slog.Attr for the application instance ID
func InstanceID(id string) slog.Attr {
	return slog.String(KeyInstanceID, id)
}

// State returns a slog.Attr for a lifecycle state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// Signal returns a slog.Attr for an OS signal name
func Signal(name string) slog.Attr {
	return slog.String(KeySignal, name)
}

// Trigger returns a slog.Attr for the shutdown trigger kind
func Trigger(kind string) slog.Attr {
	return slog.String(KeyTrigger, kind)
}

// ExitCode returns a slog.Attr for the process exit code
func ExitCode(code int) slog.Attr {
	return slog.Int(KeyExitCode, code)
}

// Timeout returns a slog.Attr for a configured deadline
func Timeout(d time.Duration) slog.Attr {
	return slog.Duration(KeyTimeout, d)
}

// Path returns a slog.Attr for a filesystem path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Port returns a slog.Attr for a listening port
func Port(p int) slog.Attr {
	return slog.Int(KeyPort, p)
}

// DurationMs returns a slog.Attr for an operation duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error. A nil error yields an empty attr, which handlers skip.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
