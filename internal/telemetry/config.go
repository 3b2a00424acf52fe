package telemetry

import "github.com/marmos91/alarmclock/pkg/config"

// ServiceName is reported to both the trace and the profiling backend.
const ServiceName = "alarmclock"

// Config holds tracer settings for one process run.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// InstanceID identifies this process run in the trace backend
	InstanceID string

	// Endpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	Endpoint string
	Insecure bool

	// SampleRate is the trace sampling ratio; values outside [0, 1] saturate
	SampleRate float64
}

// FromSettings derives tracer and profiler settings from the loaded
// configuration file section.
func FromSettings(s config.TelemetryConfig, version, instanceID string) (Config, ProfilingConfig) {
	tc := Config{
		Enabled:        s.Enabled,
		ServiceName:    ServiceName,
		ServiceVersion: version,
		InstanceID:     instanceID,
		Endpoint:       s.Endpoint,
		Insecure:       s.Insecure,
		SampleRate:     s.SampleRate,
	}

	pc := ProfilingConfig{
		Enabled:        s.Profiling.Enabled,
		ServiceName:    ServiceName,
		ServiceVersion: version,
		InstanceID:     instanceID,
		Endpoint:       s.Profiling.Endpoint,
		ProfileTypes:   s.Profiling.ProfileTypes,
	}

	return tc, pc
}
