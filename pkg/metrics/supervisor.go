package metrics

import (
	"time"
)

// SupervisorMetrics provides observability for the shutdown controller.
//
// Pass nil to disable collection with zero overhead.
type SupervisorMetrics interface {
	// RecordTrigger counts a shutdown trigger that started the teardown sequence.
	//
	// Parameters:
	//   - kind: "signal", "fault", "context" or "manual"
	RecordTrigger(kind string)

	// RecordIgnoredTrigger counts a trigger that arrived after shutdown had begun.
	RecordIgnoredTrigger(kind string)

	// SetState publishes the controller's current state ("idle", "shutting_down", "terminated").
	SetState(state string)

	// ObserveTeardown records how long application teardown took.
	//
	// Parameters:
	//   - outcome: "success", "failure" or "timeout"
	//   - duration: time from teardown start to settlement or deadline
	ObserveTeardown(outcome string, duration time.Duration)
}

// NewSupervisorMetrics creates a new Prometheus-backed SupervisorMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or if no
// implementation has been registered.
//
// Example usage:
//
//	import _ "github.com/marmos91/alarmclock/pkg/metrics/prometheus"
//
//	metrics.InitRegistry()
//	sup := supervisor.New(app, supervisor.Options{Metrics: metrics.NewSupervisorMetrics()})
func NewSupervisorMetrics() SupervisorMetrics {
	if !IsEnabled() || newPrometheusSupervisorMetrics == nil {
		return nil
	}
	return newPrometheusSupervisorMetrics()
}

// newPrometheusSupervisorMetrics is implemented in pkg/metrics/prometheus/supervisor.go.
// This indirection avoids import cycles while keeping the API clean.
var newPrometheusSupervisorMetrics func() SupervisorMetrics

// RegisterSupervisorMetricsConstructor registers the Prometheus supervisor metrics constructor.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterSupervisorMetricsConstructor(constructor func() SupervisorMetrics) {
	newPrometheusSupervisorMetrics = constructor
}

// RecordTrigger records a trigger on m if it is non-nil.
func RecordTrigger(m SupervisorMetrics, kind string) {
	if m != nil {
		m.RecordTrigger(kind)
	}
}

// RecordIgnoredTrigger records an ignored trigger on m if it is non-nil.
func RecordIgnoredTrigger(m SupervisorMetrics, kind string) {
	if m != nil {
		m.RecordIgnoredTrigger(kind)
	}
}

// SetState publishes state on m if it is non-nil.
func SetState(m SupervisorMetrics, state string) {
	if m != nil {
		m.SetState(state)
	}
}

// ObserveTeardown records a teardown on m if it is non-nil.
func ObserveTeardown(m SupervisorMetrics, outcome string, duration time.Duration) {
	if m != nil {
		m.ObserveTeardown(outcome, duration)
	}
}
