// Package prometheus implements the metrics interfaces on top of the
// client_golang registry managed by pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/alarmclock/pkg/metrics"
)

// supervisorStates lists every state label so exactly one series reads 1.
var supervisorStates = []string{"idle", "shutting_down", "terminated"}

func init() {
	metrics.RegisterSupervisorMetricsConstructor(NewSupervisorMetrics)
}

// supervisorMetrics is the Prometheus implementation of metrics.SupervisorMetrics.
type supervisorMetrics struct {
	triggers         *prometheus.CounterVec
	ignoredTriggers  *prometheus.CounterVec
	state            *prometheus.GaugeVec
	teardownDuration *prometheus.HistogramVec
}

// NewSupervisorMetrics creates a new Prometheus-backed SupervisorMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewSupervisorMetrics() metrics.SupervisorMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	m := &supervisorMetrics{
		triggers: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "alarmclock_supervisor_triggers_total",
				Help: "Shutdown triggers that started the teardown sequence, by kind",
			},
			[]string{"kind"}, // "signal", "fault", "context", "manual"
		),
		ignoredTriggers: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "alarmclock_supervisor_ignored_triggers_total",
				Help: "Shutdown triggers received after shutdown had already begun, by kind",
			},
			[]string{"kind"},
		),
		state: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alarmclock_supervisor_state",
				Help: "Current supervisor state (1 for the active state, 0 otherwise)",
			},
			[]string{"state"},
		),
		teardownDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "alarmclock_supervisor_teardown_duration_milliseconds",
				Help: "Duration of application teardown in milliseconds, by outcome",
				Buckets: []float64{
					1,     // 1ms - nothing to release
					10,    // 10ms
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s
					5000,  // 5s
					10000, // 10s
					30000, // 30s - default shutdown timeout
					60000, // 1m
				},
			},
			[]string{"outcome"},
		),
	}

	m.SetState("idle")
	return m
}

func (m *supervisorMetrics) RecordTrigger(kind string) {
	if m == nil {
		return
	}
	m.triggers.WithLabelValues(kind).Inc()
}

func (m *supervisorMetrics) RecordIgnoredTrigger(kind string) {
	if m == nil {
		return
	}
	m.ignoredTriggers.WithLabelValues(kind).Inc()
}

func (m *supervisorMetrics) SetState(state string) {
	if m == nil {
		return
	}
	for _, s := range supervisorStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

func (m *supervisorMetrics) ObserveTeardown(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.teardownDuration.WithLabelValues(outcome).Observe(duration.Seconds() * 1000)
}
