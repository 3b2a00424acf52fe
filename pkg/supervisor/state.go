package supervisor

// State is the shutdown state of a Supervisor.
type State int32

const (
	// StateIdle means no shutdown trigger has been accepted yet.
	StateIdle State = iota
	// StateShuttingDown means teardown is in progress.
	StateShuttingDown
	// StateTerminated means teardown settled and the exit function has been called.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Trigger kinds that can start a shutdown.
const (
	TriggerSignal  = "signal"
	TriggerFault   = "fault"
	TriggerContext = "context"
	TriggerManual  = "manual"
)

// Teardown outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
)
