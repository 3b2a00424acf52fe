package commands

// Action is what the process does for a given command token.
type Action int

const (
	// ActionNone constructs nothing and lets the process exit with code 0.
	ActionNone Action = iota
	// ActionRun enters the run lifecycle.
	ActionRun
)

// StartCommand is the explicit name of the default command.
const StartCommand = "start"

// Dispatch picks the action for the first positional argument. No argument and
// "start" run the service; any other token is a no-op.
func Dispatch(args []string) Action {
	if len(args) == 0 || args[0] == StartCommand {
		return ActionRun
	}
	return ActionNone
}

func (a Action) String() string {
	switch a {
	case ActionRun:
		return "run"
	default:
		return "none"
	}
}
