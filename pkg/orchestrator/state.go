package orchestrator

// State is the progress of one completion.
//
//	Idle -> Building -> ClientReady -> AwaitingBackend -> Succeeded
//
// Any state before Succeeded may move to Failed. Both Succeeded and Failed
// are terminal.
type State int

const (
	StateIdle State = iota
	StateBuilding
	StateClientReady
	StateAwaitingBackend
	StateSucceeded
	StateFailed
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateBuilding:        "building",
	StateClientReady:     "client_ready",
	StateAwaitingBackend: "awaiting_backend",
	StateSucceeded:       "succeeded",
	StateFailed:          "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
