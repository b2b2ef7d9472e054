package plugin

// State tracks a plugin record through its lifecycle. Transitions are driven
// exclusively by Record.Start and Record.Close.
type State uint32

const (
	// StateIdle is the initial state, and the state a record returns to
	// after a clean or failed close.
	StateIdle State = iota
	// StateStarting marks a record whose initializer strategy is running.
	StateStarting
	// StateRunning marks a live record with a usable instance.
	StateRunning
	// StateStopping marks a record whose teardown is in progress.
	StateStopping
	// StateFailed marks a record whose start raised an error. Failed
	// records are idle-equivalent for ordering and reload purposes.
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:     "IDLE",
	StateStarting: "STARTING",
	StateRunning:  "RUNNING",
	StateStopping: "STOPPING",
	StateFailed:   "FAILED",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Active reports whether the record currently holds resources that a reload
// must not silently discard.
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning || s == StateStopping
}
