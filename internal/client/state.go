package client

// State is a phase of the connection lifecycle.
//
//	Idle -> Connecting -> Open -> Closed -> Connecting -> ... -> Exhausted
//
// Stop moves any non-terminal state to Stopped.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed // waiting for the retry timer
	StateExhausted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateExhausted:
		return "exhausted"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateExhausted || s == StateStopped
}
