package session

// State is the session lifecycle state.
type State int32

const (
	// StateAnonymous means no usable credentials are held.
	StateAnonymous State = iota
	// StateAuthenticated means a credential pair is stored.
	StateAuthenticated
	// StateRefreshing means a refresh call is on the wire. Concurrent
	// refresh callers await its result instead of issuing their own call.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}
