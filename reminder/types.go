package reminder

// State is the connection state of the reminder channel.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Reminder is a server-pushed notification event. It is transient: consumed
// by the notification collaborator and never persisted.
type Reminder struct {
	// Type is the reminder kind, e.g. "daily", "weekly" or "custom".
	Type string `json:"type"`
	// Message is the reminder text.
	Message string `json:"message"`
}

// subscribeFrame is sent once after connect to bind the single reminders
// topic.
type subscribeFrame struct {
	Subscribe string `json:"subscribe"`
}
