package relay

// State is the lifecycle stage of one relay connection.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateSubscribed
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribed:
		return "subscribed"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Observer is notified of every state a connection enters, in order.
type Observer func(connID string, state State)
