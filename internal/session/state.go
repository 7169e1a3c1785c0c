package session

// State is the connection lifecycle position.
type State int

const (
	// StateDisconnected means no socket exists.
	StateDisconnected State = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateConnected means the socket is established.
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

// FailureReason classifies why the session last dropped to
// [StateDisconnected].  It is only meaningful in that state.
type FailureReason int

const (
	FailureNone FailureReason = iota
	FailureConnectRefused
	FailureConnectTimeout
	FailureClosed
	FailureProtocol
	FailureOther
)

func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return "none"
	case FailureConnectRefused:
		return "connect-refused"
	case FailureConnectTimeout:
		return "connect-timeout"
	case FailureClosed:
		return "closed"
	case FailureProtocol:
		return "protocol-error"
	case FailureOther:
		return "other"
	default:
		return "unknown"
	}
}
