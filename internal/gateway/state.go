package gateway

// State is the connection state of a gateway link.
//
// The state is single-writer: only the dispatch loop applies transitions.
// Other goroutines may request a transition (explicit connect/disconnect,
// network-layer events) but the request is marshalled onto the loop and
// committed there.
type State int32

// Connection states.
const (
	// StateDisconnected is the initial state, and the terminal state after
	// an explicit disconnect.
	StateDisconnected State = iota

	// StateConnecting is an initial connection attempt in progress.
	StateConnecting

	// StateConnected is an established, healthy link.
	StateConnected

	// StateReconnecting is an unexpectedly lost link with the reconnection
	// scheduler active.
	StateReconnecting
)

// String returns the lowercase state name used in logs and bus payloads.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Available reports whether the gateway is usable in this state.
// Entities bound to the gateway are available exactly when the link is.
func (s State) Available() bool {
	return s == StateConnected
}

// canTransition reports whether moving from s to next is a legal transition.
//
// The transition table:
//
//	Disconnected -> Connecting     explicit connect request
//	Connecting   -> Connected      network-layer connect success
//	Connecting   -> Disconnected   network-layer connect failure
//	Connected    -> Reconnecting   unexpected disconnection
//	Connected    -> Disconnected   explicit disconnect request
//	Reconnecting -> Connected      reconnection attempt succeeds
//	Reconnecting -> Disconnected   explicit disconnect request
func (s State) canTransition(next State) bool {
	switch s {
	case StateDisconnected:
		return next == StateConnecting
	case StateConnecting:
		return next == StateConnected || next == StateDisconnected
	case StateConnected:
		return next == StateReconnecting || next == StateDisconnected
	case StateReconnecting:
		return next == StateConnected || next == StateDisconnected
	default:
		return false
	}
}
