package device

import "clusterlink/internal/check"

// State describes the connection state of a device.
type State uint8

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Transition returns to if the move is legal. Illegal moves keep s.
func (s State) Transition(to State) State {
	ok := (s == StateDisconnected && to == StateConnected) ||
		(s == StateConnected && to == StateDisconnected)
	check.Assertf(ok, "device state transition: %s -> %s", s, to)
	if !ok {
		return s
	}
	return to
}
