package peer

import "github.com/pion/webrtc/v4"

type State int

const (
	StateNew State = iota
	StateHaveDescription
	StateStable
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateHaveDescription:
		return "have-description"
	case StateStable:
		return "stable"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// terminal reports whether the record must leave the registry.
func (s State) terminal() bool {
	return s == StateDisconnected || s == StateFailed || s == StateClosed
}

func fromConnectionState(s webrtc.PeerConnectionState) (State, bool) {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		return StateConnected, true
	case webrtc.PeerConnectionStateDisconnected:
		return StateDisconnected, true
	case webrtc.PeerConnectionStateFailed:
		return StateFailed, true
	case webrtc.PeerConnectionStateClosed:
		return StateClosed, true
	}
	return 0, false
}
