package peer

import "errors"

var (
	// ErrNoRecord is returned when an answer arrives for a peer we never offered to.
	ErrNoRecord = errors.New("no peer connection record")
	// ErrNegotiation wraps SDP failures from the media connection.
	ErrNegotiation = errors.New("negotiation failed")
)
