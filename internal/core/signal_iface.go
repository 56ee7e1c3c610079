package core

import "errors"

// ErrBackpressure is returned by TrySend when the outbound queue is full.
var ErrBackpressure = errors.New("signal send queue full")

// Frame is a raw encoded signaling envelope.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
