package core

import (
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// RemoteTrack is the read side of an inbound media track.
// *webrtc.TrackRemote satisfies it.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// MediaConnection is one native peer connection toward a single remote participant.
type MediaConnection interface {
	// Close should stop all underlying media resources.
	Close() error
	// AddLocalTrack attaches a local track before negotiation.
	AddLocalTrack(track webrtc.TrackLocal) error
	// CreateOffer creates an offer receiving audio and video and sets it as local description.
	CreateOffer() (webrtc.SessionDescription, error)
	// CreateAnswer creates an answer and sets it as local description.
	CreateAnswer() (webrtc.SessionDescription, error)
	SetRemoteDescription(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(RemoteTrack))
	// OnStateChange sets a callback for peer connection state transitions.
	OnStateChange(func(webrtc.PeerConnectionState))
}

// MediaConnectionFactory opens a fresh connection toward peer.
type MediaConnectionFactory interface {
	NewConnection(peer domain.UserID) (MediaConnection, error)
}
