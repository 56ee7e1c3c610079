package rtc

import (
	"errors"
	"io"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// WebRTCConnection adapts *webrtc.PeerConnection to core.MediaConnection.
type WebRTCConnection struct {
	pc   *webrtc.PeerConnection
	peer domain.UserID

	mu            sync.RWMutex
	onICE         func(webrtc.ICECandidateInit)
	onTrack       func(core.RemoteTrack)
	onStateChange func(webrtc.PeerConnectionState)

	closeOnce sync.Once
	closeErr  error
}

var _ core.MediaConnection = (*WebRTCConnection)(nil)

func newWebRTCConnection(api *webrtc.API, cfg webrtc.Configuration, peer domain.UserID) (*WebRTCConnection, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	c := &WebRTCConnection{pc: pc, peer: peer}
	c.bind()
	return c, nil
}

func (c *WebRTCConnection) bind() {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "webrtc").Str("peer", string(c.peer)).Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Str("peer", string(c.peer)).Str("peer_connection_state", s.String()).Msg("Peer state")
		c.mu.RLock()
		fn := c.onStateChange
		c.mu.RUnlock()
		if fn != nil {
			fn(s)
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		// nil marks the end of gathering.
		if cand == nil {
			return
		}
		c.mu.RLock()
		fn := c.onICE
		c.mu.RUnlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("peer", string(c.peer)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		c.mu.RLock()
		fn := c.onTrack
		c.mu.RUnlock()
		if fn != nil {
			fn(track)
		}
	})
}

// AddLocalTrack attaches a local track and drains RTCP for it.
func (c *WebRTCConnection) AddLocalTrack(track webrtc.TrackLocal) error {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return err
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				if !errors.Is(err, io.EOF) {
					log.Debug().Err(err).Str("module", "webrtc").Str("peer", string(c.peer)).Msg("rtcp reader stopped")
				}
				return
			}
		}
	}()
	return nil
}

// ensureReceivers adds a recvonly transceiver for every kind that has none,
// so offers always ask for both audio and video.
func (c *WebRTCConnection) ensureReceivers() error {
	have := map[webrtc.RTPCodecType]bool{}
	for _, t := range c.pc.GetTransceivers() {
		have[t.Kind()] = true
	}
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if have[kind] {
			continue
		}
		if _, err := c.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *WebRTCConnection) CreateOffer() (webrtc.SessionDescription, error) {
	if err := c.ensureReceivers(); err != nil {
		return webrtc.SessionDescription{}, err
	}
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (c *WebRTCConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (c *WebRTCConnection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *WebRTCConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *WebRTCConnection) LocalDescription() *webrtc.SessionDescription {
	return c.pc.LocalDescription()
}

func (c *WebRTCConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

// OnTrack sets application-level callback for remote tracks.
func (c *WebRTCConnection) OnTrack(fn func(core.RemoteTrack)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

func (c *WebRTCConnection) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	c.onStateChange = fn
	c.mu.Unlock()
}

func (c *WebRTCConnection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.pc.Close()
		if c.closeErr != nil {
			log.Error().Err(c.closeErr).Str("module", "webrtc").Str("peer", string(c.peer)).Msg("close error")
		} else {
			log.Info().Str("module", "webrtc").Str("peer", string(c.peer)).Msg("closed")
		}
	})
	return c.closeErr
}
