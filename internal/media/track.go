package media

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	pmedia "github.com/pion/webrtc/v4/pkg/media"
)

var ErrTrackEnded = errors.New("track ended")

type TrackState int32

const (
	TrackStateLive TrackState = iota
	TrackStateMuted
	TrackStateEnded
)

func (s TrackState) String() string {
	switch s {
	case TrackStateLive:
		return "live"
	case TrackStateMuted:
		return "muted"
	case TrackStateEnded:
		return "ended"
	}
	return "unknown"
}

// LocalTrack is one captured track. Muting keeps the track negotiated and drops samples.
type LocalTrack struct {
	kind  domain.MediaKind
	track *webrtc.TrackLocalStaticSample
	state atomic.Int32 // Zero by default (TrackStateLive)
}

func codecFor(kind domain.MediaKind) webrtc.RTPCodecCapability {
	if kind == domain.MediaVideo {
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
}

func NewLocalTrack(kind domain.MediaKind, streamID string) (*LocalTrack, error) {
	t, err := webrtc.NewTrackLocalStaticSample(codecFor(kind), string(kind), streamID)
	if err != nil {
		return nil, fmt.Errorf("new %s track: %w", kind, err)
	}
	return &LocalTrack{kind: kind, track: t}, nil
}

func (lt *LocalTrack) Kind() domain.MediaKind { return lt.kind }

// Track is what gets attached to peer connections.
func (lt *LocalTrack) Track() webrtc.TrackLocal { return lt.track }

func (lt *LocalTrack) State() TrackState {
	return TrackState(lt.state.Load())
}

func (lt *LocalTrack) Enabled() bool { return lt.State() == TrackStateLive }

// SetEnabled switches between live and muted. Ended tracks stay ended.
func (lt *LocalTrack) SetEnabled(enabled bool) bool {
	want := TrackStateMuted
	if enabled {
		want = TrackStateLive
	}
	for {
		cur := lt.state.Load()
		if TrackState(cur) == TrackStateEnded {
			return false
		}
		if lt.state.CompareAndSwap(cur, int32(want)) {
			return enabled
		}
	}
}

// Toggle flips live/muted exactly once and returns the new enabled flag.
func (lt *LocalTrack) Toggle() (bool, error) {
	for {
		cur := TrackState(lt.state.Load())
		var next TrackState
		switch cur {
		case TrackStateLive:
			next = TrackStateMuted
		case TrackStateMuted:
			next = TrackStateLive
		default:
			return false, ErrTrackEnded
		}
		if lt.state.CompareAndSwap(int32(cur), int32(next)) {
			return next == TrackStateLive, nil
		}
	}
}

func (lt *LocalTrack) Stop() {
	lt.state.Store(int32(TrackStateEnded))
}

// WriteSample forwards a sample while live and silently drops it while muted.
func (lt *LocalTrack) WriteSample(s pmedia.Sample) error {
	switch lt.State() {
	case TrackStateEnded:
		return ErrTrackEnded
	case TrackStateMuted:
		return nil
	}
	return lt.track.WriteSample(s)
}
