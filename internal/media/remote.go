package media

import (
	"context"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PacketSink receives every RTP packet read from remote tracks.
type PacketSink interface {
	WriteRTP(peer domain.UserID, trackID string, pkt *rtp.Packet)
}

type TrackStats struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Packets  uint64 `json:"packets"`
	Bytes    uint64 `json:"bytes"`
	Finished bool   `json:"finished"`
}

type remoteTrack struct {
	src      core.RemoteTrack
	packets  atomic.Uint64
	bytes    atomic.Uint64
	finished atomic.Bool
}

// RemoteStream is the media received from one participant.
type RemoteStream struct {
	peer domain.UserID
	sink PacketSink

	mu     sync.RWMutex
	tracks map[string]*remoteTrack

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRemoteStream(peer domain.UserID, sink PacketSink) *RemoteStream {
	ctx, cancel := context.WithCancel(context.Background())
	return &RemoteStream{
		peer:   peer,
		sink:   sink,
		tracks: make(map[string]*remoteTrack),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *RemoteStream) Peer() domain.UserID { return s.peer }

// AddTrack registers a track and starts draining it. Duplicate ids are ignored.
func (s *RemoteStream) AddTrack(t core.RemoteTrack) bool {
	if s.ctx.Err() != nil {
		return false
	}
	s.mu.Lock()
	if _, ok := s.tracks[t.ID()]; ok {
		s.mu.Unlock()
		return false
	}
	rt := &remoteTrack{src: t}
	s.tracks[t.ID()] = rt
	s.mu.Unlock()

	logger := log.With().
		Str("module", "media.remote").
		Str("peer", string(s.peer)).
		Str("track_id", t.ID()).
		Str("kind", t.Kind().String()).
		Logger()
	logger.Info().Msg("remote track added")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(rt, &logger)
	}()
	return true
}

// loop reads RTP packets from the source track until it ends or the stream stops.
func (s *RemoteStream) loop(rt *remoteTrack, logger *zerolog.Logger) {
	defer rt.finished.Store(true)
	for {
		select {
		case <-s.ctx.Done():
			logger.Debug().Msg("remote stream stopped")
			return
		default:
		}
		pkt, _, err := rt.src.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("remote track read ended")
			return
		}
		rt.packets.Add(1)
		rt.bytes.Add(uint64(len(pkt.Payload)))
		if s.sink != nil {
			s.sink.WriteRTP(s.peer, rt.src.ID(), pkt)
		}
	}
}

func (s *RemoteStream) TrackIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.tracks))
}

func (s *RemoteStream) Stats() []TrackStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TrackStats, 0, len(s.tracks))
	for id, rt := range s.tracks {
		out = append(out, TrackStats{
			ID:       id,
			Kind:     rt.src.Kind().String(),
			Packets:  rt.packets.Load(),
			Bytes:    rt.bytes.Load(),
			Finished: rt.finished.Load(),
		})
	}
	slices.SortFunc(out, func(a, b TrackStats) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Stop detaches readers. Readers blocked in ReadRTP exit once the owning
// connection is closed, so Stop does not wait for them.
func (s *RemoteStream) Stop() {
	s.cancel()
}

// Wait blocks until every reader has returned.
func (s *RemoteStream) Wait() { s.wg.Wait() }

func (s *RemoteStream) Stopped() bool { return s.ctx.Err() != nil }
