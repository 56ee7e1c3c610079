package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// LocalStream groups the tracks captured for one call. Owned by the orchestrator.
type LocalStream struct {
	id    string
	audio *LocalTrack
	video *LocalTrack

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func newLocalStream(wantVideo bool) (*LocalStream, error) {
	s := &LocalStream{id: uuid.NewString()}
	audio, err := NewLocalTrack(domain.MediaAudio, s.id)
	if err != nil {
		return nil, err
	}
	s.audio = audio
	if wantVideo {
		video, err := NewLocalTrack(domain.MediaVideo, s.id)
		if err != nil {
			audio.Stop()
			return nil, err
		}
		s.video = video
	}
	return s, nil
}

func (s *LocalStream) ID() string { return s.id }

func (s *LocalStream) Track(kind domain.MediaKind) *LocalTrack {
	if kind == domain.MediaVideo {
		return s.video
	}
	return s.audio
}

// Tracks lists every track to attach to a new peer connection.
func (s *LocalStream) Tracks() []webrtc.TrackLocal {
	out := make([]webrtc.TrackLocal, 0, 2)
	if s.audio != nil {
		out = append(out, s.audio.Track())
	}
	if s.video != nil {
		out = append(out, s.video.Track())
	}
	return out
}

func (s *LocalStream) State() domain.LocalMediaState {
	return domain.LocalMediaState{
		AudioEnabled: s.audio != nil && s.audio.Enabled(),
		VideoEnabled: s.video != nil && s.video.Enabled(),
	}
}

// Toggle flips the enabled flag of the track of the given kind.
func (s *LocalStream) Toggle(kind domain.MediaKind) (bool, error) {
	t := s.Track(kind)
	if t == nil {
		return false, fmt.Errorf("%w: no %s track", ErrNoDevice, kind)
	}
	return t.Toggle()
}

func (s *LocalStream) start(ctx context.Context, sources map[domain.MediaKind]SampleSource) {
	ctx, s.cancel = context.WithCancel(ctx)
	logger := log.With().Str("module", "media").Str("stream", s.id).Logger()
	for kind, src := range sources {
		t := s.Track(kind)
		if t == nil || src == nil {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			pump(ctx, t, src, &logger)
		}()
	}
}

// Stop ends every track and waits for the capture pumps. Safe to call twice.
func (s *LocalStream) Stop() {
	s.once.Do(func() {
		if s.audio != nil {
			s.audio.Stop()
		}
		if s.video != nil {
			s.video.Stop()
		}
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		log.Info().Str("module", "media").Str("stream", s.id).Msg("local stream stopped")
	})
}

// Stopped reports whether every track has ended.
func (s *LocalStream) Stopped() bool {
	for _, t := range []*LocalTrack{s.audio, s.video} {
		if t != nil && t.State() != TrackStateEnded {
			return false
		}
	}
	return true
}
