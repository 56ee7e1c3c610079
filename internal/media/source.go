package media

import (
	"context"
	"errors"
	"time"

	pmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
)

// SampleSource produces encoded samples for one local track.
type SampleSource interface {
	Next(ctx context.Context) (pmedia.Sample, error)
}

// opusSilenceFrame is a 20ms Opus packet (TOC 0xf8) that decodes to silence.
var opusSilenceFrame = []byte{0xf8, 0xff, 0xfe}

// SilenceSource paces Opus silence frames in real time.
type SilenceSource struct {
	ticker *time.Ticker
}

func NewSilenceSource() *SilenceSource {
	return &SilenceSource{ticker: time.NewTicker(20 * time.Millisecond)}
}

func (s *SilenceSource) Next(ctx context.Context) (pmedia.Sample, error) {
	select {
	case <-ctx.Done():
		s.ticker.Stop()
		return pmedia.Sample{}, ctx.Err()
	case <-s.ticker.C:
		return pmedia.Sample{Data: opusSilenceFrame, Duration: 20 * time.Millisecond}, nil
	}
}

// Close stops the pacing ticker.
func (s *SilenceSource) Close() error {
	s.ticker.Stop()
	return nil
}

// pump copies samples from src into track until ctx ends or the track is stopped.
func pump(ctx context.Context, track *LocalTrack, src SampleSource, logger *zerolog.Logger) {
	for {
		s, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn().Err(err).Str("kind", string(track.Kind())).Msg("sample source stopped")
			}
			return
		}
		if err := track.WriteSample(s); err != nil {
			if !errors.Is(err, ErrTrackEnded) {
				logger.Error().Err(err).Str("kind", string(track.Kind())).Msg("write sample")
			}
			return
		}
	}
}
