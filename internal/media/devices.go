package media

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dkeye/Huddle/internal/domain"
)

var ErrNoDevice = errors.New("media device unavailable")

// Devices acquires local capture for a call.
type Devices interface {
	Acquire(ctx context.Context, kind domain.CallKind) (*LocalStream, error)
}

// SourceFunc opens a capture source on demand.
type SourceFunc func() (SampleSource, error)

// SyntheticDevices captures from in-process sample sources. A nil Video means no camera.
type SyntheticDevices struct {
	Audio SourceFunc
	Video SourceFunc
}

// DefaultDevices captures Opus silence and has no camera.
func DefaultDevices() *SyntheticDevices {
	return &SyntheticDevices{
		Audio: func() (SampleSource, error) { return NewSilenceSource(), nil },
	}
}

func (d *SyntheticDevices) Acquire(ctx context.Context, kind domain.CallKind) (*LocalStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Audio == nil {
		return nil, fmt.Errorf("%w: microphone", ErrNoDevice)
	}
	if kind.WantsVideo() && d.Video == nil {
		return nil, fmt.Errorf("%w: camera", ErrNoDevice)
	}

	sources := make(map[domain.MediaKind]SampleSource, 2)
	audio, err := d.Audio()
	if err != nil {
		return nil, fmt.Errorf("%w: microphone: %v", ErrNoDevice, err)
	}
	sources[domain.MediaAudio] = audio
	if kind.WantsVideo() {
		video, err := d.Video()
		if err != nil {
			closeSources(sources)
			return nil, fmt.Errorf("%w: camera: %v", ErrNoDevice, err)
		}
		sources[domain.MediaVideo] = video
	}

	s, err := newLocalStream(kind.WantsVideo())
	if err != nil {
		closeSources(sources)
		return nil, err
	}
	// Capture outlives the acquiring request; the stream is stopped explicitly.
	s.start(context.WithoutCancel(ctx), sources)
	return s, nil
}

func closeSources(sources map[domain.MediaKind]SampleSource) {
	for _, src := range sources {
		if c, ok := src.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
