package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	pmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
)

// IVFSource plays VP8 frames from an IVF container in real time and loops at EOF.
type IVFSource struct {
	in     io.ReadSeeker
	reader *ivfreader.IVFReader
	frame  time.Duration
	ticker *time.Ticker
	once   sync.Once
}

// OpenIVF opens an IVF file as a video source.
func OpenIVF(path string) (*IVFSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src, err := NewIVFSource(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return src, nil
}

func NewIVFSource(in io.ReadSeeker) (*IVFSource, error) {
	reader, header, err := ivfreader.NewWith(in)
	if err != nil {
		return nil, fmt.Errorf("ivf header: %w", err)
	}
	if header.FourCC != "VP80" {
		return nil, fmt.Errorf("ivf codec %q, want VP80", header.FourCC)
	}
	frame := 33 * time.Millisecond
	if header.TimebaseDenominator > 0 && header.TimebaseNumerator > 0 {
		frame = time.Duration(header.TimebaseNumerator) * time.Second / time.Duration(header.TimebaseDenominator)
	}
	return &IVFSource{in: in, reader: reader, frame: frame, ticker: time.NewTicker(frame)}, nil
}

func (s *IVFSource) FrameDuration() time.Duration { return s.frame }

func (s *IVFSource) Next(ctx context.Context) (pmedia.Sample, error) {
	if err := ctx.Err(); err != nil {
		_ = s.Close()
		return pmedia.Sample{}, err
	}
	select {
	case <-ctx.Done():
		_ = s.Close()
		return pmedia.Sample{}, ctx.Err()
	case <-s.ticker.C:
	}
	data, _, err := s.reader.ParseNextFrame()
	if errors.Is(err, io.EOF) {
		if err = s.rewind(); err == nil {
			data, _, err = s.reader.ParseNextFrame()
		}
	}
	if err != nil {
		_ = s.Close()
		return pmedia.Sample{}, err
	}
	return pmedia.Sample{Data: data, Duration: s.frame}, nil
}

func (s *IVFSource) rewind() error {
	if _, err := s.in.Seek(0, io.SeekStart); err != nil {
		return err
	}
	reader, _, err := ivfreader.NewWith(s.in)
	if err != nil {
		return err
	}
	s.reader = reader
	return nil
}

// Close stops pacing and closes the input if it is closable. Safe to call twice.
func (s *IVFSource) Close() error {
	var err error
	s.once.Do(func() {
		s.ticker.Stop()
		if c, ok := s.in.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
