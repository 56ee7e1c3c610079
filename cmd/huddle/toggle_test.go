package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/Huddle/internal/domain"
)

type fakeToggler struct {
	mu    sync.Mutex
	audio int
	video int
}

func (f *fakeToggler) ToggleAudio(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio++
	return f.audio%2 == 0, nil
}

func (f *fakeToggler) ToggleVideo(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video++
	return false, errors.New("no camera")
}

func (f *fakeToggler) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audio, f.video
}

func TestHandleToggles_DispatchesByBinding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := &fakeToggler{}
	sigs := make(chan os.Signal, 4)
	bindings := map[os.Signal]domain.MediaKind{
		os.Interrupt: domain.MediaAudio,
		os.Kill:      domain.MediaVideo,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		handleToggles(ctx, f, sigs, bindings)
	}()

	sigs <- os.Interrupt
	sigs <- os.Kill
	sigs <- os.Interrupt
	assert.Eventually(t, func() bool {
		a, v := f.counts()
		return a == 2 && v == 1
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleToggles did not return after cancel")
	}
}

func TestToggleSignals_CoverBothKinds(t *testing.T) {
	if len(toggleSignals) == 0 {
		t.Skip("no toggle signals on this platform")
	}
	kinds := map[domain.MediaKind]bool{}
	for _, k := range toggleSignals {
		kinds[k] = true
	}
	assert.True(t, kinds[domain.MediaAudio])
	assert.True(t, kinds[domain.MediaVideo])
}
