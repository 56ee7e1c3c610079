package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/domain"
)

type toggler interface {
	ToggleAudio(ctx context.Context) (bool, error)
	ToggleVideo(ctx context.Context) (bool, error)
}

// handleToggles flips the local track bound to each received signal until ctx ends.
func handleToggles(ctx context.Context, o toggler, sigs <-chan os.Signal, bindings map[os.Signal]domain.MediaKind) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-sigs:
			kind, ok := bindings[s]
			if !ok {
				continue
			}
			toggle := o.ToggleAudio
			if kind == domain.MediaVideo {
				toggle = o.ToggleVideo
			}
			on, err := toggle(ctx)
			if err != nil {
				log.Warn().Err(err).Str("module", "huddle").Str("kind", string(kind)).Msg("toggle")
				continue
			}
			log.Info().Str("module", "huddle").Str("kind", string(kind)).Bool("enabled", on).Msg("media toggled")
		}
	}
}
