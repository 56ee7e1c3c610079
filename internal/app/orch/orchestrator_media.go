package orch

import (
	"context"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/media"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) ToggleAudio(ctx context.Context) (bool, error) {
	return o.toggle(ctx, domain.MediaAudio)
}

func (o *Orchestrator) ToggleVideo(ctx context.Context) (bool, error) {
	return o.toggle(ctx, domain.MediaVideo)
}

// toggle flips the local track, mirrors it on the self participant and tells the room.
func (o *Orchestrator) toggle(ctx context.Context, kind domain.MediaKind) (bool, error) {
	var enabled bool
	err := o.do(ctx, func() error {
		if o.session == nil || o.local == nil {
			return ErrNoSession
		}
		on, err := o.local.Toggle(kind)
		if err != nil {
			return err
		}
		enabled = on
		o.session.Local = o.local.State()
		o.session.Update(o.self, func(p *domain.Participant) {
			if kind == domain.MediaVideo {
				p.SetVideo(on)
			} else {
				p.SetAudio(on)
			}
		})
		if o.sig != nil {
			if err := o.sig.SendToggle(kind, on); err != nil {
				log.Warn().Err(err).Str("module", "orch").Str("kind", string(kind)).Msg("send toggle")
			}
		}
		o.publish()
		return nil
	})
	return enabled, err
}

// RemoteStreams returns per-participant track stats.
func (o *Orchestrator) RemoteStreams(ctx context.Context) (map[domain.UserID][]media.TrackStats, error) {
	var out map[domain.UserID][]media.TrackStats
	err := o.do(ctx, func() error {
		out = o.streamStats()
		return nil
	})
	return out, err
}

func (o *Orchestrator) streamStats() map[domain.UserID][]media.TrackStats {
	out := make(map[domain.UserID][]media.TrackStats, len(o.remotes))
	for id, rs := range o.remotes {
		out[id] = rs.Stats()
	}
	return out
}

// onRemoteTrack runs on the loop.
func (o *Orchestrator) onRemoteTrack(id domain.UserID, t core.RemoteTrack) {
	if o.session == nil {
		return
	}
	rs, ok := o.remotes[id]
	if !ok {
		rs = media.NewRemoteStream(id, o.sink)
		o.remotes[id] = rs
	}
	if rs.AddTrack(t) {
		o.publish()
	}
}

func (o *Orchestrator) dropRemote(id domain.UserID) bool {
	rs, ok := o.remotes[id]
	if !ok {
		return false
	}
	rs.Stop()
	delete(o.remotes, id)
	return true
}
