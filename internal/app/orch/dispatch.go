package orch

import (
	"errors"
	"time"

	"github.com/dkeye/Huddle/internal/adapters/signalclient"
	"github.com/dkeye/Huddle/internal/app/peer"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// inbound receives signaling events for the call started under gen.
type inbound struct {
	o   *Orchestrator
	gen uint64
}

var _ signalclient.Handler = (*inbound)(nil)

// run posts fn to the loop; it is skipped if the call has ended since.
func (h *inbound) run(fn func(o *Orchestrator)) {
	o := h.o
	o.post(func() {
		if o.gen.Load() != h.gen || o.session == nil {
			return
		}
		fn(o)
	})
}

func (h *inbound) OnOffer(from domain.UserID, offer webrtc.SessionDescription) {
	h.run(func(o *Orchestrator) { o.handleOffer(from, offer) })
}

func (h *inbound) OnAnswer(from domain.UserID, answer webrtc.SessionDescription) {
	h.run(func(o *Orchestrator) {
		if err := o.peers.HandleAnswer(from, answer); err != nil {
			if errors.Is(err, peer.ErrNoRecord) {
				log.Debug().Err(err).Str("module", "orch").Msg("answer ignored")
				return
			}
			log.Warn().Err(err).Str("module", "orch").Str("peer", from.String()).Msg("handle answer")
			o.negotiationFailed(from, err)
		}
	})
}

func (h *inbound) OnICECandidate(from domain.UserID, c webrtc.ICECandidateInit) {
	h.run(func(o *Orchestrator) { o.peers.HandleICECandidate(from, c) })
}

func (h *inbound) OnParticipantJoined(id domain.UserID, joinedAt time.Time) {
	h.run(func(o *Orchestrator) {
		if id == o.self {
			return
		}
		if o.session.Upsert(id, joinedAt) {
			log.Info().Str("module", "orch").Str("peer", id.String()).Msg("participant joined")
			o.publish()
		}
	})
}

func (h *inbound) OnParticipantLeft(id domain.UserID) {
	h.run(func(o *Orchestrator) {
		if id == o.self {
			return
		}
		o.removePeer(id)
		log.Info().Str("module", "orch").Str("peer", id.String()).Msg("participant left")
	})
}

func (h *inbound) OnParticipantToggled(id domain.UserID, kind domain.MediaKind, enabled bool) {
	h.run(func(o *Orchestrator) {
		ok := o.session.Update(id, func(p *domain.Participant) {
			if kind == domain.MediaVideo {
				p.SetVideo(enabled)
			} else {
				p.SetAudio(enabled)
			}
		})
		if ok {
			o.publish()
		}
	})
}

func (h *inbound) OnStateChange(s signalclient.State) {
	h.run(func(o *Orchestrator) {
		o.sigState = s
		if s == signalclient.StateFailed {
			log.Error().Str("module", "orch").Str("room", o.session.RoomID.String()).Msg("signaling failed, call is offline")
		}
		o.publish()
	})
}

// handleOffer answers a remote offer. When both sides offered at once the
// smaller user id keeps its offer and the other side yields.
func (o *Orchestrator) handleOffer(from domain.UserID, offer webrtc.SessionDescription) {
	if from == o.self || from == "" {
		return
	}
	if o.peers.Offering(from) {
		if o.self.Less(from) {
			log.Info().Str("module", "orch").Str("peer", from.String()).Msg("glare: keeping our offer")
			return
		}
		log.Info().Str("module", "orch").Str("peer", from.String()).Msg("glare: yielding to remote offer")
		o.peers.Remove(from)
		o.dropRemote(from)
	}
	if o.session.Upsert(from, time.Time{}) {
		o.publish()
	}

	answer, err := o.peers.HandleOffer(from, offer)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("peer", from.String()).Msg("handle offer")
		o.negotiationFailed(from, err)
		return
	}
	if err := o.sig.SendAnswer(from, answer); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("peer", from.String()).Msg("send answer")
	}
}

// negotiationFailed drops the remote stream of a peer whose record the
// manager discarded. The participant stays listed; a later offer reconnects it.
func (o *Orchestrator) negotiationFailed(id domain.UserID, err error) {
	if !errors.Is(err, peer.ErrNegotiation) {
		return
	}
	o.dropRemote(id)
	o.publish()
}

// removePeer forgets id everywhere. Runs on the loop.
func (o *Orchestrator) removePeer(id domain.UserID) {
	o.peers.Remove(id)
	o.dropRemote(id)
	o.session.Remove(id)
	o.publish()
}

// peerEvents adapts the orchestrator to peer.Listener.
type peerEvents Orchestrator

var _ peer.Listener = (*peerEvents)(nil)

func (e *peerEvents) OnLocalCandidate(id domain.UserID, c webrtc.ICECandidateInit) {
	o := (*Orchestrator)(e)
	o.post(func() {
		if o.session == nil || o.sig == nil {
			return
		}
		if err := o.sig.SendICECandidate(id, c); err != nil {
			log.Debug().Err(err).Str("module", "orch").Str("peer", id.String()).Msg("candidate not sent")
		}
	})
}

func (e *peerEvents) OnRemoteTrack(id domain.UserID, t core.RemoteTrack) {
	o := (*Orchestrator)(e)
	o.post(func() { o.onRemoteTrack(id, t) })
}

func (e *peerEvents) OnPeerRemoved(id domain.UserID, last peer.State) {
	o := (*Orchestrator)(e)
	o.post(func() {
		if o.session == nil {
			return
		}
		log.Warn().Str("module", "orch").Str("peer", id.String()).Str("state", last.String()).Msg("peer connection lost")
		o.dropRemote(id)
		o.session.Remove(id)
		o.publish()
	})
}
