package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Huddle/internal/adapters/callsvc"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/media"
	"github.com/rs/zerolog/log"
)

// StartCall acquires media, creates a room and connects signaling.
func (o *Orchestrator) StartCall(ctx context.Context, kind domain.CallKind) (domain.RoomID, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return "", ErrAlreadyInCall
	}
	g := o.gen.Load()

	stream, err := o.acquire(ctx, kind)
	if err != nil {
		o.busy.Store(false)
		return "", err
	}

	room, err := o.calls.CreateRoom(ctx, kind)
	if err != nil {
		stream.Stop()
		o.busy.Store(false)
		return "", err
	}
	room.Kind = kind

	if err := o.establish(ctx, g, room, stream); err != nil {
		return "", err
	}
	log.Info().Str("module", "orch").Str("room", room.ID.String()).Str("kind", string(kind)).Msg("call started")
	return room.ID, nil
}

// JoinCall joins an existing room and offers to everyone already in it.
func (o *Orchestrator) JoinCall(ctx context.Context, roomID domain.RoomID, withVideo bool) error {
	if !o.busy.CompareAndSwap(false, true) {
		return ErrAlreadyInCall
	}
	g := o.gen.Load()

	kind := domain.CallAudio
	if withVideo {
		kind = domain.CallVideo
	}
	stream, err := o.acquire(ctx, kind)
	if err != nil {
		o.busy.Store(false)
		return err
	}

	room, err := o.calls.JoinRoom(ctx, roomID)
	if err != nil {
		stream.Stop()
		o.busy.Store(false)
		return err
	}
	room.Kind = kind

	if err := o.establish(ctx, g, room, stream); err != nil {
		return err
	}

	err = o.do(ctx, func() error {
		if o.gen.Load() != g || o.session == nil {
			return ErrCancelled
		}
		for _, id := range o.session.Remotes() {
			o.offer(id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("room", roomID.String()).Bool("video", withVideo).Msg("call joined")
	return nil
}

func (o *Orchestrator) acquire(ctx context.Context, kind domain.CallKind) (*media.LocalStream, error) {
	stream, err := o.devices.Acquire(ctx, kind)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("kind", string(kind)).Msg("media acquisition")
		return nil, fmt.Errorf("%w: %w", ErrMediaAcquisition, err)
	}
	return stream, nil
}

// establish installs the session on the loop and connects signaling.
// On failure everything acquired so far is released.
func (o *Orchestrator) establish(ctx context.Context, g uint64, room callsvc.Room, stream *media.LocalStream) error {
	var sig Signaling
	err := o.do(ctx, func() error {
		if o.gen.Load() != g {
			return ErrCancelled
		}
		s := domain.NewCallSession(room.ID, room.Kind, o.self, stream.State())
		for _, p := range room.Participants {
			if p.UserID == o.self {
				continue
			}
			s.Participants[p.UserID] = p
		}
		o.session = s
		o.local = stream
		o.peers.SetLocalTracks(stream.Tracks())
		o.sig = o.dial(&inbound{o: o, gen: g})
		o.sigState = 0
		sig = o.sig
		o.publish()
		return nil
	})
	if err != nil {
		stream.Stop()
		o.leaveRoom(context.WithoutCancel(ctx), room.ID)
		o.busy.Store(false)
		return err
	}

	if err := sig.Connect(ctx, room.ID, o.token); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("room", room.ID.String()).Msg("signaling connect")
		return o.abandon(context.WithoutCancel(ctx), g, sig, room.ID, err)
	}
	return nil
}

// abandon releases a call whose signaling never came up. If the call was
// already left, possibly followed by a new one, nothing is released twice.
func (o *Orchestrator) abandon(ctx context.Context, g uint64, sig Signaling, room domain.RoomID, cause error) error {
	stale := false
	err := o.do(ctx, func() error {
		if o.gen.Load() != g || o.sig != sig {
			stale = true
			return nil
		}
		o.gen.Add(1)
		o.teardown()
		return nil
	})
	sig.Disconnect()
	if stale {
		return fmt.Errorf("%w: %w", ErrCancelled, cause)
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Msg("cleanup after connect failure")
	}
	o.leaveRoom(ctx, room)
	o.busy.Store(false)
	return cause
}

// offer opens a connection to id and sends our offer. Runs on the loop.
func (o *Orchestrator) offer(id domain.UserID) {
	sdp, err := o.peers.CreateOffer(id)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("peer", id.String()).Msg("create offer")
		o.negotiationFailed(id, err)
		return
	}
	if err := o.sig.SendOffer(id, sdp); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("peer", id.String()).Msg("send offer")
	}
}

// LeaveCall tears the call down. Pending StartCall/JoinCall continuations are cancelled.
func (o *Orchestrator) LeaveCall(ctx context.Context) error {
	return o.leave(ctx)
}

func (o *Orchestrator) leave(ctx context.Context) error {
	o.gen.Add(1)

	var room domain.RoomID
	err := o.do(ctx, func() error {
		if o.session == nil {
			return ErrNoSession
		}
		room = o.session.RoomID
		return nil
	})
	if errors.Is(err, ErrNoSession) && o.busy.Load() {
		// a start or join is still in flight; the generation bump makes it back off
		return nil
	}
	if err != nil {
		return err
	}

	o.leaveRoom(ctx, room)

	var sig Signaling
	err = o.do(ctx, func() error {
		sig = o.teardown()
		return nil
	})
	if sig != nil {
		sig.Disconnect()
	}
	o.busy.Store(false)
	log.Info().Str("module", "orch").Str("room", room.String()).Msg("call left")
	return err
}

func (o *Orchestrator) leaveRoom(ctx context.Context, room domain.RoomID) {
	if err := o.calls.LeaveRoom(ctx, room); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", room.String()).Msg("leave room")
	}
}

// teardown releases everything the call holds and returns the signaling
// channel for the caller to disconnect off the loop.
func (o *Orchestrator) teardown() Signaling {
	if o.local != nil {
		o.local.Stop()
		o.local = nil
	}
	o.peers.CloseAll()
	for id, rs := range o.remotes {
		rs.Stop()
		delete(o.remotes, id)
	}
	sig := o.sig
	o.sig = nil
	o.session = nil
	o.sigState = 0
	o.publish()
	return sig
}
