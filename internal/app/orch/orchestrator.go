// Package orch coordinates one huddle call: local media, the call service,
// the per-peer connections and the signaling channel.
package orch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Huddle/internal/adapters/callsvc"
	"github.com/dkeye/Huddle/internal/adapters/signalclient"
	"github.com/dkeye/Huddle/internal/app/peer"
	"github.com/dkeye/Huddle/internal/app/store"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/media"
	"github.com/pion/webrtc/v4"
)

// Signaling is the part of signalclient.Channel the orchestrator drives.
type Signaling interface {
	Connect(ctx context.Context, room domain.RoomID, token string) error
	SendOffer(to domain.UserID, offer webrtc.SessionDescription) error
	SendAnswer(to domain.UserID, answer webrtc.SessionDescription) error
	SendICECandidate(to domain.UserID, c webrtc.ICECandidateInit) error
	SendToggle(kind domain.MediaKind, enabled bool) error
	Disconnect()
}

// Dialer builds a fresh signaling channel for one call.
type Dialer func(h signalclient.Handler) Signaling

// ChannelDialer returns a Dialer backed by signalclient.
func ChannelDialer(cfg signalclient.Config) Dialer {
	return func(h signalclient.Handler) Signaling { return signalclient.New(cfg, h) }
}

type Deps struct {
	Self    domain.UserID
	Token   string
	Devices media.Devices
	Calls   callsvc.Service
	Dial    Dialer
	Conns   core.MediaConnectionFactory
	Store   *store.Store
	// Sink receives remote RTP packets. Optional.
	Sink media.PacketSink
}

type Orchestrator struct {
	self    domain.UserID
	token   string
	devices media.Devices
	calls   callsvc.Service
	dial    Dialer
	store   *store.Store
	sink    media.PacketSink
	peers   *peer.Manager

	ops      chan func()
	stopped  chan struct{}
	stopOnce sync.Once

	// gen is bumped by LeaveCall; continuations started under an older value give up.
	gen  atomic.Uint64
	busy atomic.Bool

	// owned by the Run loop
	session  *domain.CallSession
	local    *media.LocalStream
	sig      Signaling
	sigState signalclient.State
	remotes  map[domain.UserID]*media.RemoteStream
}

func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		self:    d.Self,
		token:   d.Token,
		devices: d.Devices,
		calls:   d.Calls,
		dial:    d.Dial,
		store:   d.Store,
		sink:    d.Sink,
		ops:     make(chan func(), 256),
		stopped: make(chan struct{}),
		remotes: make(map[domain.UserID]*media.RemoteStream),
	}
	if o.store == nil {
		o.store = store.New()
	}
	o.peers = peer.NewManager(d.Conns, (*peerEvents)(o))
	return o
}

func (o *Orchestrator) Self() domain.UserID { return o.self }

func (o *Orchestrator) Store() *store.Store { return o.store }

// Peers exposes the connection registry, mostly for inspection.
func (o *Orchestrator) Peers() *peer.Manager { return o.peers }

// Run executes state changes one at a time until ctx is done.
// Every other method needs Run to be active.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.stopOnce.Do(func() { close(o.stopped) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-o.ops:
			fn()
		}
	}
}

// do runs fn on the loop and waits for its result.
func (o *Orchestrator) do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	select {
	case o.ops <- func() { done <- fn() }:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	case <-o.stopped:
		return ErrStopped
	}
	select {
	case err := <-done:
		return err
	case <-o.stopped:
		return ErrStopped
	}
}

// post queues fn without waiting. Used by callbacks from other goroutines.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.ops <- fn:
	case <-o.stopped:
	}
}

func (o *Orchestrator) publish() {
	snap := store.Snapshot{
		Session:   o.session.Clone(),
		Streams:   o.streamStats(),
		Signaling: o.sigState.String(),
	}
	o.store.Publish(snap)
}

// Session returns a copy of the current call state, nil when idle.
func (o *Orchestrator) Session(ctx context.Context) (*domain.CallSession, error) {
	var out *domain.CallSession
	err := o.do(ctx, func() error {
		out = o.session.Clone()
		return nil
	})
	return out, err
}
