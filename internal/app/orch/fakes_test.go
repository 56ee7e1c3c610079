package orch

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/adapters/callsvc"
	"github.com/dkeye/Huddle/internal/adapters/signalclient"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/media"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type fakeCalls struct {
	mu      sync.Mutex
	roster  []domain.UserID
	joinErr error
	created int
	left    []domain.RoomID
}

func (f *fakeCalls) CreateRoom(_ context.Context, kind domain.CallKind) (callsvc.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return callsvc.Room{ID: "room-1", Kind: kind}, nil
}

func (f *fakeCalls) JoinRoom(_ context.Context, id domain.RoomID) (callsvc.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return callsvc.Room{}, f.joinErr
	}
	r := callsvc.Room{ID: id}
	for _, uid := range f.roster {
		r.Participants = append(r.Participants, domain.NewParticipant(uid, time.Time{}))
	}
	return r, nil
}

func (f *fakeCalls) LeaveRoom(_ context.Context, id domain.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, id)
	return nil
}

func (f *fakeCalls) Left() []domain.RoomID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RoomID(nil), f.left...)
}

type sent struct {
	kind string
	to   domain.UserID
}

type fakeSignaling struct {
	h signalclient.Handler

	// gate, when set, holds Connect until closed
	gate chan struct{}

	mu          sync.Mutex
	connectErr  error
	room        domain.RoomID
	token       string
	sent        []sent
	toggles     []bool
	disconnects int
}

func (s *fakeSignaling) Connect(_ context.Context, room domain.RoomID, token string) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	s.room, s.token = room, token
	return nil
}

func (s *fakeSignaling) record(kind string, to domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{kind, to})
	return nil
}

func (s *fakeSignaling) SendOffer(to domain.UserID, _ webrtc.SessionDescription) error {
	return s.record("offer", to)
}

func (s *fakeSignaling) SendAnswer(to domain.UserID, _ webrtc.SessionDescription) error {
	return s.record("answer", to)
}

func (s *fakeSignaling) SendICECandidate(to domain.UserID, _ webrtc.ICECandidateInit) error {
	return s.record("candidate", to)
}

func (s *fakeSignaling) SendToggle(_ domain.MediaKind, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggles = append(s.toggles, enabled)
	return nil
}

func (s *fakeSignaling) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
}

func (s *fakeSignaling) Sent(kind string) []domain.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UserID
	for _, m := range s.sent {
		if m.kind == kind {
			out = append(out, m.to)
		}
	}
	return out
}

func (s *fakeSignaling) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

type fakeConn struct {
	peer domain.UserID

	mu         sync.Mutex
	closed     int
	remote     bool
	failRemote bool
	onICE      func(webrtc.ICECandidateInit)
	onTrack    func(core.RemoteTrack)
	onState    func(webrtc.PeerConnectionState)
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) AddLocalTrack(webrtc.TrackLocal) error { return nil }

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}, nil
}

func (c *fakeConn) CreateAnswer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.remote {
		return webrtc.SessionDescription{}, errors.New("no remote description")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}, nil
}

func (c *fakeConn) SetRemoteDescription(webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failRemote {
		return errors.New("bad sdp")
	}
	c.remote = true
	return nil
}

func (c *fakeConn) rejectRemote() {
	c.mu.Lock()
	c.failRemote = true
	c.mu.Unlock()
}

func (c *fakeConn) AddICECandidate(webrtc.ICECandidateInit) error { return nil }

func (c *fakeConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

func (c *fakeConn) OnTrack(fn func(core.RemoteTrack)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

func (c *fakeConn) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

func (c *fakeConn) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) emitState(s webrtc.PeerConnectionState) {
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	fn(s)
}

func (c *fakeConn) emitTrack(t core.RemoteTrack) {
	c.mu.Lock()
	fn := c.onTrack
	c.mu.Unlock()
	fn(t)
}

func (c *fakeConn) emitCandidate(s string) {
	c.mu.Lock()
	fn := c.onICE
	c.mu.Unlock()
	fn(webrtc.ICECandidateInit{Candidate: s})
}

type fakeConns struct {
	mu    sync.Mutex
	conns map[domain.UserID][]*fakeConn
}

func (f *fakeConns) NewConnection(peer domain.UserID) (core.MediaConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conns == nil {
		f.conns = make(map[domain.UserID][]*fakeConn)
	}
	c := &fakeConn{peer: peer}
	f.conns[peer] = append(f.conns[peer], c)
	return c, nil
}

func (f *fakeConns) last(peer domain.UserID) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs := f.conns[peer]
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

// capturingDevices remembers every stream it hands out.
type capturingDevices struct {
	inner media.Devices

	mu      sync.Mutex
	streams []*media.LocalStream
}

func (d *capturingDevices) Acquire(ctx context.Context, kind domain.CallKind) (*media.LocalStream, error) {
	s, err := d.inner.Acquire(ctx, kind)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *capturingDevices) last() *media.LocalStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// blockingTrack is a remote track that yields nothing until closed.
type blockingTrack struct {
	id   string
	done chan struct{}
	once sync.Once
}

func newBlockingTrack(id string) *blockingTrack {
	return &blockingTrack{id: id, done: make(chan struct{})}
}

func (t *blockingTrack) ID() string                { return t.id }
func (t *blockingTrack) StreamID() string          { return "stream-" + t.id }
func (t *blockingTrack) Kind() webrtc.RTPCodecType { return webrtc.RTPCodecTypeAudio }
func (t *blockingTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	<-t.done
	return nil, nil, io.EOF
}

func (t *blockingTrack) Close() { t.once.Do(func() { close(t.done) }) }
