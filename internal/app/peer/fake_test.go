package peer

import (
	"errors"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
)

type fakeConn struct {
	peer domain.UserID

	mu         sync.Mutex
	tracks     []webrtc.TrackLocal
	remote     *webrtc.SessionDescription
	applied    []string
	closed     int
	rejectCand map[string]bool
	failRemote bool

	onICE   func(webrtc.ICECandidateInit)
	onTrack func(core.RemoteTrack)
	onState func(webrtc.PeerConnectionState)
}

var _ core.MediaConnection = (*fakeConn)(nil)

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed++
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(webrtc.PeerConnectionStateClosed)
	}
	return nil
}

func (c *fakeConn) AddLocalTrack(t webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = append(c.tracks, t)
	return nil
}

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-from-" + string(c.peer)}, nil
}

func (c *fakeConn) CreateAnswer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		return webrtc.SessionDescription{}, errors.New("no remote description")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

func (c *fakeConn) SetRemoteDescription(d webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failRemote {
		return errors.New("bad sdp")
	}
	c.remote = &d
	return nil
}

func (c *fakeConn) AddICECandidate(ci webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		return errors.New("remote description not set")
	}
	if c.rejectCand[ci.Candidate] {
		return errors.New("malformed candidate")
	}
	c.applied = append(c.applied, ci.Candidate)
	return nil
}

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

func (c *fakeConn) emitState(s webrtc.PeerConnectionState) {
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	fn(s)
}

func (c *fakeConn) emitCandidate(s string) {
	c.mu.Lock()
	fn := c.onICE
	c.mu.Unlock()
	fn(webrtc.ICECandidateInit{Candidate: s})
}

func (c *fakeConn) Applied() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.applied...)
}

func (c *fakeConn) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeFactory struct {
	mu    sync.Mutex
	conns map[domain.UserID][]*fakeConn
	fail  bool
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{conns: make(map[domain.UserID][]*fakeConn)}
}

func (f *fakeFactory) NewConnection(peer domain.UserID) (core.MediaConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("no ice agent")
	}
	c := &fakeConn{peer: peer, rejectCand: map[string]bool{}}
	f.conns[peer] = append(f.conns[peer], c)
	return c, nil
}

func (f *fakeFactory) last(peer domain.UserID) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs := f.conns[peer]
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

func (f *fakeFactory) opened(peer domain.UserID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns[peer])
}

type removal struct {
	peer domain.UserID
	last State
}

type recordingListener struct {
	mu         sync.Mutex
	candidates map[domain.UserID][]string
	removed    []removal
}

func newRecordingListener() *recordingListener {
	return &recordingListener{candidates: make(map[domain.UserID][]string)}
}

func (l *recordingListener) OnLocalCandidate(peer domain.UserID, c webrtc.ICECandidateInit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.candidates[peer] = append(l.candidates[peer], c.Candidate)
}

func (l *recordingListener) OnRemoteTrack(domain.UserID, core.RemoteTrack) {}

func (l *recordingListener) OnPeerRemoved(peer domain.UserID, last State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removed = append(l.removed, removal{peer, last})
}

func (l *recordingListener) Removed() []removal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]removal(nil), l.removed...)
}
