package signalclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relayStub struct {
	srv    *httptest.Server
	frames chan protocol.Envelope
	conns  chan *websocket.Conn
	reject atomic.Bool

	mu     sync.Mutex
	tokens []string
}

func newRelayStub(t *testing.T) *relayStub {
	r := &relayStub{
		frames: make(chan protocol.Envelope, 64),
		conns:  make(chan *websocket.Conn, 8),
	}
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.reject.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		r.mu.Lock()
		r.tokens = append(r.tokens, req.Header.Get("Authorization"))
		r.mu.Unlock()

		ws, err := up.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.conns <- ws
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			env, err := protocol.Decode(data)
			if err == nil && env.Type != protocol.EventPing {
				r.frames <- env
			}
		}
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *relayStub) url() string { return "ws" + strings.TrimPrefix(r.srv.URL, "http") }

func (r *relayStub) Tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tokens...)
}

func (r *relayStub) next(t *testing.T) protocol.Envelope {
	t.Helper()
	select {
	case env := <-r.frames:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no frame from client")
	}
	return protocol.Envelope{}
}

func (r *relayStub) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-r.conns:
		return ws
	case <-time.After(2 * time.Second):
		t.Fatal("client did not connect")
	}
	return nil
}

type recordingHandler struct {
	offers  chan domain.UserID
	toggles chan domain.MediaKind
	left    chan domain.UserID

	mu     sync.Mutex
	states []State
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		offers:  make(chan domain.UserID, 8),
		toggles: make(chan domain.MediaKind, 8),
		left:    make(chan domain.UserID, 8),
	}
}

func (h *recordingHandler) OnOffer(from domain.UserID, _ webrtc.SessionDescription) { h.offers <- from }
func (h *recordingHandler) OnAnswer(domain.UserID, webrtc.SessionDescription)       {}
func (h *recordingHandler) OnICECandidate(domain.UserID, webrtc.ICECandidateInit)   {}
func (h *recordingHandler) OnParticipantJoined(domain.UserID, time.Time)            {}
func (h *recordingHandler) OnParticipantLeft(id domain.UserID)                      { h.left <- id }
func (h *recordingHandler) OnParticipantToggled(_ domain.UserID, k domain.MediaKind, _ bool) {
	h.toggles <- k
}

func (h *recordingHandler) OnStateChange(s State) {
	h.mu.Lock()
	h.states = append(h.states, s)
	h.mu.Unlock()
}

func (h *recordingHandler) sawState(s State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, got := range h.states {
		if got == s {
			return true
		}
	}
	return false
}

func testConfig(url string) Config {
	return Config{
		URL:               url,
		ReconnectAttempts: 3,
		ReconnectDelay:    10 * time.Millisecond,
		PingPeriod:        time.Minute,
		WriteTimeout:      time.Second,
	}
}

func TestConnect_SendsJoinWithBearer(t *testing.T) {
	relay := newRelayStub(t)
	h := newRecordingHandler()
	ch := New(testConfig(relay.url()), h)
	t.Cleanup(ch.Disconnect)

	require.NoError(t, ch.Connect(context.Background(), "room-1", "tok"))

	env := relay.next(t)
	require.Equal(t, protocol.EventJoinRoom, env.Type)
	var p protocol.RoomPayload
	require.NoError(t, protocol.DecodePayload(env, &p))
	assert.Equal(t, domain.RoomID("room-1"), p.RoomID)
	assert.Equal(t, []string{"Bearer tok"}, relay.Tokens())
	assert.Eventually(t, func() bool { return ch.State() == StateConnected }, time.Second, 5*time.Millisecond)
}

func TestSend_CarriesRoomAndTarget(t *testing.T) {
	relay := newRelayStub(t)
	ch := New(testConfig(relay.url()), newRecordingHandler())
	t.Cleanup(ch.Disconnect)
	require.NoError(t, ch.Connect(context.Background(), "room-1", "tok"))
	relay.next(t)

	require.Eventually(t, func() bool {
		return ch.SendOffer("bob", webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}) == nil
	}, time.Second, 5*time.Millisecond)
	env := relay.next(t)
	require.Equal(t, protocol.EventOffer, env.Type)
	var offer protocol.OfferPayload
	require.NoError(t, protocol.DecodePayload(env, &offer))
	assert.Equal(t, domain.UserID("bob"), offer.To)
	assert.Equal(t, domain.RoomID("room-1"), offer.RoomID)

	require.NoError(t, ch.SendToggle(domain.MediaVideo, false))
	env = relay.next(t)
	require.Equal(t, protocol.EventToggleVideo, env.Type)
	var tg protocol.TogglePayload
	require.NoError(t, protocol.DecodePayload(env, &tg))
	assert.False(t, tg.Enabled)
	assert.Equal(t, domain.RoomID("room-1"), tg.RoomID)
}

func TestInboundEvents_ReachHandler(t *testing.T) {
	relay := newRelayStub(t)
	h := newRecordingHandler()
	ch := New(testConfig(relay.url()), h)
	t.Cleanup(ch.Disconnect)
	require.NoError(t, ch.Connect(context.Background(), "room-1", "tok"))
	ws := relay.conn(t)

	offer, err := protocol.Encode(protocol.EventOffer, protocol.OfferPayload{
		From: "bob", To: "me",
		Offer: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"},
	})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, offer))

	toggled, err := protocol.Encode(protocol.EventVideoToggled, protocol.ToggledPayload{UserID: "bob", Enabled: true})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, toggled))

	left, err := protocol.Encode(protocol.EventParticipantLeft, protocol.ParticipantPayload{UserID: "bob"})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, left))

	assert.Equal(t, domain.UserID("bob"), <-h.offers)
	assert.Equal(t, domain.MediaVideo, <-h.toggles)
	assert.Equal(t, domain.UserID("bob"), <-h.left)
}

func TestSend_WhileDisconnectedIsDropped(t *testing.T) {
	ch := New(Config{URL: "ws://127.0.0.1:1"}, nil)
	err := ch.SendICECandidate("bob", webrtc.ICECandidateInit{Candidate: "c"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnect_DialFailure(t *testing.T) {
	relay := newRelayStub(t)
	relay.reject.Store(true)
	ch := New(testConfig(relay.url()), nil)

	err := ch.Connect(context.Background(), "room-1", "tok")
	require.ErrorIs(t, err, ErrSignalingConnection)
	assert.Equal(t, StateIdle, ch.State())
}

func TestDisconnect_SendsLeaveOnce(t *testing.T) {
	relay := newRelayStub(t)
	h := newRecordingHandler()
	ch := New(testConfig(relay.url()), h)
	require.NoError(t, ch.Connect(context.Background(), "room-1", "tok"))
	relay.next(t)

	ch.Disconnect()
	env := relay.next(t)
	assert.Equal(t, protocol.EventLeaveRoom, env.Type)
	assert.Equal(t, StateClosed, ch.State())

	assert.NotPanics(t, ch.Disconnect)
	assert.ErrorIs(t, ch.SendToggle(domain.MediaAudio, true), ErrNotConnected)
	assert.ErrorIs(t, ch.Connect(context.Background(), "room-1", "tok"), ErrAlreadyConnected)
}

func TestReconnect_ReplaysTokenAndJoin(t *testing.T) {
	relay := newRelayStub(t)
	h := newRecordingHandler()
	ch := New(testConfig(relay.url()), h)
	t.Cleanup(ch.Disconnect)
	require.NoError(t, ch.Connect(context.Background(), "room-1", "tok"))

	first := relay.conn(t)
	assert.Equal(t, protocol.EventJoinRoom, relay.next(t).Type)
	require.NoError(t, first.Close())

	relay.conn(t)
	assert.Equal(t, protocol.EventJoinRoom, relay.next(t).Type)
	assert.Equal(t, []string{"Bearer tok", "Bearer tok"}, relay.Tokens())
	assert.True(t, h.sawState(StateReconnecting))
	assert.Eventually(t, func() bool { return ch.State() == StateConnected }, time.Second, 5*time.Millisecond)
	assert.NoError(t, ch.Err())
}

func TestReconnect_GivesUp(t *testing.T) {
	relay := newRelayStub(t)
	h := newRecordingHandler()
	ch := New(testConfig(relay.url()), h)
	t.Cleanup(ch.Disconnect)
	require.NoError(t, ch.Connect(context.Background(), "room-1", "tok"))

	ws := relay.conn(t)
	relay.reject.Store(true)
	require.NoError(t, ws.Close())

	require.Eventually(t, func() bool { return ch.State() == StateFailed }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, ch.Err(), ErrSignalingFailed)
	assert.True(t, h.sawState(StateFailed))
	assert.ErrorIs(t, ch.SendToggle(domain.MediaAudio, true), ErrNotConnected)
}

func TestSignalURL(t *testing.T) {
	cases := map[string]string{
		"http://relay:8080":      "ws://relay:8080/api/ws/signal",
		"https://relay.example/": "wss://relay.example/api/ws/signal",
		"ws://relay/prefix":      "ws://relay/prefix/api/ws/signal",
	}
	for in, want := range cases {
		got, err := SignalURL(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := SignalURL("ftp://relay")
	assert.Error(t, err)
}
