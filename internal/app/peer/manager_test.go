package peer

import (
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOffer = webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
var testAnswer = webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}

func cand(s string) webrtc.ICECandidateInit { return webrtc.ICECandidateInit{Candidate: s} }

func TestGetOrCreate_ReturnsSameRecord(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f, nil)

	a1, err := m.GetOrCreate("alice")
	require.NoError(t, err)
	a2, err := m.GetOrCreate("alice")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.Equal(t, 1, f.opened("alice"))
	assert.Equal(t, 1, m.Len())
	st, ok := m.State("alice")
	require.True(t, ok)
	assert.Equal(t, StateNew, st)
}

func TestGetOrCreate_AttachesLocalTracks(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f, nil)

	audio, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "s")
	require.NoError(t, err)
	video, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "s")
	require.NoError(t, err)
	m.SetLocalTracks([]webrtc.TrackLocal{audio, video})

	_, err = m.CreateOffer("bob")
	require.NoError(t, err)
	assert.Len(t, f.last("bob").tracks, 2)
}

func TestGetOrCreate_FactoryError(t *testing.T) {
	f := newFakeFactory()
	f.fail = true
	m := NewManager(f, nil)

	_, err := m.CreateOffer("bob")
	require.ErrorIs(t, err, ErrNegotiation)
	assert.Zero(t, m.Len())
}

func TestCreateOffer_MovesToHaveDescription(t *testing.T) {
	m := NewManager(newFakeFactory(), nil)

	offer, err := m.CreateOffer("bob")
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	assert.True(t, m.Offering("bob"))

	st, _ := m.State("bob")
	assert.Equal(t, StateHaveDescription, st)

	require.NoError(t, m.HandleAnswer("bob", testAnswer))
	st, _ = m.State("bob")
	assert.Equal(t, StateStable, st)
	assert.False(t, m.Offering("bob"))
}

func TestCandidates_BufferedUntilRemoteDescription(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f, nil)

	_, err := m.CreateOffer("bob")
	require.NoError(t, err)

	m.HandleICECandidate("bob", cand("c1"))
	m.HandleICECandidate("bob", cand("c2"))
	assert.Equal(t, 2, m.Pending("bob"))
	assert.Empty(t, f.last("bob").Applied())

	require.NoError(t, m.HandleAnswer("bob", testAnswer))
	assert.Equal(t, []string{"c1", "c2"}, f.last("bob").Applied())
	assert.Zero(t, m.Pending("bob"))

	m.HandleICECandidate("bob", cand("c3"))
	assert.Equal(t, []string{"c1", "c2", "c3"}, f.last("bob").Applied())
}

func TestCandidateBeforeRecord_FlushedByOffer(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f, nil)

	m.HandleICECandidate("alice", cand("early-1"))
	m.HandleICECandidate("alice", cand("early-2"))
	assert.Zero(t, m.Len())
	assert.Zero(t, f.opened("alice"))
	assert.Equal(t, 2, m.Pending("alice"))

	answer, err := m.HandleOffer("alice", testOffer)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)

	assert.Equal(t, []string{"early-1", "early-2"}, f.last("alice").Applied())
	assert.Zero(t, m.Pending("alice"))
	st, _ := m.State("alice")
	assert.Equal(t, StateStable, st)
}

func TestCandidateApplyFailure_IsNotFatal(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f, nil)

	m.HandleICECandidate("alice", cand("bad"))
	m.HandleICECandidate("alice", cand("good"))
	_, err := m.GetOrCreate("alice")
	require.NoError(t, err)
	f.last("alice").rejectCand["bad"] = true

	_, err = m.HandleOffer("alice", testOffer)
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, f.last("alice").Applied())

	m.HandleICECandidate("alice", cand("bad"))
	m.HandleICECandidate("alice", cand("later"))
	assert.Equal(t, []string{"good", "later"}, f.last("alice").Applied())
}

func TestHandleAnswer_WithoutRecord(t *testing.T) {
	m := NewManager(newFakeFactory(), nil)
	err := m.HandleAnswer("ghost", testAnswer)
	require.ErrorIs(t, err, ErrNoRecord)
	assert.Zero(t, m.Len())
}

func TestHandleOffer_RemoteFailure(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f, nil)
	_, err := m.GetOrCreate("alice")
	require.NoError(t, err)
	f.last("alice").failRemote = true

	_, err = m.HandleOffer("alice", testOffer)
	require.ErrorIs(t, err, ErrNegotiation)
}

func TestNegotiationFailure_DropsOnlyThatRecord(t *testing.T) {
	f := newFakeFactory()
	l := newRecordingListener()
	m := NewManager(f, l)
	_, err := m.GetOrCreate("alice")
	require.NoError(t, err)
	_, err = m.CreateOffer("bob")
	require.NoError(t, err)
	broken := f.last("alice")
	broken.failRemote = true
	m.HandleICECandidate("alice", cand("c1"))

	_, err = m.HandleOffer("alice", testOffer)
	require.ErrorIs(t, err, ErrNegotiation)

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []domain.UserID{"bob"}, m.Peers())
	assert.Equal(t, 1, broken.Closed())
	assert.Zero(t, m.Pending("alice"))
	assert.Empty(t, l.Removed())
	assert.Zero(t, f.last("bob").Closed())

	// a later offer opens a fresh connection
	_, err = m.HandleOffer("alice", testOffer)
	require.NoError(t, err)
	assert.Equal(t, 2, f.opened("alice"))
	assert.NotSame(t, broken, f.last("alice"))
}

func TestAnswerFailure_DropsRecord(t *testing.T) {
	f := newFakeFactory()
	m := NewManager(f, nil)
	_, err := m.CreateOffer("alice")
	require.NoError(t, err)
	f.last("alice").failRemote = true

	err = m.HandleAnswer("alice", webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"})
	require.ErrorIs(t, err, ErrNegotiation)
	assert.Zero(t, m.Len())
	assert.False(t, m.Offering("alice"))
	assert.Equal(t, 1, f.last("alice").Closed())
}

func TestCloseAll_Idempotent(t *testing.T) {
	f := newFakeFactory()
	l := newRecordingListener()
	m := NewManager(f, l)

	for _, p := range []domain.UserID{"a", "b", "c"} {
		_, err := m.CreateOffer(p)
		require.NoError(t, err)
	}
	m.HandleICECandidate("d", cand("orphan"))

	m.CloseAll()
	assert.Zero(t, m.Len())
	assert.Zero(t, m.Pending("d"))
	for _, p := range []domain.UserID{"a", "b", "c"} {
		assert.Equal(t, 1, f.last(p).Closed())
	}

	assert.NotPanics(t, m.CloseAll)
	for _, p := range []domain.UserID{"a", "b", "c"} {
		assert.Equal(t, 1, f.last(p).Closed())
	}
	assert.Empty(t, l.Removed())
}

func TestFailedPeer_RemovedAlone(t *testing.T) {
	f := newFakeFactory()
	l := newRecordingListener()
	m := NewManager(f, l)

	for _, p := range []domain.UserID{"a", "b", "c"} {
		_, err := m.CreateOffer(p)
		require.NoError(t, err)
		require.NoError(t, m.HandleAnswer(p, testAnswer))
		f.last(p).emitState(webrtc.PeerConnectionStateConnected)
	}

	f.last("b").emitState(webrtc.PeerConnectionStateFailed)

	assert.Equal(t, []domain.UserID{"a", "c"}, m.Peers())
	assert.Equal(t, []removal{{peer: "b", last: StateFailed}}, l.Removed())
	assert.Eventually(t, func() bool { return f.last("b").Closed() == 1 }, time.Second, 5*time.Millisecond)

	st, ok := m.State("a")
	require.True(t, ok)
	assert.Equal(t, StateConnected, st)
	assert.Zero(t, f.last("a").Closed())

	// the stale record keeps quiet once it is gone
	f.last("b").emitState(webrtc.PeerConnectionStateFailed)
	assert.Len(t, l.Removed(), 1)
}

func TestLocalCandidates_FromStaleRecordIgnored(t *testing.T) {
	f := newFakeFactory()
	l := newRecordingListener()
	m := NewManager(f, l)

	_, err := m.CreateOffer("a")
	require.NoError(t, err)
	old := f.last("a")
	old.emitCandidate("c1")

	require.True(t, m.Remove("a"))
	old.emitCandidate("c2")
	assert.Equal(t, []string{"c1"}, l.candidates["a"])
	assert.Empty(t, l.Removed())
	assert.Equal(t, 1, old.Closed())

	assert.False(t, m.Remove("a"))
}
