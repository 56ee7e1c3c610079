// Package peer keeps one media connection per remote participant and drives
// its offer/answer and ICE candidate exchange.
package peer

import (
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Listener receives events from live records. Calls may come from any goroutine.
type Listener interface {
	OnLocalCandidate(peer domain.UserID, c webrtc.ICECandidateInit)
	OnRemoteTrack(peer domain.UserID, t core.RemoteTrack)
	// OnPeerRemoved fires once when a record is dropped because its connection went away.
	OnPeerRemoved(peer domain.UserID, last State)
}

type record struct {
	peer domain.UserID
	conn core.MediaConnection

	// mu serializes negotiation on conn and guards the fields below.
	mu        sync.Mutex
	hasRemote bool
	pending   []webrtc.ICECandidateInit
	offering  bool

	// state is guarded by Manager.mu.
	state State
}

type Manager struct {
	factory  core.MediaConnectionFactory
	listener Listener

	mu      sync.Mutex
	tracks  []webrtc.TrackLocal
	records map[domain.UserID]*record
	orphans map[domain.UserID][]webrtc.ICECandidateInit
}

func NewManager(factory core.MediaConnectionFactory, listener Listener) *Manager {
	return &Manager{
		factory:  factory,
		listener: listener,
		records:  make(map[domain.UserID]*record),
		orphans:  make(map[domain.UserID][]webrtc.ICECandidateInit),
	}
}

// SetLocalTracks sets the tracks attached to every record created afterwards.
func (m *Manager) SetLocalTracks(tracks []webrtc.TrackLocal) {
	m.mu.Lock()
	m.tracks = slices.Clone(tracks)
	m.mu.Unlock()
}

func (m *Manager) lookup(peer domain.UserID) (*record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[peer]
	return rec, ok
}

func (m *Manager) current(rec *record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[rec.peer] == rec
}

// GetOrCreate returns the connection for peer, opening one with every local track attached.
func (m *Manager) GetOrCreate(peer domain.UserID) (core.MediaConnection, error) {
	rec, err := m.getOrCreate(peer)
	if err != nil {
		return nil, err
	}
	return rec.conn, nil
}

func (m *Manager) getOrCreate(peer domain.UserID) (*record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[peer]; ok {
		return rec, nil
	}

	conn, err := m.factory.NewConnection(peer)
	if err != nil {
		return nil, fmt.Errorf("%w: open connection to %s: %v", ErrNegotiation, peer, err)
	}
	for _, t := range m.tracks {
		if err := conn.AddLocalTrack(t); err != nil {
			go conn.Close()
			return nil, fmt.Errorf("%w: attach %s track for %s: %v", ErrNegotiation, t.Kind(), peer, err)
		}
	}

	rec := &record{peer: peer, conn: conn, state: StateNew}
	if buf := m.orphans[peer]; len(buf) > 0 {
		rec.pending = buf
		delete(m.orphans, peer)
	}
	m.bind(rec)
	m.records[peer] = rec

	log.Debug().Str("module", "peer").Str("peer", string(peer)).Int("tracks", len(m.tracks)).Msg("record created")
	return rec, nil
}

func (m *Manager) bind(rec *record) {
	rec.conn.OnICECandidate(func(c webrtc.ICECandidateInit) {
		if !m.current(rec) || m.listener == nil {
			return
		}
		m.listener.OnLocalCandidate(rec.peer, c)
	})
	rec.conn.OnTrack(func(t core.RemoteTrack) {
		if !m.current(rec) || m.listener == nil {
			return
		}
		m.listener.OnRemoteTrack(rec.peer, t)
	})
	rec.conn.OnStateChange(func(s webrtc.PeerConnectionState) {
		m.onStateChange(rec, s)
	})
}

func (m *Manager) onStateChange(rec *record, s webrtc.PeerConnectionState) {
	next, ok := fromConnectionState(s)
	if !ok {
		return
	}
	m.mu.Lock()
	if m.records[rec.peer] != rec {
		m.mu.Unlock()
		return
	}
	rec.state = next
	drop := next.terminal()
	if drop {
		delete(m.records, rec.peer)
	}
	m.mu.Unlock()

	if !drop {
		log.Info().Str("module", "peer").Str("peer", string(rec.peer)).Str("state", next.String()).Msg("peer state")
		return
	}
	log.Warn().Str("module", "peer").Str("peer", string(rec.peer)).Str("state", next.String()).Msg("peer dropped")
	go closeConn(rec)
	if m.listener != nil {
		m.listener.OnPeerRemoved(rec.peer, next)
	}
}

func (m *Manager) setState(rec *record, s State) {
	m.mu.Lock()
	if m.records[rec.peer] == rec {
		rec.state = s
	}
	m.mu.Unlock()
}

// CreateOffer opens or reuses the record for peer and returns an offer set as local description.
func (m *Manager) CreateOffer(peer domain.UserID) (webrtc.SessionDescription, error) {
	rec, err := m.getOrCreate(peer)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	offer, err := rec.conn.CreateOffer()
	if err != nil {
		return webrtc.SessionDescription{}, m.fail(rec, fmt.Errorf("%w: offer to %s: %v", ErrNegotiation, peer, err))
	}
	rec.offering = true
	m.setState(rec, StateHaveDescription)
	return offer, nil
}

// HandleOffer applies a remote offer, flushes buffered candidates and returns the answer.
func (m *Manager) HandleOffer(peer domain.UserID, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	rec, err := m.getOrCreate(peer)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if err := rec.conn.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, m.fail(rec, fmt.Errorf("%w: remote offer from %s: %v", ErrNegotiation, peer, err))
	}
	rec.hasRemote = true
	m.setState(rec, StateHaveDescription)
	m.flush(rec)

	answer, err := rec.conn.CreateAnswer()
	if err != nil {
		return webrtc.SessionDescription{}, m.fail(rec, fmt.Errorf("%w: answer to %s: %v", ErrNegotiation, peer, err))
	}
	rec.offering = false
	m.setState(rec, StateStable)
	return answer, nil
}

// HandleAnswer completes an offer we sent. Without a record it returns ErrNoRecord.
func (m *Manager) HandleAnswer(peer domain.UserID, answer webrtc.SessionDescription) error {
	rec, ok := m.lookup(peer)
	if !ok {
		return fmt.Errorf("%w: answer from %s", ErrNoRecord, peer)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if err := rec.conn.SetRemoteDescription(answer); err != nil {
		return m.fail(rec, fmt.Errorf("%w: remote answer from %s: %v", ErrNegotiation, peer, err))
	}
	rec.hasRemote = true
	rec.offering = false
	m.flush(rec)
	m.setState(rec, StateStable)
	return nil
}

// HandleICECandidate applies c or buffers it until the remote description is set.
// Apply failures are logged and not returned.
func (m *Manager) HandleICECandidate(peer domain.UserID, c webrtc.ICECandidateInit) {
	m.mu.Lock()
	rec, ok := m.records[peer]
	if !ok {
		m.orphans[peer] = append(m.orphans[peer], c)
		m.mu.Unlock()
		log.Debug().Str("module", "peer").Str("peer", string(peer)).Msg("candidate buffered without record")
		return
	}
	m.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.hasRemote {
		rec.pending = append(rec.pending, c)
		return
	}
	if err := rec.conn.AddICECandidate(c); err != nil {
		log.Warn().Err(err).Str("module", "peer").Str("peer", string(peer)).Msg("add candidate failed")
	}
}

// flush applies pending candidates in arrival order. Caller holds rec.mu.
func (m *Manager) flush(rec *record) {
	for _, c := range rec.pending {
		if err := rec.conn.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Str("module", "peer").Str("peer", string(rec.peer)).Msg("add buffered candidate failed")
		}
	}
	rec.pending = nil
}

// fail drops a record whose negotiation broke, closes its connection and
// returns err. The listener is not notified. Caller holds rec.mu.
func (m *Manager) fail(rec *record, err error) error {
	m.mu.Lock()
	if m.records[rec.peer] == rec {
		delete(m.records, rec.peer)
	}
	m.mu.Unlock()
	rec.pending = nil
	rec.offering = false
	log.Warn().Err(err).Str("module", "peer").Str("peer", string(rec.peer)).Msg("negotiation failed, record dropped")
	closeConn(rec)
	return err
}

// Remove closes and forgets the record for peer without notifying the listener.
func (m *Manager) Remove(peer domain.UserID) bool {
	m.mu.Lock()
	rec, ok := m.records[peer]
	delete(m.records, peer)
	delete(m.orphans, peer)
	m.mu.Unlock()
	if !ok {
		return false
	}
	closeConn(rec)
	return true
}

// CloseAll closes every connection and drops all buffers. Safe to call repeatedly.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	recs := make([]*record, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, rec)
	}
	m.records = make(map[domain.UserID]*record)
	m.orphans = make(map[domain.UserID][]webrtc.ICECandidateInit)
	m.tracks = nil
	m.mu.Unlock()

	for _, rec := range recs {
		closeConn(rec)
	}
	if len(recs) > 0 {
		log.Info().Str("module", "peer").Int("closed", len(recs)).Msg("all peers closed")
	}
}

func closeConn(rec *record) {
	if err := rec.conn.Close(); err != nil {
		log.Warn().Err(err).Str("module", "peer").Str("peer", string(rec.peer)).Msg("close failed")
	}
}

func (m *Manager) State(peer domain.UserID) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[peer]
	if !ok {
		return 0, false
	}
	return rec.state, true
}

// Offering reports whether we sent an offer to peer that is still unanswered.
func (m *Manager) Offering(peer domain.UserID) bool {
	rec, ok := m.lookup(peer)
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.offering
}

// Pending returns the number of candidates buffered for peer, with or without a record.
func (m *Manager) Pending(peer domain.UserID) int {
	m.mu.Lock()
	rec, ok := m.records[peer]
	orphans := len(m.orphans[peer])
	m.mu.Unlock()
	if !ok {
		return orphans
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.pending)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Peers returns the ids with a live record, sorted.
func (m *Manager) Peers() []domain.UserID {
	m.mu.Lock()
	out := make([]domain.UserID, 0, len(m.records))
	for id := range m.records {
		out = append(out, id)
	}
	m.mu.Unlock()
	slices.Sort(out)
	return out
}
