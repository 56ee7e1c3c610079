package core

import (
	"slices"
	"sync"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

type attached struct {
	sid SessionID
	ms  MemberSession
}

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room    *domain.Room
	mu      sync.RWMutex
	members map[domain.UserID]*domain.Member
	online  map[domain.UserID]attached
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:    room,
		members: make(map[domain.UserID]*domain.Member),
		online:  make(map[domain.UserID]attached),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *roomImpl) IsMember(uid domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[uid]
	return ok
}

func (r *roomImpl) AddMember(m *domain.Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m.User.ID]; ok {
		return false
	}
	r.members[m.User.ID] = m
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("user", string(m.User.ID)).Msg("member added")
	return true
}

func (r *roomImpl) RemoveMember(uid domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[uid]; !ok {
		return false
	}
	delete(r.members, uid)
	delete(r.online, uid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("user", string(uid)).Msg("member removed")
	return true
}

func (r *roomImpl) Attach(sid SessionID, ms MemberSession) (MemberSession, error) {
	uid := ms.Meta().User.ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[uid]; !ok {
		return nil, ErrNotMember
	}
	prev, had := r.online[uid]
	r.online[uid] = attached{sid: sid, ms: ms}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Str("user", string(uid)).Msg("session attached")
	if had && prev.sid != sid {
		return prev.ms, nil
	}
	return nil, nil
}

func (r *roomImpl) Detach(uid domain.UserID, sid SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.online[uid]
	if !ok || cur.sid != sid {
		return false
	}
	delete(r.online, uid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("session detached")
	return true
}

func (r *roomImpl) SetMedia(uid domain.UserID, kind domain.MediaKind, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[uid]
	if !ok {
		return false
	}
	switch kind {
	case domain.MediaAudio:
		m.AudioEnabled = enabled
	case domain.MediaVideo:
		m.VideoEnabled = enabled
	}
	return true
}

func (r *roomImpl) SendTo(uid domain.UserID, data Frame) error {
	r.mu.RLock()
	a, ok := r.online[uid]
	r.mu.RUnlock()
	if !ok {
		return ErrNotAttached
	}
	return a.ms.Signal().TrySend(data)
}

func (r *roomImpl) Broadcast(from domain.UserID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for uid, a := range r.online {
		if uid == from {
			continue
		}
		if err := a.ms.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, uid)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.members))
	for uid, m := range r.members {
		_, online := r.online[uid]
		out = append(out, MemberDTO{
			ID:           uid,
			JoinedAt:     m.JoinedAt,
			AudioEnabled: m.AudioEnabled,
			VideoEnabled: m.VideoEnabled,
			Online:       online,
		})
	}
	slices.SortFunc(out, func(a, b MemberDTO) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return out
}

func compareIDs(a, b domain.UserID) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}
