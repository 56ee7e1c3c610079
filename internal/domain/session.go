package domain

import (
	"maps"
	"slices"
	"time"
)

type LocalMediaState struct {
	AudioEnabled bool `json:"audioEnabled"`
	VideoEnabled bool `json:"videoEnabled"`
}

// CallSession is the state of one joined call. Owned by the orchestrator loop.
type CallSession struct {
	RoomID       RoomID
	Kind         CallKind
	Self         UserID
	Local        LocalMediaState
	Participants map[UserID]Participant
}

func NewCallSession(room RoomID, kind CallKind, self UserID, local LocalMediaState) *CallSession {
	s := &CallSession{
		RoomID:       room,
		Kind:         kind,
		Self:         self,
		Local:        local,
		Participants: make(map[UserID]Participant),
	}
	me := NewParticipant(self, time.Now())
	me.SetAudio(local.AudioEnabled)
	me.SetVideo(local.VideoEnabled)
	s.Participants[self] = me
	return s
}

// Upsert adds a participant unless already present. Reports whether it was added.
func (s *CallSession) Upsert(id UserID, joinedAt time.Time) bool {
	if _, ok := s.Participants[id]; ok {
		return false
	}
	s.Participants[id] = NewParticipant(id, joinedAt)
	return true
}

func (s *CallSession) Remove(id UserID) bool {
	if id == s.Self {
		return false
	}
	if _, ok := s.Participants[id]; !ok {
		return false
	}
	delete(s.Participants, id)
	return true
}

// Update applies fn to a known participant.
func (s *CallSession) Update(id UserID, fn func(*Participant)) bool {
	p, ok := s.Participants[id]
	if !ok {
		return false
	}
	fn(&p)
	s.Participants[id] = p
	return true
}

// Remotes returns every participant id except self, sorted.
func (s *CallSession) Remotes() []UserID {
	out := make([]UserID, 0, len(s.Participants))
	for id := range s.Participants {
		if id != s.Self {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// Clone returns a deep copy safe to hand out of the owning loop.
func (s *CallSession) Clone() *CallSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Participants = maps.Clone(s.Participants)
	return &c
}
