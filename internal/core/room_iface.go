package core

import (
	"errors"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
)

var (
	ErrNotAttached = errors.New("member has no signaling session")
	ErrNotMember   = errors.New("not a room member")
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []domain.UserID
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID           domain.UserID `json:"id"`
	JoinedAt     time.Time     `json:"joinedAt"`
	AudioEnabled bool          `json:"audioEnabled"`
	VideoEnabled bool          `json:"videoEnabled"`
	Online       bool          `json:"online"`
}

// RoomService is the core-facing API of a room.
// It owns the roster and the attached sessions but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	IsMember(uid domain.UserID) bool

	AddMember(m *domain.Member) bool
	RemoveMember(uid domain.UserID) bool

	// Attach binds a signaling session to a roster member and returns the session it replaced.
	Attach(sid SessionID, ms MemberSession) (MemberSession, error)
	// Detach unbinds uid only when sid is still the bound session.
	Detach(uid domain.UserID, sid SessionID) bool
	SetMedia(uid domain.UserID, kind domain.MediaKind, enabled bool) bool

	SendTo(uid domain.UserID, data Frame) error
	Broadcast(from domain.UserID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID   `json:"roomId"`
	Kind        domain.CallKind `json:"kind"`
	MemberCount int             `json:"memberCount"`
}

type RoomManager interface {
	CreateRoom(kind domain.CallKind) RoomService
	GetRoom(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}
