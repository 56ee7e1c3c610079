package protocol

import (
	"time"

	"github.com/dkeye/Huddle/internal/domain"
)

// Call-control REST bodies shared by the relay handlers and callsvc.

type CreateRoomRequest struct {
	Kind domain.CallKind `json:"kind"`
}

type RosterEntry struct {
	UserID       domain.UserID `json:"userId"`
	JoinedAt     int64         `json:"joinedAt"`
	AudioEnabled bool          `json:"audioEnabled"`
	VideoEnabled bool          `json:"videoEnabled"`
	Online       bool          `json:"online"`
}

// Participant converts the entry to the client-side model.
func (e RosterEntry) Participant() domain.Participant {
	var at time.Time
	if e.JoinedAt > 0 {
		at = time.UnixMilli(e.JoinedAt)
	}
	p := domain.NewParticipant(e.UserID, at)
	p.SetAudio(e.AudioEnabled)
	p.SetVideo(e.VideoEnabled)
	return p
}

type RoomState struct {
	RoomID       domain.RoomID   `json:"roomId"`
	Kind         domain.CallKind `json:"kind"`
	Participants []RosterEntry   `json:"participants"`
}

type RoomSummary struct {
	RoomID       domain.RoomID   `json:"roomId"`
	Kind         domain.CallKind `json:"kind"`
	Participants int             `json:"participants"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
