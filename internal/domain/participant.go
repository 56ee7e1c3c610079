package domain

import "time"

// Participant is the client-side view of someone in the call, self included.
type Participant struct {
	UserID       UserID    `json:"userId"`
	AudioEnabled bool      `json:"audioEnabled"`
	VideoEnabled bool      `json:"videoEnabled"`
	Muted        bool      `json:"muted"`
	JoinedAt     time.Time `json:"joinedAt"`
}

func NewParticipant(id UserID, joinedAt time.Time) Participant {
	if joinedAt.IsZero() {
		joinedAt = time.Now()
	}
	return Participant{UserID: id, AudioEnabled: true, JoinedAt: joinedAt}
}

func (p *Participant) SetAudio(enabled bool) {
	p.AudioEnabled = enabled
	p.Muted = !enabled
}

func (p *Participant) SetVideo(enabled bool) {
	p.VideoEnabled = enabled
}
