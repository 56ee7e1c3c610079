package domain

import "time"

// Member represents user's participation meta for a room on the relay.
// No transport or lifecycle logic here.
type Member struct {
	User         *User
	JoinedAt     time.Time
	AudioEnabled bool
	VideoEnabled bool
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User, kind CallKind) *Member {
	return &Member{
		User:         user,
		JoinedAt:     time.Now(),
		AudioEnabled: true,
		VideoEnabled: kind.WantsVideo(),
	}
}
