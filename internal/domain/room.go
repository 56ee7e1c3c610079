package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type RoomID string

func (id RoomID) String() string { return string(id) }

func NewRoomID() RoomID {
	return RoomID(uuid.NewString())
}

// CallKind selects which local devices a call acquires.
type CallKind string

const (
	CallAudio CallKind = "audio"
	CallVideo CallKind = "video"
)

func ParseCallKind(s string) (CallKind, error) {
	switch CallKind(s) {
	case CallAudio, CallVideo:
		return CallKind(s), nil
	case "":
		return CallAudio, nil
	}
	return "", fmt.Errorf("unknown call kind %q", s)
}

func (k CallKind) WantsVideo() bool { return k == CallVideo }

// MediaKind names a single local track type.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

type Room struct {
	ID   RoomID
	Kind CallKind
}
