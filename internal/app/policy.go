package app

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a member whose send queue is full.
type Policy interface {
	OnBackPressure(room core.RoomService, member domain.UserID) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.RoomService, domain.UserID) BackpressureAction {
	return KickMember
}

// TolerantPolicy drops frames for slow members instead of disconnecting them.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(core.RoomService, domain.UserID) BackpressureAction {
	return DropFrame
}
