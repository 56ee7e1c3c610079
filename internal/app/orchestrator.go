package app

import (
	"errors"
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNoSession    = errors.New("unknown signaling session")
	ErrNotInRoom    = errors.New("session has not joined a room")
)

// Orchestrator is the relay hub: roster changes from REST, socket
// attachment and fan-out from the signaling controller.
type Orchestrator struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy
}

func NewOrchestrator(reg *Registry, rooms core.RoomManager, policy Policy) *Orchestrator {
	return &Orchestrator{Registry: reg, Rooms: rooms, Policy: policy}
}

// CreateRoom opens a room with user as its first member.
func (o *Orchestrator) CreateRoom(user domain.User, kind domain.CallKind) core.RoomService {
	room := o.Rooms.CreateRoom(kind)
	room.AddMember(domain.NewMember(&user, kind))
	return room
}

// JoinRoom adds user to the roster. Joining twice is not an error.
func (o *Orchestrator) JoinRoom(user domain.User, id domain.RoomID) (core.RoomService, error) {
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if room.AddMember(domain.NewMember(&user, room.Room().Kind)) {
		log.Info().Str("module", "app.orchestrator").Str("room", id.String()).Str("user", user.ID.String()).Msg("joined roster")
	}
	return room, nil
}

// LeaveRoom drops uid from the roster, tells the others and stops the room once empty.
func (o *Orchestrator) LeaveRoom(uid domain.UserID, id domain.RoomID) error {
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return ErrRoomNotFound
	}
	if !room.RemoveMember(uid) {
		return core.ErrNotMember
	}
	for _, snap := range o.Registry.MembersOfRoom(id) {
		if snap.User.ID == uid {
			o.Registry.RemoveRoom(snap.SID)
		}
	}
	o.broadcastEvent(room, uid, protocol.EventParticipantLeft, protocol.ParticipantPayload{
		UserID:    uid,
		Timestamp: protocol.Now(),
	})
	if room.MemberCount() == 0 {
		o.Rooms.StopRoom(id)
	}
	return nil
}

// AttachSignal binds the socket sid to a room the user is already a member of.
// A previous socket of the same user in that room is closed.
func (o *Orchestrator) AttachSignal(sid core.SessionID, id domain.RoomID) (core.RoomService, error) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, ErrNoSession
	}
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return nil, ErrRoomNotFound
	}
	uid := sess.Meta().User.ID

	if cur, _, ok := o.Registry.RoomOf(sid); ok && cur != id {
		o.detach(sid, uid, cur)
	}

	prev, err := room.Attach(sid, sess)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		for _, snap := range o.Registry.MembersOfRoom(id) {
			if snap.Session == prev {
				o.Registry.RemoveRoom(snap.SID)
				o.Registry.Cancel(snap.SID)
				log.Info().Str("module", "app.orchestrator").Str("sid", string(snap.SID)).Msg("replaced by newer session")
			}
		}
	}
	o.Registry.UpdateRoom(sid, id)

	o.broadcastEvent(room, uid, protocol.EventParticipantJoined, protocol.ParticipantPayload{
		UserID:    uid,
		Timestamp: protocol.Now(),
	})
	return room, nil
}

// LeaveSignal handles an explicit leave-room on the socket.
func (o *Orchestrator) LeaveSignal(sid core.SessionID) error {
	id, sess, ok := o.Registry.RoomOf(sid)
	if !ok {
		return ErrNotInRoom
	}
	return o.LeaveRoom(sess.Meta().User.ID, id)
}

// OnDisconnect detaches a dropped socket. The user stays on the roster so a
// reconnect can attach again; leaving is always explicit.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	if id, sess, ok := o.Registry.RoomOf(sid); ok {
		o.detach(sid, sess.Meta().User.ID, id)
	}
	o.Registry.Unbind(sid)
}

func (o *Orchestrator) detach(sid core.SessionID, uid domain.UserID, id domain.RoomID) {
	if room, ok := o.Rooms.GetRoom(id); ok {
		room.Detach(uid, sid)
	}
	o.Registry.RemoveRoom(sid)
}

// Forward delivers a peer-addressed frame from sid's user to another member of the same room.
func (o *Orchestrator) Forward(sid core.SessionID, to domain.UserID, frame core.Frame) error {
	id, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return ErrNotInRoom
	}
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return ErrRoomNotFound
	}
	if !room.IsMember(to) {
		return fmt.Errorf("forward to %s: %w", to, core.ErrNotMember)
	}
	err := room.SendTo(to, frame)
	if errors.Is(err, core.ErrBackpressure) {
		o.onBackPressure(room, []domain.UserID{to})
	}
	return err
}

// Toggle records a media flag change and tells the rest of the room.
func (o *Orchestrator) Toggle(sid core.SessionID, kind domain.MediaKind, enabled bool) error {
	id, sess, ok := o.Registry.RoomOf(sid)
	if !ok {
		return ErrNotInRoom
	}
	room, ok := o.Rooms.GetRoom(id)
	if !ok {
		return ErrRoomNotFound
	}
	uid := sess.Meta().User.ID
	if !room.SetMedia(uid, kind, enabled) {
		return core.ErrNotMember
	}
	_, ev := protocol.ToggleEvents(kind)
	o.broadcastEvent(room, uid, ev, protocol.ToggledPayload{
		UserID:    uid,
		Enabled:   enabled,
		Timestamp: protocol.Now(),
	})
	return nil
}

// EvictRoom closes every socket in the room and stops it.
func (o *Orchestrator) EvictRoom(id domain.RoomID) {
	for _, snap := range o.Registry.MembersOfRoom(id) {
		o.Registry.RemoveRoom(snap.SID)
		o.Registry.Cancel(snap.SID)
	}
	o.Rooms.StopRoom(id)
}

func (o *Orchestrator) broadcastEvent(room core.RoomService, from domain.UserID, ev protocol.Event, payload any) {
	data, err := protocol.Encode(ev, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").Str("event", string(ev)).Msg("encode")
		return
	}
	res := room.Broadcast(from, data)
	o.onBackPressure(room, res.Dropped)
}

func (o *Orchestrator) onBackPressure(room core.RoomService, slow []domain.UserID) {
	if o.Policy == nil {
		return
	}
	for _, uid := range slow {
		switch o.Policy.OnBackPressure(room, uid) {
		case KickMember:
			for _, snap := range o.Registry.MembersOfRoom(room.Room().ID) {
				if snap.User.ID == uid {
					log.Warn().Str("module", "app.orchestrator").Str("sid", string(snap.SID)).Str("user", uid.String()).Msg("kicking slow member")
					o.detach(snap.SID, uid, room.Room().ID)
					o.Registry.Cancel(snap.SID)
				}
			}
		case MarkSlow, DropFrame, NoAction:
		}
	}
}
