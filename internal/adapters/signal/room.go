package signal

import (
	"errors"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, app.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, core.ErrNotMember):
		return "not_member"
	case errors.Is(err, app.ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, core.ErrNotAttached):
		return "peer_offline"
	case errors.Is(err, core.ErrBackpressure):
		return "peer_busy"
	}
	return "internal"
}

// handleJoin attaches the socket to a room the user joined over REST.
func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	env protocol.Envelope,
) {
	var p protocol.RoomPayload
	if err := protocol.DecodePayload(env, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload", err.Error())
		return
	}
	if _, err := ctl.Orch.AttachSignal(sid, p.RoomID); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID.String()).Msg("join rejected")
		ctl.sendError(conn, errorCode(err), err.Error())
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID.String()).Msg("join")
}

// handleLeave leaves the room for good; the socket itself stays open.
func (ctl *SignalWSController) handleLeave(
	sid core.SessionID,
	conn *WsSignalConn,
) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	if err := ctl.Orch.LeaveSignal(sid); err != nil {
		ctl.sendError(conn, errorCode(err), err.Error())
	}
}
