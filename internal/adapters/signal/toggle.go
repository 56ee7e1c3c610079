package signal

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleToggle(
	sid core.SessionID,
	conn *WsSignalConn,
	env protocol.Envelope,
	kind domain.MediaKind,
) {
	var p protocol.TogglePayload
	if err := protocol.DecodePayload(env, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad toggle payload")
		ctl.sendError(conn, "bad_payload", err.Error())
		return
	}
	log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("kind", string(kind)).Bool("enabled", p.Enabled).Msg("toggle")
	if err := ctl.Orch.Toggle(sid, kind, p.Enabled); err != nil {
		ctl.sendError(conn, errorCode(err), err.Error())
	}
}
