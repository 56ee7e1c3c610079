package signal

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// relay re-encodes a peer-addressed payload after stamping the sender and
// hands it to the orchestrator for delivery.
func (ctl *SignalWSController) relay(
	sid core.SessionID,
	conn *WsSignalConn,
	ev protocol.Event,
	to domain.UserID,
	payload any,
) {
	data, err := protocol.Encode(ev, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", string(ev)).Msg("relay encode")
		return
	}
	if err := ctl.Orch.Forward(sid, to, data); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("to", to.String()).Str("event", string(ev)).Msg("relay failed")
		ctl.sendError(conn, errorCode(err), err.Error())
	}
}

func (ctl *SignalWSController) sender(sid core.SessionID) (domain.UserID, domain.RoomID, bool) {
	user, ok := ctl.Orch.Registry.UserOf(sid)
	if !ok {
		return "", "", false
	}
	room, _, _ := ctl.Orch.Registry.RoomOf(sid)
	return user.ID, room, true
}

func (ctl *SignalWSController) handleOffer(
	sid core.SessionID,
	conn *WsSignalConn,
	env protocol.Envelope,
) {
	var p protocol.OfferPayload
	if err := protocol.DecodePayload(env, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		ctl.sendError(conn, "bad_payload", err.Error())
		return
	}
	from, room, ok := ctl.sender(sid)
	if !ok {
		return
	}
	p.From, p.RoomID = from, room
	ctl.relay(sid, conn, protocol.EventOffer, p.To, p)
}

func (ctl *SignalWSController) handleAnswer(
	sid core.SessionID,
	conn *WsSignalConn,
	env protocol.Envelope,
) {
	var p protocol.AnswerPayload
	if err := protocol.DecodePayload(env, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad answer payload")
		ctl.sendError(conn, "bad_payload", err.Error())
		return
	}
	from, room, ok := ctl.sender(sid)
	if !ok {
		return
	}
	p.From, p.RoomID = from, room
	ctl.relay(sid, conn, protocol.EventAnswer, p.To, p)
}

func (ctl *SignalWSController) handleCandidate(
	sid core.SessionID,
	conn *WsSignalConn,
	env protocol.Envelope,
) {
	var p protocol.CandidatePayload
	if err := protocol.DecodePayload(env, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		ctl.sendError(conn, "bad_payload", err.Error())
		return
	}
	from, room, ok := ctl.sender(sid)
	if !ok {
		return
	}
	p.From, p.RoomID = from, room
	ctl.relay(sid, conn, protocol.EventCandidate, p.To, p)
}
