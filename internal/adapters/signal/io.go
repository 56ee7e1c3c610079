package signal

import (
	"context"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			c.Close()
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(sid)
		cancel()
		c.Close()
	}()

	uid := domain.UserID("")
	if u, ok := ctl.Orch.Registry.UserOf(sid); ok {
		uid = u.ID
	}
	deadline := 2 * ctl.opts.PingPeriod

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_ = c.conn.SetReadDeadline(time.Now().Add(deadline))
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			if !ctl.Limiter.Allow(uid) {
				log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("rate limited")
				ctl.sendError(c, "rate_limited", "too many messages")
				continue
			}
			ctl.handleSignal(sid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *WsSignalConn, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "bad_payload", err.Error())
		return
	}

	switch env.Type {
	case protocol.EventJoinRoom:
		ctl.handleJoin(sid, c, env)
	case protocol.EventLeaveRoom:
		ctl.handleLeave(sid, c)
	case protocol.EventPing:
		ctl.handlePing(c)
	case protocol.EventPong:
	case protocol.EventOffer:
		ctl.handleOffer(sid, c, env)
	case protocol.EventAnswer:
		ctl.handleAnswer(sid, c, env)
	case protocol.EventCandidate:
		ctl.handleCandidate(sid, c, env)
	case protocol.EventToggleAudio:
		ctl.handleToggle(sid, c, env, domain.MediaAudio)
	case protocol.EventToggleVideo:
		ctl.handleToggle(sid, c, env, domain.MediaVideo)
	default:
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown signal")
		ctl.sendError(c, "unknown_event", string(env.Type))
	}
}

func (ctl *SignalWSController) send(c core.SignalConnection, ev protocol.Event, payload any) {
	b, err := protocol.Encode(ev, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("send marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c core.SignalConnection, code, msg string) {
	ctl.send(c, protocol.EventError, protocol.ErrorPayload{Code: code, Message: msg})
}
