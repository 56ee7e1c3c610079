package signalclient

import (
	"context"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (c *Channel) writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()
	ping, _ := protocol.Encode(protocol.EventPing, struct{}{})

	write := func(data []byte) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			log.Error().Err(err).Str("module", "signalclient").Msg("writePump set deadline")
			return false
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "signalclient").Msg("writePump write error")
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		case data, ok := <-send:
			if !ok {
				// queue closed: drained, say goodbye
				_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "leave"))
				_ = conn.Close()
				return
			}
			if !write(data) {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if !write(ping) {
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Channel) readPump(conn *websocket.Conn) error {
	deadline := 2 * c.cfg.PingPeriod
	for {
		if err := conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(data)
	}
}

func (c *Channel) dispatch(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Error().Err(err).Str("module", "signalclient").Msg("bad envelope")
		return
	}
	h := c.handler

	switch env.Type {
	case protocol.EventOffer:
		var p protocol.OfferPayload
		if c.decode(env, &p) && h != nil {
			h.OnOffer(p.From, p.Offer)
		}
	case protocol.EventAnswer:
		var p protocol.AnswerPayload
		if c.decode(env, &p) && h != nil {
			h.OnAnswer(p.From, p.Answer)
		}
	case protocol.EventCandidate:
		var p protocol.CandidatePayload
		if c.decode(env, &p) && h != nil {
			h.OnICECandidate(p.From, p.Candidate)
		}
	case protocol.EventParticipantJoined:
		var p protocol.ParticipantPayload
		if c.decode(env, &p) && h != nil {
			h.OnParticipantJoined(p.UserID, p.Time())
		}
	case protocol.EventParticipantLeft:
		var p protocol.ParticipantPayload
		if c.decode(env, &p) && h != nil {
			h.OnParticipantLeft(p.UserID)
		}
	case protocol.EventAudioToggled, protocol.EventVideoToggled:
		var p protocol.ToggledPayload
		kind := domain.MediaAudio
		if env.Type == protocol.EventVideoToggled {
			kind = domain.MediaVideo
		}
		if c.decode(env, &p) && h != nil {
			h.OnParticipantToggled(p.UserID, kind, p.Enabled)
		}
	case protocol.EventPing:
		_ = c.sendFrame(protocol.EventPong, struct{}{})
	case protocol.EventPong:
	case protocol.EventError:
		var p protocol.ErrorPayload
		if c.decode(env, &p) {
			log.Warn().Str("module", "signalclient").Str("code", p.Code).Str("message", p.Message).Msg("relay error")
		}
	default:
		log.Warn().Str("module", "signalclient").Str("type", string(env.Type)).Msg("unknown signal")
	}
}

func (c *Channel) decode(env protocol.Envelope, v any) bool {
	if err := protocol.DecodePayload(env, v); err != nil {
		log.Error().Err(err).Str("module", "signalclient").Msg("bad payload")
		return false
	}
	return true
}
