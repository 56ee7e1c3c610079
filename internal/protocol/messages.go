// Package protocol defines the signaling envelopes exchanged between huddle
// clients and the relay.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
)

type Event string

const (
	EventJoinRoom  Event = "join-room"
	EventLeaveRoom Event = "leave-room"

	EventOffer     Event = "webrtc-offer"
	EventAnswer    Event = "webrtc-answer"
	EventCandidate Event = "ice-candidate"

	EventToggleAudio Event = "toggle-audio"
	EventToggleVideo Event = "toggle-video"

	EventAudioToggled Event = "participant-audio-toggled"
	EventVideoToggled Event = "participant-video-toggled"

	EventParticipantJoined Event = "participant-joined"
	EventParticipantLeft   Event = "participant-left"

	EventPing  Event = "ping"
	EventPong  Event = "pong"
	EventError Event = "error"
)

// Envelope is the single frame shape on the wire.
type Envelope struct {
	Type    Event           `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type RoomPayload struct {
	RoomID domain.RoomID `json:"roomId"`
}

// OfferPayload carries an SDP offer. From is set by the relay, RoomID by the sender.
type OfferPayload struct {
	From   domain.UserID             `json:"from,omitempty"`
	To     domain.UserID             `json:"to"`
	RoomID domain.RoomID             `json:"roomId,omitempty"`
	Offer  webrtc.SessionDescription `json:"offer"`
}

type AnswerPayload struct {
	From   domain.UserID             `json:"from,omitempty"`
	To     domain.UserID             `json:"to"`
	RoomID domain.RoomID             `json:"roomId,omitempty"`
	Answer webrtc.SessionDescription `json:"answer"`
}

type CandidatePayload struct {
	From      domain.UserID           `json:"from,omitempty"`
	To        domain.UserID           `json:"to"`
	RoomID    domain.RoomID           `json:"roomId,omitempty"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type TogglePayload struct {
	RoomID  domain.RoomID `json:"roomId"`
	Enabled bool          `json:"enabled"`
}

type ToggledPayload struct {
	UserID    domain.UserID `json:"userId"`
	Enabled   bool          `json:"enabled"`
	Timestamp int64         `json:"timestamp"`
}

type ParticipantPayload struct {
	UserID    domain.UserID `json:"userId"`
	Timestamp int64         `json:"timestamp"`
}

func (p ParticipantPayload) Time() time.Time {
	if p.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(p.Timestamp)
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Now is the timestamp format used in relay-originated payloads.
func Now() int64 { return time.Now().UnixMilli() }

// Encode wraps payload into an Envelope and marshals it.
func Encode(t Event, payload any) ([]byte, error) {
	env := Envelope{Type: t}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses the envelope only; payload decoding is left to the caller.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope missing type")
	}
	return env, nil
}

// DecodePayload unmarshals env.Payload into v and validates it when v knows how.
func DecodePayload(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", env.Type, err)
	}
	if vv, ok := v.(interface{ validate() error }); ok {
		if err := vv.validate(); err != nil {
			return fmt.Errorf("%s: %w", env.Type, err)
		}
	}
	return nil
}

func (p *RoomPayload) validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("missing roomId")
	}
	return nil
}

func (p *OfferPayload) validate() error {
	if p.To == "" {
		return fmt.Errorf("missing to")
	}
	if p.Offer.Type != webrtc.SDPTypeOffer {
		return fmt.Errorf("offer has sdp type %q", p.Offer.Type.String())
	}
	return nil
}

func (p *AnswerPayload) validate() error {
	if p.To == "" {
		return fmt.Errorf("missing to")
	}
	if p.Answer.Type != webrtc.SDPTypeAnswer {
		return fmt.Errorf("answer has sdp type %q", p.Answer.Type.String())
	}
	return nil
}

func (p *CandidatePayload) validate() error {
	if p.To == "" {
		return fmt.Errorf("missing to")
	}
	if p.Candidate.Candidate == "" {
		return fmt.Errorf("empty candidate")
	}
	return nil
}

func (p *ParticipantPayload) validate() error {
	if p.UserID == "" {
		return fmt.Errorf("missing userId")
	}
	return nil
}

func (p *ToggledPayload) validate() error {
	if p.UserID == "" {
		return fmt.Errorf("missing userId")
	}
	return nil
}

// ToggleEvents maps a media kind to its outbound and inbound event names.
func ToggleEvents(kind domain.MediaKind) (out, in Event) {
	if kind == domain.MediaVideo {
		return EventToggleVideo, EventVideoToggled
	}
	return EventToggleAudio, EventAudioToggled
}
