package protocol

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_Offer(t *testing.T) {
	data, err := Encode(EventOffer, OfferPayload{
		To:     "bob",
		RoomID: "r1",
		Offer:  webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"webrtc-offer"`)
	assert.Contains(t, string(data), `"roomId":"r1"`)

	env, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, EventOffer, env.Type)

	var p OfferPayload
	require.NoError(t, DecodePayload(env, &p))
	assert.Equal(t, "v=0", p.Offer.SDP)
	assert.Empty(t, p.From)
}

func TestDecodePayload_RejectsMismatchedSDPType(t *testing.T) {
	data, err := Encode(EventOffer, OfferPayload{
		To:    "bob",
		Offer: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"},
	})
	require.NoError(t, err)
	env, err := Decode(data)
	require.NoError(t, err)

	var p OfferPayload
	assert.Error(t, DecodePayload(env, &p))
}

func TestDecodePayload_Validation(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
		body string
		into any
	}{
		{"missing payload", EventJoinRoom, `{"type":"join-room"}`, &RoomPayload{}},
		{"join without room", EventJoinRoom, `{"type":"join-room","payload":{}}`, &RoomPayload{}},
		{"candidate without to", EventCandidate, `{"type":"ice-candidate","payload":{"candidate":{"candidate":"c"}}}`, &CandidatePayload{}},
		{"empty candidate", EventCandidate, `{"type":"ice-candidate","payload":{"to":"a","candidate":{"candidate":""}}}`, &CandidatePayload{}},
		{"joined without user", EventParticipantJoined, `{"type":"participant-joined","payload":{"timestamp":1}}`, &ParticipantPayload{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := Decode([]byte(tc.body))
			require.NoError(t, err)
			assert.Error(t, DecodePayload(env, tc.into))
		})
	}
}

func TestDecode_MissingType(t *testing.T) {
	_, err := Decode([]byte(`{"payload":{}}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestToggleEvents(t *testing.T) {
	out, in := ToggleEvents("video")
	assert.Equal(t, EventToggleVideo, out)
	assert.Equal(t, EventVideoToggled, in)

	out, in = ToggleEvents("audio")
	assert.Equal(t, EventToggleAudio, out)
	assert.Equal(t, EventAudioToggled, in)
}
