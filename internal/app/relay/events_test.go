package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinPayloadPrefersCurrentKeys(t *testing.T) {
	var p JoinPayload
	require.NoError(t, json.Unmarshal([]byte(`{"userId":"u1","uid":"legacy","name":"Al"}`), &p))

	assert.Equal(t, JoinPayload{UserID: "u1", DisplayName: "Al"}, p)
}

func TestEnvelopeLegacyKeys(t *testing.T) {
	var e Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"roomId":"r","from":"Alice","fromUid":"u1","to":"u2","text":"hi"}`), &e))

	assert.Equal(t, Envelope{RoomID: "r", FromUserID: "u1", FromDisplayName: "Alice", ToUserID: "u2", Text: "hi"}, e)
}

func TestReceivedMessageJSON(t *testing.T) {
	raw, err := EncodeFrame(EventReceiveMessage, ReceivedMessage{
		RoomID:          "r",
		FromUserID:      "u1",
		FromDisplayName: "Alice",
		Text:            "hi",
		Timestamp:       testEpoch,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"event":"receiveMessage","data":{"roomId":"r","fromUserId":"u1","fromDisplayName":"Alice","text":"hi","timestamp":"2026-10-17T09:30:00.000Z"}}`, string(raw))
}

func TestCanonicalEventNames(t *testing.T) {
	assert.Equal(t, EventJoin, EventType("new user").canonical())
	assert.Equal(t, EventMessage, EventType("privateMessage").canonical())
	assert.Equal(t, EventJoin, EventJoin.canonical())
	assert.Equal(t, EventType("other"), EventType("other").canonical())
}
