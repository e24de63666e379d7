package push

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayRoundTrip(t *testing.T) {
	raw, err := encodeRelay(UserRoom("u1"), "itinerary-updated", map[string]string{"itineraryId": "x"})
	require.NoError(t, err)

	room, frame, err := decodeRelay(string(raw))
	require.NoError(t, err)
	assert.Equal(t, "user-u1", room)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, "itinerary-updated", env.Event)
	assert.JSONEq(t, `{"itineraryId":"x"}`, string(env.Data))
}

func TestDecodeRelayRejectsIncompleteMessages(t *testing.T) {
	_, _, err := decodeRelay(`not json`)
	assert.Error(t, err)

	_, _, err = decodeRelay(`{"event":"x","data":{}}`)
	assert.Error(t, err)
}
