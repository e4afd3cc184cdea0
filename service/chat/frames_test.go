package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte(`{"event":"join-chat","data":{"chatId":"c1"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventJoinChat, f.Event)
	assert.JSONEq(t, `{"chatId":"c1"}`, string(f.Data))
}

func TestParseFrameWithoutData(t *testing.T) {
	f, err := ParseFrame([]byte(`{"event":"leave-chat"}`))
	require.NoError(t, err)
	assert.Equal(t, EventLeaveChat, f.Event)
	assert.Nil(t, f.Data)
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	_, err := ParseFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseFrameRequiresEvent(t *testing.T) {
	_, err := ParseFrame([]byte(`{"data":{"chatId":"c1"}}`))
	assert.Error(t, err)
}

func TestBuildFrameRoundTrips(t *testing.T) {
	raw := BuildFrame(EventUnreadCount, UnreadPayload{ChatID: "c1", UnreadCount: 2, TotalUnreadCount: 5})
	require.NotNil(t, raw)

	var f Frame
	require.NoError(t, json.Unmarshal(raw, &f))
	assert.Equal(t, EventUnreadCount, f.Event)
	assert.JSONEq(t, `{"chatId":"c1","unreadCount":2,"totalUnreadCount":5}`, string(f.Data))
}

func TestBuildFrameWithoutPayload(t *testing.T) {
	raw := BuildFrame(EventChatLeft, nil)
	require.NotNil(t, raw)
	assert.JSONEq(t, `{"event":"chat-left"}`, string(raw))
}
