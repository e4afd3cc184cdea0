package chat

import (
	"TransitChat/service/storage"
	"TransitChat/tools/errs"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinChatRegistersBothIndexSides(t *testing.T) {
	rig := newTestRig(time.Second, twoPartyConv("chat-1", "driver-1", "rider-1"))
	defer rig.close()
	ctx := context.Background()

	c := rig.connect("conn-1", "driver-1")
	require.NoError(t, rig.coord.JoinChat(ctx, c, "chat-1"))

	inChat, err := rig.presence.IsMember(ctx, storage.ChatUsersKey("chat-1"), "driver-1")
	require.NoError(t, err)
	assert.True(t, inChat)

	chats, err := rig.presence.Members(ctx, storage.UserChatsKey("driver-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"chat-1"}, chats)

	frames := drain(c)
	joined, ok := findFrame(frames, EventChatJoined)
	require.True(t, ok)
	assert.JSONEq(t, `{"chatId":"chat-1"}`, string(joined.Data))
}

func TestJoinChatUnknownChat(t *testing.T) {
	rig := newTestRig(time.Second)
	defer rig.close()

	c := rig.connect("conn-1", "driver-1")
	err := rig.coord.JoinChat(context.Background(), c, "nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestJoinChatNonParticipantLeavesPresenceUntouched(t *testing.T) {
	rig := newTestRig(time.Second, twoPartyConv("chat-1", "driver-1", "rider-1"))
	defer rig.close()
	ctx := context.Background()

	c := rig.connect("conn-x", "intruder")
	err := rig.coord.JoinChat(ctx, c, "chat-1")
	assert.ErrorIs(t, err, errs.ErrForbidden)

	n, err := rig.presence.Cardinality(ctx, storage.ChatUsersKey("chat-1"))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, drain(c))
}

func TestJoinChatEmptyChatID(t *testing.T) {
	rig := newTestRig(time.Second)
	defer rig.close()

	c := rig.connect("conn-1", "driver-1")
	err := rig.coord.JoinChat(context.Background(), c, "")
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)
}

func TestJoinChatNotifiesPeerAndSweepsDelivery(t *testing.T) {
	rig := newTestRig(time.Second, twoPartyConv("chat-1", "driver-1", "rider-1"))
	defer rig.close()
	ctx := context.Background()

	driver := rig.connect("conn-d", "driver-1")
	require.NoError(t, rig.coord.JoinChat(ctx, driver, "chat-1"))
	drain(driver)

	// Two messages the driver sent while the rider was away.
	require.NoError(t, rig.msgs.InsertMessage(ctx, sentMessage("m1", "chat-1", "driver-1", "rider-1")))
	require.NoError(t, rig.msgs.InsertMessage(ctx, sentMessage("m2", "chat-1", "driver-1", "rider-1")))

	rider := rig.connect("conn-r", "rider-1")
	require.NoError(t, rig.coord.JoinChat(ctx, rider, "chat-1"))

	frames := drain(driver)
	evs := events(frames)
	assert.Contains(t, evs, EventUserOnline)
	assert.Contains(t, evs, EventMessageDelivered)
	assert.Contains(t, evs, EventMessageRead)

	// The join marks the chat read, so both messages end at read.
	assert.Equal(t, "read", rig.msgs.status("m1"))
	assert.Equal(t, "read", rig.msgs.status("m2"))

	// Chat-scoped notifications were cleared for the joiner.
	assert.Equal(t, []string{"chat-1/rider-1"}, rig.notifs.calls)
}

func TestJoinChatQuietWhenNothingOutstanding(t *testing.T) {
	rig := newTestRig(time.Second, twoPartyConv("chat-1", "driver-1", "rider-1"))
	defer rig.close()
	ctx := context.Background()

	driver := rig.connect("conn-d", "driver-1")
	require.NoError(t, rig.coord.JoinChat(ctx, driver, "chat-1"))
	drain(driver)

	rider := rig.connect("conn-r", "rider-1")
	require.NoError(t, rig.coord.JoinChat(ctx, rider, "chat-1"))

	evs := events(drain(driver))
	assert.Contains(t, evs, EventUserOnline)
	assert.NotContains(t, evs, EventMessageDelivered)
	assert.NotContains(t, evs, EventMessageRead)
}

func TestLeaveChatRemovesMembershipAndNotifiesRoom(t *testing.T) {
	rig := newTestRig(time.Second, twoPartyConv("chat-1", "driver-1", "rider-1"))
	defer rig.close()
	ctx := context.Background()

	driver := rig.connect("conn-d", "driver-1")
	rider := rig.connect("conn-r", "rider-1")
	require.NoError(t, rig.coord.JoinChat(ctx, driver, "chat-1"))
	require.NoError(t, rig.coord.JoinChat(ctx, rider, "chat-1"))
	drain(driver)
	drain(rider)

	require.NoError(t, rig.coord.LeaveChat(ctx, rider, "chat-1"))

	inChat, err := rig.presence.IsMember(ctx, storage.ChatUsersKey("chat-1"), "rider-1")
	require.NoError(t, err)
	assert.False(t, inChat)

	left, ok := findFrame(drain(rider), EventChatLeft)
	require.True(t, ok)
	assert.JSONEq(t, `{"chatId":"chat-1"}`, string(left.Data))

	offline, ok := findFrame(drain(driver), EventUserOffline)
	require.True(t, ok)
	assert.JSONEq(t, `{"userId":"rider-1","chatId":"chat-1"}`, string(offline.Data))
}

func TestLeaveChatWithoutJoinIsHarmless(t *testing.T) {
	rig := newTestRig(time.Second, twoPartyConv("chat-1", "driver-1", "rider-1"))
	defer rig.close()

	c := rig.connect("conn-d", "driver-1")
	assert.NoError(t, rig.coord.LeaveChat(context.Background(), c, "chat-1"))
}
