package chat

import (
	"TransitChat/logger"
	"TransitChat/service/storage"
	"TransitChat/tools/safe"
	"context"
)

// DisconnectReconciler tears down everything a dead connection left
// behind. Every step is best effort and isolated: one failing cleanup
// never blocks the rest, and the store TTLs are the backstop for
// whatever slips through.
type DisconnectReconciler struct {
	presence storage.Presence
	typing   *TypingIndicatorCoordinator
	out      *Fanout
}

func NewDisconnectReconciler(presence storage.Presence, typing *TypingIndicatorCoordinator, out *Fanout) *DisconnectReconciler {
	return &DisconnectReconciler{presence: presence, typing: typing, out: out}
}

// OnDisconnect runs after the socket read loop exits, for any reason.
// Chat memberships are shared across the user's devices, so they are
// only reclaimed once the last connection is gone.
func (r *DisconnectReconciler) OnDisconnect(ctx context.Context, connID, userID string) {
	safe.Run("reconcile connection record", func() {
		if err := r.presence.Delete(ctx, storage.ConnectionKey(connID)); err != nil {
			logger.Errorf("[reconcile] delete connection conn=%s: %v", connID, err)
		}
		if err := r.presence.RemoveFromSet(ctx, storage.UserConnectionsKey(userID), connID); err != nil {
			logger.Errorf("[reconcile] drop connection from user set conn=%s user=%s: %v", connID, userID, err)
		}
	})

	safe.Run("reconcile typing", func() {
		r.typing.CancelAll(ctx, connID, userID)
	})

	remaining, err := r.liveConnectionCount(ctx, userID)
	if err != nil {
		logger.Errorf("[reconcile] connection count user=%s: %v", userID, err)
		return
	}
	if remaining > 0 {
		// Another device is still online; chat presence stays.
		return
	}

	safe.Run("reconcile chat memberships", func() {
		r.cleanupChats(ctx, userID)
	})
}

// liveConnectionCount counts the user's connections whose owner mapping
// is still alive. The set members carry no TTL of their own, so entries
// left behind by a dead gateway node are pruned here against the TTL'd
// connection keys; otherwise they would hold the user "online" forever.
func (r *DisconnectReconciler) liveConnectionCount(ctx context.Context, userID string) (int64, error) {
	conns, err := r.presence.Members(ctx, storage.UserConnectionsKey(userID))
	if err != nil {
		return 0, err
	}
	var live int64
	for _, connID := range conns {
		_, ok, err := r.presence.Get(ctx, storage.ConnectionKey(connID))
		if err != nil {
			return 0, err
		}
		if ok {
			live++
			continue
		}
		if err := r.presence.RemoveFromSet(ctx, storage.UserConnectionsKey(userID), connID); err != nil {
			logger.Errorf("[reconcile] prune stale connection conn=%s user=%s: %v", connID, userID, err)
		}
	}
	return live, nil
}

func (r *DisconnectReconciler) cleanupChats(ctx context.Context, userID string) {
	chats, err := r.presence.Members(ctx, storage.UserChatsKey(userID))
	if err != nil {
		logger.Errorf("[reconcile] list chats user=%s: %v", userID, err)
		return
	}
	for _, chatID := range chats {
		r.out.ToRoom(ctx, chatID, userID,
			BuildFrame(EventUserOffline, RoomUserPayload{UserID: userID, ChatID: chatID}))
		if err := r.presence.RemoveFromSet(ctx, storage.ChatUsersKey(chatID), userID); err != nil {
			logger.Errorf("[reconcile] leave chat chat=%s user=%s: %v", chatID, userID, err)
		}
	}
	if err := r.presence.RemoveAll(ctx, storage.UserChatsKey(userID)); err != nil {
		logger.Errorf("[reconcile] clear chat index user=%s: %v", userID, err)
	}
}
