package chat

import (
	"TransitChat/logger"
	"TransitChat/service/storage"
	"context"
	"sync"
	"time"
)

// TypingIndicatorCoordinator keeps the transient typing flags. The flag
// itself lives in the presence store with a short TTL; a local timer per
// (connection, chat) makes sure the stopped broadcast goes out even when
// the client never sends an explicit stop.
type TypingIndicatorCoordinator struct {
	presence storage.Presence
	out      *Fanout
	ttl      time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer // connID + "\x00" + chatID
}

func NewTypingIndicatorCoordinator(presence storage.Presence, out *Fanout, ttl time.Duration) *TypingIndicatorCoordinator {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &TypingIndicatorCoordinator{
		presence: presence,
		out:      out,
		ttl:      ttl,
		timers:   make(map[string]*time.Timer),
	}
}

func timerKey(connID, chatID string) string { return connID + "\x00" + chatID }

// StartTyping refreshes the flag and the expiry timer. Repeated starts
// while already typing just push the deadline out; the room only hears
// about it once per keystroke burst because clients throttle sends.
func (t *TypingIndicatorCoordinator) StartTyping(ctx context.Context, c *Client, chatID string) error {
	key := storage.TypingKey(chatID, c.UserID)
	if err := t.presence.SetWithExpiry(ctx, key, c.ConnID, t.ttl); err != nil {
		return err
	}

	t.mu.Lock()
	tk := timerKey(c.ConnID, chatID)
	if prev, ok := t.timers[tk]; ok {
		prev.Stop()
	}
	t.timers[tk] = time.AfterFunc(t.ttl, func() {
		t.expire(c.ConnID, c.UserID, chatID)
	})
	t.mu.Unlock()

	t.out.ToRoom(ctx, chatID, c.UserID,
		BuildFrame(EventTyping, RoomUserPayload{UserID: c.UserID, ChatID: chatID}))
	return nil
}

// StopTyping clears the flag explicitly. The delete is owner-checked so
// a stale stop from one device cannot kill an indicator a newer device
// of the same user just set.
func (t *TypingIndicatorCoordinator) StopTyping(ctx context.Context, c *Client, chatID string) error {
	t.mu.Lock()
	tk := timerKey(c.ConnID, chatID)
	if prev, ok := t.timers[tk]; ok {
		prev.Stop()
		delete(t.timers, tk)
	}
	t.mu.Unlock()

	cleared, err := t.clearIfOwner(ctx, c.ConnID, c.UserID, chatID)
	if err != nil {
		return err
	}
	if cleared {
		t.out.ToRoom(ctx, chatID, c.UserID,
			BuildFrame(EventTypingStopped, RoomUserPayload{UserID: c.UserID, ChatID: chatID}))
	}
	return nil
}

// CancelAll drops every pending timer owned by the connection and fires
// the stopped broadcast for each chat it was typing in. Used on
// disconnect.
func (t *TypingIndicatorCoordinator) CancelAll(ctx context.Context, connID, userID string) {
	prefix := connID + "\x00"

	t.mu.Lock()
	var chats []string
	for tk, timer := range t.timers {
		if len(tk) > len(prefix) && tk[:len(prefix)] == prefix {
			timer.Stop()
			delete(t.timers, tk)
			chats = append(chats, tk[len(prefix):])
		}
	}
	t.mu.Unlock()

	for _, chatID := range chats {
		cleared, err := t.clearIfOwner(ctx, connID, userID, chatID)
		if err != nil {
			logger.Errorf("[typing] cancel conn=%s chat=%s: %v", connID, chatID, err)
			continue
		}
		if cleared {
			t.out.ToRoom(ctx, chatID, userID,
				BuildFrame(EventTypingStopped, RoomUserPayload{UserID: userID, ChatID: chatID}))
		}
	}
}

// IsTyping reports whether the user currently has a live typing flag in
// the chat, from any of their connections.
func (t *TypingIndicatorCoordinator) IsTyping(ctx context.Context, chatID, userID string) (bool, error) {
	_, ok, err := t.presence.Get(ctx, storage.TypingKey(chatID, userID))
	if err != nil {
		return false, err
	}
	return ok, nil
}

// expire runs when the local timer fires without an explicit stop.
func (t *TypingIndicatorCoordinator) expire(connID, userID, chatID string) {
	t.mu.Lock()
	delete(t.timers, timerKey(connID, chatID))
	t.mu.Unlock()

	ctx := context.Background()
	cleared, err := t.clearIfOwner(ctx, connID, userID, chatID)
	if err != nil {
		logger.Errorf("[typing] expire conn=%s chat=%s: %v", connID, chatID, err)
		return
	}
	if cleared {
		t.out.ToRoom(ctx, chatID, userID,
			BuildFrame(EventTypingStopped, RoomUserPayload{UserID: userID, ChatID: chatID}))
	}
}

func (t *TypingIndicatorCoordinator) clearIfOwner(ctx context.Context, connID, userID, chatID string) (bool, error) {
	key := storage.TypingKey(chatID, userID)
	owner, ok, err := t.presence.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		// TTL already reaped it; the indicator is gone either way.
		return true, nil
	}
	if owner != connID {
		return false, nil
	}
	if err := t.presence.Delete(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}
