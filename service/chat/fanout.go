package chat

import (
	"TransitChat/logger"
	"TransitChat/service/storage"
	"context"
)

// Fanout resolves broadcast scopes to concrete connections. Room scope
// comes from the presence membership set, user scope from the local
// registry plus the optional cross-node relay.
type Fanout struct {
	presence storage.Presence
	conns    *ConnManager
	relay    UserRelay // may be nil
}

func NewFanout(presence storage.Presence, conns *ConnManager, relay UserRelay) *Fanout {
	return &Fanout{presence: presence, conns: conns, relay: relay}
}

func (f *Fanout) ToConn(connID string, frame []byte) {
	if frame == nil {
		return
	}
	f.conns.SendToConn(connID, frame)
}

// ToUser delivers to every device of the user, on this node and via the
// relay on every other node.
func (f *Fanout) ToUser(_ context.Context, userID string, frame []byte) {
	if frame == nil {
		return
	}
	f.conns.SendToUser(userID, frame)
	if f.relay != nil {
		f.relay.PublishUser(userID, frame)
	}
}

// DeliverLocal is the relay ingress: deliver only to this node's
// connections, never re-publish.
func (f *Fanout) DeliverLocal(userID string, frame []byte) {
	if frame == nil {
		return
	}
	f.conns.SendToUser(userID, frame)
}

// ToRoom delivers to every user presently viewing the chat, except
// exceptUserID when non-empty. Events land in handler-completion
// order; there is no cross-room ordering.
func (f *Fanout) ToRoom(ctx context.Context, chatID, exceptUserID string, frame []byte) {
	if frame == nil {
		return
	}
	members, err := f.presence.Members(ctx, storage.ChatUsersKey(chatID))
	if err != nil {
		logger.Errorf("[fanout] members chat=%s: %v", chatID, err)
		return
	}
	for _, uid := range members {
		if uid == exceptUserID {
			continue
		}
		f.ToUser(ctx, uid, frame)
	}
}
