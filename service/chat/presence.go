package chat

import (
	"TransitChat/logger"
	"TransitChat/service/storage"
	"TransitChat/tools/errs"
	"TransitChat/tools/safe"
	"context"
)

// PresenceCoordinator owns join/leave semantics. The chat->users and
// user->chats sets are a pair: every mutation here touches both sides,
// and nothing outside this file (or the disconnect reconciler) may
// touch either.
type PresenceCoordinator struct {
	presence storage.Presence
	convs    ConversationStore
	delivery *DeliveryTracker
	notifs   NotificationStore
	unread   *UnreadCountAggregator
	out      *Fanout
}

func NewPresenceCoordinator(
	presence storage.Presence,
	convs ConversationStore,
	delivery *DeliveryTracker,
	notifs NotificationStore,
	unread *UnreadCountAggregator,
	out *Fanout,
) *PresenceCoordinator {
	return &PresenceCoordinator{
		presence: presence,
		convs:    convs,
		delivery: delivery,
		notifs:   notifs,
		unread:   unread,
		out:      out,
	}
}

// JoinChat authorizes and registers the user as viewing the chat, then
// runs the delivery-upgrade sweep and the best-effort catch-up side
// effects. Failures of the best-effort steps are logged and never roll
// back the join.
func (p *PresenceCoordinator) JoinChat(ctx context.Context, c *Client, chatID string) error {
	if chatID == "" {
		return errs.ErrInvalidRequest.WithDetail("chatId is required")
	}

	conv, err := p.convs.FindConversation(ctx, chatID)
	if err != nil {
		return err
	}
	if conv == nil {
		return errs.ErrNotFound.WithDetail("chat " + chatID)
	}
	if !conv.HasParticipant(c.UserID) {
		return errs.ErrForbidden.WithDetail("not a participant of chat " + chatID)
	}

	if err := p.register(ctx, c.UserID, chatID); err != nil {
		return err
	}

	p.out.ToConn(c.ConnID, BuildFrame(EventChatJoined, ChatPayload{ChatID: chatID}))

	safe.Run("delivery sweep", func() {
		if err := p.delivery.SweepDelivered(ctx, chatID, c.UserID); err != nil {
			logger.Errorf("[presence] delivery sweep chat=%s user=%s: %v", chatID, c.UserID, err)
		}
	})

	p.out.ToRoom(ctx, chatID, c.UserID,
		BuildFrame(EventUserOnline, RoomUserPayload{UserID: c.UserID, ChatID: chatID}))

	safe.Run("auto mark read", func() {
		_, changed, err := p.delivery.MarkChatAsRead(ctx, chatID, c.UserID)
		if err != nil {
			logger.Errorf("[presence] auto mark read chat=%s user=%s: %v", chatID, c.UserID, err)
			return
		}
		if changed > 0 {
			p.out.ToRoom(ctx, chatID, c.UserID,
				BuildFrame(EventMessageRead, MessageReadPayload{ChatID: chatID, ReadBy: c.UserID}))
			p.unread.Emit(ctx, chatID, c.UserID)
		}
	})

	safe.Run("clear notifications", func() {
		if err := p.notifs.MarkChatNotificationsAsRead(ctx, chatID, c.UserID); err != nil {
			logger.Errorf("[presence] clear notifications chat=%s user=%s: %v", chatID, c.UserID, err)
		}
	})

	return nil
}

// LeaveChat deregisters presence. No authorization re-check: removing
// an absent membership is harmless.
func (p *PresenceCoordinator) LeaveChat(ctx context.Context, c *Client, chatID string) error {
	if chatID == "" {
		return errs.ErrInvalidRequest.WithDetail("chatId is required")
	}

	if err := p.deregister(ctx, c.UserID, chatID); err != nil {
		return err
	}

	p.out.ToConn(c.ConnID, BuildFrame(EventChatLeft, ChatPayload{ChatID: chatID}))
	p.out.ToRoom(ctx, chatID, c.UserID,
		BuildFrame(EventUserOffline, RoomUserPayload{UserID: c.UserID, ChatID: chatID}))
	return nil
}

// register adds both sides of the membership pair. If the second write
// fails the first is undone so no dangling half-entry survives.
func (p *PresenceCoordinator) register(ctx context.Context, userID, chatID string) error {
	if err := p.presence.AddToSet(ctx, storage.ChatUsersKey(chatID), userID); err != nil {
		return err
	}
	if err := p.presence.AddToSet(ctx, storage.UserChatsKey(userID), chatID); err != nil {
		if rbErr := p.presence.RemoveFromSet(ctx, storage.ChatUsersKey(chatID), userID); rbErr != nil {
			logger.Errorf("[presence] rollback chat membership chat=%s user=%s: %v", chatID, userID, rbErr)
		}
		return err
	}
	return nil
}

func (p *PresenceCoordinator) deregister(ctx context.Context, userID, chatID string) error {
	err1 := p.presence.RemoveFromSet(ctx, storage.ChatUsersKey(chatID), userID)
	err2 := p.presence.RemoveFromSet(ctx, storage.UserChatsKey(userID), chatID)
	if err1 != nil {
		return err1
	}
	return err2
}
