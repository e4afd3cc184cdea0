package chat

import (
	"TransitChat/logger"
	"TransitChat/module/chat/model"
	"context"
)

// UnreadCountAggregator pushes badge counts to both participants of a
// chat after any read-state change. The counts are computed fresh from
// the message store on every emit, so a lost frame self-heals on the
// next change.
type UnreadCountAggregator struct {
	convs ConversationStore
	msgs  MessageStore
	out   *Fanout
}

func NewUnreadCountAggregator(convs ConversationStore, msgs MessageStore, out *Fanout) *UnreadCountAggregator {
	return &UnreadCountAggregator{convs: convs, msgs: msgs, out: out}
}

// Emit sends each participant their own view of the chat's unread count
// plus their account-wide total. actingUserID just read the chat, so
// their per-chat count is reported as zero without a query.
func (u *UnreadCountAggregator) Emit(ctx context.Context, chatID, actingUserID string) {
	conv, err := u.convs.FindConversation(ctx, chatID)
	if err != nil {
		logger.Errorf("[unread] resolve chat=%s: %v", chatID, err)
		return
	}
	if conv == nil {
		logger.Warnf("[unread] chat=%s no longer exists, skipping fan-out", chatID)
		return
	}

	total, err := u.msgs.TotalUnreadCount(ctx, actingUserID)
	if err != nil {
		logger.Errorf("[unread] total user=%s: %v", actingUserID, err)
	} else {
		u.out.ToUser(ctx, actingUserID, BuildFrame(EventUnreadCount, UnreadPayload{
			ChatID:           chatID,
			UnreadCount:      0,
			TotalUnreadCount: total,
		}))
	}

	for _, p := range conv.Participants {
		if p == actingUserID {
			continue
		}
		u.emitFor(ctx, conv, p)
	}
}

func (u *UnreadCountAggregator) emitFor(ctx context.Context, conv *model.Conversation, userID string) {
	perChat, err := u.msgs.UnreadCount(ctx, conv.ChatID, userID)
	if err != nil {
		logger.Errorf("[unread] chat=%s user=%s: %v", conv.ChatID, userID, err)
		return
	}
	total, err := u.msgs.TotalUnreadCount(ctx, userID)
	if err != nil {
		logger.Errorf("[unread] total user=%s: %v", userID, err)
		return
	}
	u.out.ToUser(ctx, userID, BuildFrame(EventUnreadCount, UnreadPayload{
		ChatID:           conv.ChatID,
		UnreadCount:      perChat,
		TotalUnreadCount: total,
	}))
}
