package chat

import (
	chatmodel "TransitChat/module/chat/model"
	"TransitChat/module/chat/message"
	"TransitChat/tools/security"
	"context"
	"encoding/json"
)

// Handler processes one client command frame. Handlers are registered
// on the Dispatcher by event name.
type Handler interface {
	Event() string
	Handle(ctx context.Context, c *Client, data json.RawMessage) error
}

// Collaborator interfaces. Production wiring uses the mongo stores in
// module/...; tests substitute in-memory fakes.

type ConversationStore interface {
	FindConversation(ctx context.Context, chatID string) (*chatmodel.Conversation, error)
}

type MessageStore interface {
	FindOutstanding(ctx context.Context, chatID, recipientID string) ([]chatmodel.MessageModel, error)
	UpdateDeliveryStatus(ctx context.Context, messageID string, next message.DeliveryStatus) (bool, error)
	MarkChatAsRead(ctx context.Context, chatID, userID string) (int64, error)
	UnreadCount(ctx context.Context, chatID, userID string) (int64, error)
	TotalUnreadCount(ctx context.Context, userID string) (int64, error)
}

type NotificationStore interface {
	MarkChatNotificationsAsRead(ctx context.Context, chatID, userID string) error
}

type MessageSender interface {
	Execute(ctx context.Context, req message.SendRequest, senderID string) (*message.MessageDTO, error)
}

type Verifier interface {
	Verify(token string) (*security.Claims, error)
}

// UserRelay mirrors per-user frames to other gateway nodes. Optional;
// nil disables cross-node fan-out.
type UserRelay interface {
	PublishUser(userID string, frame []byte)
}
