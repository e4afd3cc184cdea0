package message

import (
	chatmodel "TransitChat/module/chat/model"
	"TransitChat/service/storage"
	"TransitChat/tools/errs"
	"TransitChat/tools/ids"
	"context"
	"strings"
	"time"
)

// SendRequest addresses a message either by chat id or by the booking
// context the conversation hangs off.
type SendRequest struct {
	ChatID      string `json:"chatId,omitempty"`
	ContextType string `json:"contextType,omitempty"`
	ContextID   string `json:"contextId,omitempty"`
	Content     string `json:"content"`
}

// MessageDTO is what goes back over the push channel after a send.
type MessageDTO struct {
	MessageID      string `json:"messageId"`
	ChatID         string `json:"chatId"`
	SenderID       string `json:"senderId"`
	RecipientID    string `json:"recipientId"`
	Content        string `json:"content"`
	DeliveryStatus string `json:"deliveryStatus"`
	CreatedAt      int64  `json:"createdAt"`
}

// conversationResolver is the slice of Store the use case reads.
type conversationResolver interface {
	FindConversation(ctx context.Context, chatID string) (*chatmodel.Conversation, error)
	FindConversationByContext(ctx context.Context, contextType, contextID string) (*chatmodel.Conversation, error)
}

type messageWriter interface {
	InsertMessage(ctx context.Context, m *chatmodel.MessageModel) error
	UpdateDeliveryStatus(ctx context.Context, messageID string, next DeliveryStatus) (bool, error)
}

// SendUseCase creates a message and decides its truthful initial
// delivery state: when the recipient is presently viewing the chat the
// message is upgraded to delivered right away, instead of waiting for
// their next join sweep.
type SendUseCase struct {
	convs    conversationResolver
	msgs     messageWriter
	presence storage.Presence
}

func NewSendUseCase(convs conversationResolver, msgs messageWriter, presence storage.Presence) *SendUseCase {
	return &SendUseCase{convs: convs, msgs: msgs, presence: presence}
}

func (uc *SendUseCase) Execute(ctx context.Context, req SendRequest, senderID string) (*MessageDTO, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, errs.ErrInvalidRequest.WithDetail("content is empty")
	}

	var (
		conv *chatmodel.Conversation
		err  error
	)
	switch {
	case req.ChatID != "":
		conv, err = uc.convs.FindConversation(ctx, req.ChatID)
	case req.ContextType != "" && req.ContextID != "":
		conv, err = uc.convs.FindConversationByContext(ctx, req.ContextType, req.ContextID)
	default:
		return nil, errs.ErrInvalidRequest.WithDetail("chatId or contextType/contextId required")
	}
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errs.ErrNotFound.WithDetail("conversation not found")
	}

	recipient, ok := conv.OtherParticipant(senderID)
	if !ok {
		return nil, errs.ErrForbidden.WithDetail("sender is not a participant")
	}

	m := &chatmodel.MessageModel{
		MessageID:      ids.GenerateString(),
		ChatID:         conv.ChatID,
		SenderID:       senderID,
		RecipientID:    recipient,
		Content:        req.Content,
		DeliveryStatus: StatusSent.String(),
		CreateTime:     time.Now().UnixMilli(),
	}
	if err := uc.msgs.InsertMessage(ctx, m); err != nil {
		return nil, err
	}

	status := StatusSent
	viewing, err := uc.presence.IsMember(ctx, storage.ChatUsersKey(conv.ChatID), recipient)
	if err == nil && viewing {
		if ok, err := uc.msgs.UpdateDeliveryStatus(ctx, m.MessageID, StatusDelivered); err == nil && ok {
			status = StatusDelivered
		}
	}

	return &MessageDTO{
		MessageID:      m.MessageID,
		ChatID:         m.ChatID,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		Content:        m.Content,
		DeliveryStatus: status.String(),
		CreatedAt:      m.CreateTime,
	}, nil
}
