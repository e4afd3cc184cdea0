package chat

import (
	"TransitChat/module/chat/message"
	"TransitChat/tools/errs"
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// Command handlers. Each one unmarshals its payload, delegates to a
// coordinator, and lets the read loop translate returned errors into an
// error frame for the issuing connection.

type joinChatHandler struct {
	presence *PresenceCoordinator
}

func (h *joinChatHandler) Event() string { return EventJoinChat }

func (h *joinChatHandler) Handle(ctx context.Context, c *Client, data json.RawMessage) error {
	var p ChatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errs.ErrInvalidRequest.WithDetail(err.Error())
	}
	return h.presence.JoinChat(ctx, c, p.ChatID)
}

type leaveChatHandler struct {
	presence *PresenceCoordinator
}

func (h *leaveChatHandler) Event() string { return EventLeaveChat }

func (h *leaveChatHandler) Handle(ctx context.Context, c *Client, data json.RawMessage) error {
	var p ChatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errs.ErrInvalidRequest.WithDetail(err.Error())
	}
	return h.presence.LeaveChat(ctx, c, p.ChatID)
}

type typingStartHandler struct {
	typing *TypingIndicatorCoordinator
}

func (h *typingStartHandler) Event() string { return EventTypingStart }

func (h *typingStartHandler) Handle(ctx context.Context, c *Client, data json.RawMessage) error {
	var p ChatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errs.ErrInvalidRequest.WithDetail(err.Error())
	}
	if p.ChatID == "" {
		return errs.ErrInvalidRequest.WithDetail("chatId is required")
	}
	return h.typing.StartTyping(ctx, c, p.ChatID)
}

type typingStopHandler struct {
	typing *TypingIndicatorCoordinator
}

func (h *typingStopHandler) Event() string { return EventTypingStop }

func (h *typingStopHandler) Handle(ctx context.Context, c *Client, data json.RawMessage) error {
	var p ChatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errs.ErrInvalidRequest.WithDetail(err.Error())
	}
	if p.ChatID == "" {
		return errs.ErrInvalidRequest.WithDetail("chatId is required")
	}
	return h.typing.StopTyping(ctx, c, p.ChatID)
}

type sendMessageHandler struct {
	sender MessageSender
	agg    *UnreadCountAggregator
	out    *Fanout
}

func newSendMessageHandler(sender MessageSender, agg *UnreadCountAggregator, out *Fanout) *sendMessageHandler {
	return &sendMessageHandler{sender: sender, agg: agg, out: out}
}

func (h *sendMessageHandler) Event() string { return EventSendMessage }

// Handle persists the message and pushes message-sent to everyone in
// the room plus all of the sender's own devices. When the recipient was
// already viewing, the sender additionally gets the immediate
// message-delivered receipt.
func (h *sendMessageHandler) Handle(ctx context.Context, c *Client, data json.RawMessage) error {
	var req message.SendRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errs.ErrInvalidRequest.WithDetail(err.Error())
	}

	dto, err := h.sender.Execute(ctx, req, c.UserID)
	if err != nil {
		return err
	}

	frame := BuildFrame(EventMessageSent, dto)
	h.out.ToRoom(ctx, dto.ChatID, c.UserID, frame)
	h.out.ToUser(ctx, c.UserID, frame)

	if dto.DeliveryStatus == message.StatusDelivered.String() {
		h.out.ToUser(ctx, c.UserID, BuildFrame(EventMessageDelivered, MessageDeliveredPayload{
			MessageID: dto.MessageID,
			ChatID:    dto.ChatID,
		}))
	}

	h.agg.Emit(ctx, dto.ChatID, c.UserID)
	return nil
}

type markAsReadHandler struct {
	delivery *DeliveryTracker
	msgs     MessageStore
	unread   *UnreadCountAggregator
	out      *Fanout
}

func (h *markAsReadHandler) Event() string { return EventMarkAsRead }

// Handle is idempotent: when nothing actually changed the room hears
// nothing, but the acting user still gets their unread frame back as an
// acknowledgement.
func (h *markAsReadHandler) Handle(ctx context.Context, c *Client, data json.RawMessage) error {
	var p ChatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errs.ErrInvalidRequest.WithDetail(err.Error())
	}
	if p.ChatID == "" {
		return errs.ErrInvalidRequest.WithDetail("chatId is required")
	}

	remaining, changed, err := h.delivery.MarkChatAsRead(ctx, p.ChatID, c.UserID)
	if err != nil {
		return errors.Wrap(err, "mark chat as read")
	}
	if changed > 0 {
		h.out.ToRoom(ctx, p.ChatID, c.UserID,
			BuildFrame(EventMessageRead, MessageReadPayload{ChatID: p.ChatID, ReadBy: c.UserID}))
		h.unread.Emit(ctx, p.ChatID, c.UserID)
		return nil
	}

	total, err := h.msgs.TotalUnreadCount(ctx, c.UserID)
	if err != nil {
		return errors.Wrap(err, "total unread")
	}
	h.out.ToUser(ctx, c.UserID, BuildFrame(EventUnreadCount, UnreadPayload{
		ChatID:           p.ChatID,
		UnreadCount:      remaining,
		TotalUnreadCount: total,
	}))
	return nil
}
