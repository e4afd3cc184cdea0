package chat

import (
	"TransitChat/logger"
	"encoding/json"

	"github.com/pkg/errors"
)

// Push-channel event names. Client-to-server commands on the left half,
// server-originated events on the right.
const (
	EventJoinChat    = "join-chat"
	EventLeaveChat   = "leave-chat"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
	EventSendMessage = "send-message"
	EventMarkAsRead  = "mark-as-read"

	EventChatJoined       = "chat-joined"
	EventChatLeft         = "chat-left"
	EventUserOnline       = "user-online"
	EventUserOffline      = "user-offline"
	EventTyping           = "typing"
	EventTypingStopped    = "typing-stopped"
	EventMessageSent      = "message-sent"
	EventMessageDelivered = "message-delivered"
	EventMessageRead      = "message-read"
	EventUnreadCount      = "unread-count-updated"
	EventError            = "error"
)

// Frame is the JSON envelope for every frame in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(err, "unmarshal frame")
	}
	if f.Event == "" {
		return nil, errors.New("frame missing event")
	}
	return &f, nil
}

// BuildFrame marshals a server-originated frame. Payload types are all
// plain structs, so a marshal failure is a programming error; it is
// logged and yields nil, which sends nothing.
func BuildFrame(event string, payload any) []byte {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			logger.Errorf("[frames] marshal %s payload: %v", event, err)
			return nil
		}
		data = b
	}
	b, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		logger.Errorf("[frames] marshal %s frame: %v", event, err)
		return nil
	}
	return b
}

// ---- payloads ----

type ChatPayload struct {
	ChatID string `json:"chatId"`
}

type RoomUserPayload struct {
	UserID string `json:"userId"`
	ChatID string `json:"chatId"`
}

type MessageDeliveredPayload struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

type MessageReadPayload struct {
	ChatID string `json:"chatId"`
	ReadBy string `json:"readBy"`
}

type UnreadPayload struct {
	ChatID           string `json:"chatId"`
	UnreadCount      int64  `json:"unreadCount"`
	TotalUnreadCount int64  `json:"totalUnreadCount"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
