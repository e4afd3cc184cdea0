package model

const NotificationTableName = "notification"

// Notification is a chat-scoped alert row. The engine only flips
// is_read when the owner joins the chat; creation belongs to the
// notification use cases outside this core.
type Notification struct {
	NotificationID string `bson:"notification_id"`
	UserID         string `bson:"user_id"`
	ChatID         string `bson:"chat_id"`
	Body           string `bson:"body"`
	IsRead         bool   `bson:"is_read"`
	CreateTime     int64  `bson:"create_time"` // unix ms
}

func (*Notification) TableName() string { return NotificationTableName }
