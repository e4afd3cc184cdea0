package model

const MsgTableName = "message"

// MessageModel is one chat message document. The realtime engine only
// ever mutates delivery_status (plus the read stamp pair); content and
// routing fields are written once by the send use case.
type MessageModel struct {
	MessageID string `bson:"message_id"` // snowflake, server-assigned
	ChatID    string `bson:"chat_id"`
	SenderID  string `bson:"sender_id"`
	// RecipientID is denormalized from the conversation's other
	// participant at send time so unread counts and delivery sweeps are
	// single-collection queries.
	RecipientID string `bson:"recipient_id"`
	Content     string `bson:"content"`

	DeliveryStatus string `bson:"delivery_status"` // sent / delivered / read
	CreateTime     int64  `bson:"create_time"`     // unix ms
	ReadAt         int64  `bson:"read_at,omitempty"`
	ReadBy         string `bson:"read_by,omitempty"`
}

func (*MessageModel) TableName() string { return MsgTableName }
