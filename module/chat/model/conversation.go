package model

const ConversationTableName = "conversation"

// Conversation is a two-party chat thread hung off a booking-domain
// context (reservation, quote, ...). Read-only for the realtime engine:
// it only authorizes joins and resolves the peer.
type Conversation struct {
	ChatID       string   `bson:"chat_id"`
	Participants []string `bson:"participants"` // exactly two user ids
	ContextType  string   `bson:"context_type"` // e.g. "reservation", "quote"
	ContextID    string   `bson:"context_id"`
	CreateTime   int64    `bson:"create_time"` // unix ms
}

func (*Conversation) TableName() string { return ConversationTableName }

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant resolves the peer of userID. Second return is false
// when userID is not a participant.
func (c *Conversation) OtherParticipant(userID string) (string, bool) {
	if !c.HasParticipant(userID) {
		return "", false
	}
	for _, p := range c.Participants {
		if p != userID {
			return p, true
		}
	}
	return "", false
}
