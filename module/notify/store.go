package notify

import (
	chatmodel "TransitChat/module/chat/model"
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store clears chat-scoped notifications when their owner joins the
// chat. Creation and listing live with the notification use cases
// outside the realtime core.
type Store struct {
	Coll *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	n := chatmodel.Notification{}
	return &Store{Coll: db.Collection(n.TableName())}
}

func (s *Store) MarkChatNotificationsAsRead(ctx context.Context, chatID, userID string) error {
	_, err := s.Coll.UpdateMany(ctx, bson.M{
		"chat_id": chatID,
		"user_id": userID,
		"is_read": false,
	}, bson.M{"$set": bson.M{"is_read": true}})
	return errors.Wrapf(err, "mark notifications read %s", chatID)
}
