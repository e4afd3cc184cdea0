package message

import (
	chatmodel "TransitChat/module/chat/model"
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the durable side of the delivery-state machine. Every write
// is a single-document update whose filter carries the monotonicity
// guard, so concurrent sweeps/reads settle without transactions.
type Store struct {
	ConvColl *mongo.Collection
	MsgColl  *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	conv := chatmodel.Conversation{}
	msg := chatmodel.MessageModel{}
	return &Store{
		ConvColl: db.Collection(conv.TableName()),
		MsgColl:  db.Collection(msg.TableName()),
	}
}

// FindConversation returns (nil, nil) when the chat does not exist.
func (s *Store) FindConversation(ctx context.Context, chatID string) (*chatmodel.Conversation, error) {
	var c chatmodel.Conversation
	err := s.ConvColl.FindOne(ctx, bson.M{"chat_id": chatID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find conversation %s", chatID)
	}
	return &c, nil
}

// FindConversationByContext resolves a chat from its booking context,
// for send-message requests that carry (contextType, contextId) instead
// of a chat id.
func (s *Store) FindConversationByContext(ctx context.Context, contextType, contextID string) (*chatmodel.Conversation, error) {
	var c chatmodel.Conversation
	err := s.ConvColl.FindOne(ctx, bson.M{
		"context_type": contextType,
		"context_id":   contextID,
	}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find conversation by context %s/%s", contextType, contextID)
	}
	return &c, nil
}

func (s *Store) FindByChatID(ctx context.Context, chatID string) ([]chatmodel.MessageModel, error) {
	cur, err := s.MsgColl.Find(ctx, bson.M{"chat_id": chatID},
		options.Find().SetSort(bson.M{"create_time": 1}))
	if err != nil {
		return nil, errors.Wrapf(err, "find messages %s", chatID)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []chatmodel.MessageModel
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrapf(err, "decode messages %s", chatID)
	}
	return out, nil
}

// FindOutstanding lists messages addressed to recipientID that are
// still only "sent". Indexed variant of the full-chat scan the join
// sweep needs; semantics are identical.
func (s *Store) FindOutstanding(ctx context.Context, chatID, recipientID string) ([]chatmodel.MessageModel, error) {
	cur, err := s.MsgColl.Find(ctx, bson.M{
		"chat_id":         chatID,
		"recipient_id":    recipientID,
		"delivery_status": StatusSent.String(),
	}, options.Find().SetSort(bson.M{"create_time": 1}))
	if err != nil {
		return nil, errors.Wrapf(err, "find outstanding %s", chatID)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []chatmodel.MessageModel
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrapf(err, "decode outstanding %s", chatID)
	}
	return out, nil
}

func (s *Store) InsertMessage(ctx context.Context, m *chatmodel.MessageModel) error {
	_, err := s.MsgColl.InsertOne(ctx, m)
	return errors.Wrapf(err, "insert message %s", m.MessageID)
}

// UpdateDeliveryStatus advances one message to next. The filter admits
// only strictly lower current statuses, so re-applying a transition (or
// racing another sweep) modifies nothing and returns false.
func (s *Store) UpdateDeliveryStatus(ctx context.Context, messageID string, next DeliveryStatus) (bool, error) {
	set := bson.M{"delivery_status": next.String()}
	res, err := s.MsgColl.UpdateOne(ctx, bson.M{
		"message_id":      messageID,
		"delivery_status": bson.M{"$in": lowerStatuses(next)},
	}, bson.M{"$set": set})
	if err != nil {
		return false, errors.Wrapf(err, "update delivery status %s", messageID)
	}
	return res.ModifiedCount > 0, nil
}

// MarkChatAsRead flips every not-yet-read message addressed to userID
// in the chat to read, stamping read_at/read_by. Returns how many
// documents actually changed; zero means the chat was already fully
// read, which is a success.
func (s *Store) MarkChatAsRead(ctx context.Context, chatID, userID string) (int64, error) {
	res, err := s.MsgColl.UpdateMany(ctx, bson.M{
		"chat_id":         chatID,
		"recipient_id":    userID,
		"delivery_status": bson.M{"$ne": StatusRead.String()},
	}, bson.M{"$set": bson.M{
		"delivery_status": StatusRead.String(),
		"read_at":         time.Now().UnixMilli(),
		"read_by":         userID,
	}})
	if err != nil {
		return 0, errors.Wrapf(err, "mark chat read %s", chatID)
	}
	return res.ModifiedCount, nil
}

func (s *Store) UnreadCount(ctx context.Context, chatID, userID string) (int64, error) {
	n, err := s.MsgColl.CountDocuments(ctx, bson.M{
		"chat_id":         chatID,
		"recipient_id":    userID,
		"delivery_status": bson.M{"$ne": StatusRead.String()},
	})
	return n, errors.Wrapf(err, "unread count %s", chatID)
}

func (s *Store) TotalUnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.MsgColl.CountDocuments(ctx, bson.M{
		"recipient_id":    userID,
		"delivery_status": bson.M{"$ne": StatusRead.String()},
	})
	return n, errors.Wrapf(err, "total unread count %s", userID)
}
