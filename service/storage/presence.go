package storage

import (
	"context"
	"time"
)

// Presence is the ephemeral coordination store: TTL-capable key/value
// plus sets, atomic at single-key granularity. The engine never needs a
// multi-key transaction on top of it. Two implementations satisfy the
// contract: redis (production) and an in-process map store (tests).
type Presence interface {
	AddToSet(ctx context.Context, key, member string) error
	RemoveFromSet(ctx context.Context, key, member string) error
	Members(ctx context.Context, key string) ([]string, error)
	IsMember(ctx context.Context, key, member string) (bool, error)
	Cardinality(ctx context.Context, key string) (int64, error)
	RemoveAll(ctx context.Context, key string) error

	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// Presence key namespace. Both sides of the chat<->user membership pair
// go through these helpers; nothing else may spell the keys out.
//
//	chat:{chatId}:users          set of user ids viewing the chat
//	user:{userId}:chats          set of chat ids the user is viewing
//	connection:{connId}          owner user id of a live connection
//	user:{userId}:connections    set of the user's live connection ids
//	chat:{chatId}:typing:{userId} typing marker, short TTL

func ChatUsersKey(chatID string) string { return "chat:" + chatID + ":users" }

func UserChatsKey(userID string) string { return "user:" + userID + ":chats" }

func ConnectionKey(connID string) string { return "connection:" + connID }

func UserConnectionsKey(userID string) string { return "user:" + userID + ":connections" }

func TypingKey(chatID, userID string) string { return "chat:" + chatID + ":typing:" + userID }
