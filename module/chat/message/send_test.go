package message

import (
	chatmodel "TransitChat/module/chat/model"
	"TransitChat/service/storage"
	"TransitChat/tools/errs"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConvs struct {
	conv *chatmodel.Conversation
}

func (s *stubConvs) FindConversation(_ context.Context, chatID string) (*chatmodel.Conversation, error) {
	if s.conv != nil && s.conv.ChatID == chatID {
		return s.conv, nil
	}
	return nil, nil
}

func (s *stubConvs) FindConversationByContext(_ context.Context, contextType, contextID string) (*chatmodel.Conversation, error) {
	if s.conv != nil && s.conv.ContextType == contextType && s.conv.ContextID == contextID {
		return s.conv, nil
	}
	return nil, nil
}

type stubWriter struct {
	inserted []*chatmodel.MessageModel
}

func (s *stubWriter) InsertMessage(_ context.Context, m *chatmodel.MessageModel) error {
	s.inserted = append(s.inserted, m)
	return nil
}

func (s *stubWriter) UpdateDeliveryStatus(_ context.Context, messageID string, next DeliveryStatus) (bool, error) {
	for _, m := range s.inserted {
		if m.MessageID != messageID {
			continue
		}
		cur, err := ParseDeliveryStatus(m.DeliveryStatus)
		if err != nil {
			return false, err
		}
		if !cur.CanTransitionTo(next) {
			return false, nil
		}
		m.DeliveryStatus = next.String()
		return true, nil
	}
	return false, nil
}

func rideConv() *chatmodel.Conversation {
	return &chatmodel.Conversation{
		ChatID:       "chat-1",
		Participants: []string{"driver-1", "rider-1"},
		ContextType:  "reservation",
		ContextID:    "res-42",
		CreateTime:   time.Now().UnixMilli(),
	}
}

func TestExecutePersistsWithDenormalizedRecipient(t *testing.T) {
	convs := &stubConvs{conv: rideConv()}
	writer := &stubWriter{}
	uc := NewSendUseCase(convs, writer, storage.NewMemoryPresence())

	dto, err := uc.Execute(context.Background(), SendRequest{ChatID: "chat-1", Content: "hi"}, "driver-1")
	require.NoError(t, err)

	require.Len(t, writer.inserted, 1)
	stored := writer.inserted[0]
	assert.NotEmpty(t, stored.MessageID)
	assert.Equal(t, "rider-1", stored.RecipientID)
	assert.Equal(t, "driver-1", stored.SenderID)

	assert.Equal(t, stored.MessageID, dto.MessageID)
	assert.Equal(t, "sent", dto.DeliveryStatus)
}

func TestExecuteImmediateDeliveryWhenRecipientViewing(t *testing.T) {
	convs := &stubConvs{conv: rideConv()}
	writer := &stubWriter{}
	presence := storage.NewMemoryPresence()
	require.NoError(t, presence.AddToSet(context.Background(), storage.ChatUsersKey("chat-1"), "rider-1"))

	uc := NewSendUseCase(convs, writer, presence)
	dto, err := uc.Execute(context.Background(), SendRequest{ChatID: "chat-1", Content: "hi"}, "driver-1")
	require.NoError(t, err)

	assert.Equal(t, "delivered", dto.DeliveryStatus)
	assert.Equal(t, "delivered", writer.inserted[0].DeliveryStatus)
}

func TestExecuteResolvesByBookingContext(t *testing.T) {
	convs := &stubConvs{conv: rideConv()}
	uc := NewSendUseCase(convs, &stubWriter{}, storage.NewMemoryPresence())

	dto, err := uc.Execute(context.Background(),
		SendRequest{ContextType: "reservation", ContextID: "res-42", Content: "hi"}, "rider-1")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", dto.ChatID)
	assert.Equal(t, "driver-1", dto.RecipientID)
}

func TestExecuteValidation(t *testing.T) {
	convs := &stubConvs{conv: rideConv()}
	uc := NewSendUseCase(convs, &stubWriter{}, storage.NewMemoryPresence())
	ctx := context.Background()

	_, err := uc.Execute(ctx, SendRequest{ChatID: "chat-1", Content: "  "}, "driver-1")
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)

	_, err = uc.Execute(ctx, SendRequest{Content: "hi"}, "driver-1")
	assert.ErrorIs(t, err, errs.ErrInvalidRequest)

	_, err = uc.Execute(ctx, SendRequest{ChatID: "missing", Content: "hi"}, "driver-1")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = uc.Execute(ctx, SendRequest{ChatID: "chat-1", Content: "hi"}, "intruder")
	assert.ErrorIs(t, err, errs.ErrForbidden)
}
