package chat

import (
	"TransitChat/logger"
	"TransitChat/module/chat/message"
	"context"
)

// DeliveryTracker drives the sent -> delivered -> read progression.
// Every upgrade goes through the store's monotonic guard, so replays
// and races can only lose the CAS, never regress a status.
type DeliveryTracker struct {
	msgs MessageStore
	out  *Fanout
}

func NewDeliveryTracker(msgs MessageStore, out *Fanout) *DeliveryTracker {
	return &DeliveryTracker{msgs: msgs, out: out}
}

// SweepDelivered upgrades every message in the chat still sitting at
// SENT and addressed to recipientID, notifying each message's sender.
// Messages whose CAS loses (another node already upgraded them) are
// skipped without a notification, which keeps repeated joins quiet.
func (d *DeliveryTracker) SweepDelivered(ctx context.Context, chatID, recipientID string) error {
	outstanding, err := d.msgs.FindOutstanding(ctx, chatID, recipientID)
	if err != nil {
		return err
	}
	for _, m := range outstanding {
		changed, err := d.msgs.UpdateDeliveryStatus(ctx, m.MessageID, message.StatusDelivered)
		if err != nil {
			logger.Errorf("[delivery] upgrade msg=%s: %v", m.MessageID, err)
			continue
		}
		if !changed {
			continue
		}
		d.out.ToUser(ctx, m.SenderID,
			BuildFrame(EventMessageDelivered, MessageDeliveredPayload{
				MessageID: m.MessageID,
				ChatID:    chatID,
			}))
	}
	return nil
}

// MarkChatAsRead moves every message addressed to userID in the chat
// to READ. remaining is the pair's unread count after the update, which
// is zero on success; changed is how many documents actually moved, and
// zero changed means the command was a replay and callers should
// suppress their broadcasts.
func (d *DeliveryTracker) MarkChatAsRead(ctx context.Context, chatID, userID string) (remaining, changed int64, err error) {
	changed, err = d.msgs.MarkChatAsRead(ctx, chatID, userID)
	if err != nil {
		return 0, 0, err
	}
	remaining, err = d.msgs.UnreadCount(ctx, chatID, userID)
	if err != nil {
		return 0, changed, err
	}
	return remaining, changed, nil
}
