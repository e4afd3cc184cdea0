package chat

import (
	chatmodel "TransitChat/module/chat/model"
	"TransitChat/module/chat/message"
	"TransitChat/service/storage"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// In-memory fakes mirroring the mongo store semantics, shared by the
// coordinator tests in this package.

type fakeConvs struct {
	mu    sync.Mutex
	convs map[string]*chatmodel.Conversation
}

func newFakeConvs(convs ...*chatmodel.Conversation) *fakeConvs {
	f := &fakeConvs{convs: make(map[string]*chatmodel.Conversation)}
	for _, c := range convs {
		f.convs[c.ChatID] = c
	}
	return f
}

func (f *fakeConvs) FindConversation(_ context.Context, chatID string) (*chatmodel.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.convs[chatID], nil
}

func (f *fakeConvs) FindConversationByContext(_ context.Context, contextType, contextID string) (*chatmodel.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.convs {
		if c.ContextType == contextType && c.ContextID == contextID {
			return c, nil
		}
	}
	return nil, nil
}

type fakeMsgs struct {
	mu   sync.Mutex
	msgs []*chatmodel.MessageModel
}

func newFakeMsgs(msgs ...*chatmodel.MessageModel) *fakeMsgs {
	return &fakeMsgs{msgs: msgs}
}

func (f *fakeMsgs) InsertMessage(_ context.Context, m *chatmodel.MessageModel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeMsgs) FindOutstanding(_ context.Context, chatID, recipientID string) ([]chatmodel.MessageModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chatmodel.MessageModel
	for _, m := range f.msgs {
		if m.ChatID == chatID && m.RecipientID == recipientID && m.DeliveryStatus == message.StatusSent.String() {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreateTime < out[j].CreateTime })
	return out, nil
}

func (f *fakeMsgs) UpdateDeliveryStatus(_ context.Context, messageID string, next message.DeliveryStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.MessageID != messageID {
			continue
		}
		cur, err := message.ParseDeliveryStatus(m.DeliveryStatus)
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

func (f *fakeMsgs) MarkChatAsRead(_ context.Context, chatID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.msgs {
		if m.ChatID == chatID && m.RecipientID == userID && m.DeliveryStatus != message.StatusRead.String() {
			m.DeliveryStatus = message.StatusRead.String()
			m.ReadAt = time.Now().UnixMilli()
			m.ReadBy = userID
			n++
		}
	}
	return n, nil
}

func (f *fakeMsgs) UnreadCount(_ context.Context, chatID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.msgs {
		if m.ChatID == chatID && m.RecipientID == userID && m.DeliveryStatus != message.StatusRead.String() {
			n++
		}
	}
	return n, nil
}

func (f *fakeMsgs) TotalUnreadCount(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.msgs {
		if m.RecipientID == userID && m.DeliveryStatus != message.StatusRead.String() {
			n++
		}
	}
	return n, nil
}

func (f *fakeMsgs) status(messageID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.MessageID == messageID {
			return m.DeliveryStatus
		}
	}
	return ""
}

type fakeNotifs struct {
	mu    sync.Mutex
	calls []string // chatID + "/" + userID
}

func (f *fakeNotifs) MarkChatNotificationsAsRead(_ context.Context, chatID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, chatID+"/"+userID)
	return nil
}

// testRig assembles real coordinators over the fakes, with real clients
// registered in the local ConnManager. Clients never get a websocket;
// frames are read straight off their Send channels.
type testRig struct {
	presence *storage.MemoryPresence
	convs    *fakeConvs
	msgs     *fakeMsgs
	notifs   *fakeNotifs
	conns    *ConnManager
	out      *Fanout

	delivery   *DeliveryTracker
	unread     *UnreadCountAggregator
	typing     *TypingIndicatorCoordinator
	coord      *PresenceCoordinator
	reconciler *DisconnectReconciler
}

func newTestRig(typingTTL time.Duration, convs ...*chatmodel.Conversation) *testRig {
	r := &testRig{
		presence: storage.NewMemoryPresence(),
		convs:    newFakeConvs(convs...),
		msgs:     newFakeMsgs(),
		notifs:   &fakeNotifs{},
		conns:    NewConnManager(ManagerConf{SweepEvery: time.Hour}),
	}
	r.out = NewFanout(r.presence, r.conns, nil)
	r.delivery = NewDeliveryTracker(r.msgs, r.out)
	r.unread = NewUnreadCountAggregator(r.convs, r.msgs, r.out)
	r.typing = NewTypingIndicatorCoordinator(r.presence, r.out, typingTTL)
	r.coord = NewPresenceCoordinator(r.presence, r.convs, r.delivery, r.notifs, r.unread, r.out)
	r.reconciler = NewDisconnectReconciler(r.presence, r.typing, r.out)
	return r
}

func (r *testRig) close() { r.conns.Close() }

// connect registers a connection both in the local registry and in the
// presence store, like the websocket endpoint does.
func (r *testRig) connect(connID, userID string) *Client {
	c := &Client{
		ConnID: connID,
		UserID: userID,
		Send:   make(chan []byte, 64),
	}
	if err := r.conns.Add(c); err != nil {
		panic(err)
	}
	ctx := context.Background()
	_ = r.presence.SetWithExpiry(ctx, storage.ConnectionKey(connID), userID, time.Hour)
	_ = r.presence.AddToSet(ctx, storage.UserConnectionsKey(userID), connID)
	return c
}

func (r *testRig) disconnect(c *Client) {
	r.conns.Remove(c.ConnID)
	r.reconciler.OnDisconnect(context.Background(), c.ConnID, c.UserID)
}

// drain empties the client's queue and returns the decoded frames.
func drain(c *Client) []Frame {
	var out []Frame
	for {
		select {
		case raw := <-c.Send:
			var f Frame
			if err := json.Unmarshal(raw, &f); err != nil {
				panic(err)
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func events(frames []Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Event)
	}
	return out
}

func findFrame(frames []Frame, event string) (Frame, bool) {
	for _, f := range frames {
		if f.Event == event {
			return f, true
		}
	}
	return Frame{}, false
}

func twoPartyConv(chatID, a, b string) *chatmodel.Conversation {
	return &chatmodel.Conversation{
		ChatID:       chatID,
		Participants: []string{a, b},
		ContextType:  "reservation",
		ContextID:    "ctx-" + chatID,
		CreateTime:   time.Now().UnixMilli(),
	}
}

func sentMessage(id, chatID, sender, recipient string) *chatmodel.MessageModel {
	return &chatmodel.MessageModel{
		MessageID:      id,
		ChatID:         chatID,
		SenderID:       sender,
		RecipientID:    recipient,
		Content:        "m-" + id,
		DeliveryStatus: message.StatusSent.String(),
		CreateTime:     time.Now().UnixMilli(),
	}
}
