package chat

import (
	"TransitChat/service/storage"
	"time"
)

// ServerConf is the runtime tuning the gateway binary passes down from
// its environment config.
type ServerConf struct {
	TypingTTL     time.Duration
	ConnTTL       time.Duration
	SweepEvery    time.Duration
	SendQueueSize int
}

func (c *ServerConf) norm() {
	if c.TypingTTL <= 0 {
		c.TypingTTL = 3 * time.Second
	}
	if c.ConnTTL <= 0 {
		c.ConnTTL = 2 * time.Hour
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
}

// Deps are the external collaborators the server is assembled from.
// Relay may be nil for a single-node deployment.
type Deps struct {
	Presence storage.Presence
	Convs    ConversationStore
	Msgs     MessageStore
	Notifs   NotificationStore
	Sender   MessageSender
	Verifier Verifier
	Relay    UserRelay
}

// Server owns the websocket endpoint and all the coordinators behind
// it. One instance per gateway process.
type Server struct {
	conf ServerConf

	auth       *Authenticator
	conns      *ConnManager
	dispatcher *Dispatcher
	out        *Fanout

	presence   *PresenceCoordinator
	delivery   *DeliveryTracker
	typing     *TypingIndicatorCoordinator
	unread     *UnreadCountAggregator
	reconciler *DisconnectReconciler

	store storage.Presence
}

func NewServer(conf ServerConf, deps Deps) *Server {
	conf.norm()

	conns := NewConnManager(ManagerConf{SweepEvery: conf.SweepEvery})
	out := NewFanout(deps.Presence, conns, deps.Relay)

	delivery := NewDeliveryTracker(deps.Msgs, out)
	unread := NewUnreadCountAggregator(deps.Convs, deps.Msgs, out)
	typing := NewTypingIndicatorCoordinator(deps.Presence, out, conf.TypingTTL)
	presence := NewPresenceCoordinator(deps.Presence, deps.Convs, delivery, deps.Notifs, unread, out)
	reconciler := NewDisconnectReconciler(deps.Presence, typing, out)

	s := &Server{
		conf:       conf,
		auth:       NewAuthenticator(deps.Verifier),
		conns:      conns,
		dispatcher: NewDispatcher(),
		out:        out,
		presence:   presence,
		delivery:   delivery,
		typing:     typing,
		unread:     unread,
		reconciler: reconciler,
		store:      deps.Presence,
	}

	s.dispatcher.Register(&joinChatHandler{presence: presence})
	s.dispatcher.Register(&leaveChatHandler{presence: presence})
	s.dispatcher.Register(&typingStartHandler{typing: typing})
	s.dispatcher.Register(&typingStopHandler{typing: typing})
	s.dispatcher.Register(newSendMessageHandler(deps.Sender, unread, out))
	s.dispatcher.Register(&markAsReadHandler{delivery: delivery, msgs: deps.Msgs, unread: unread, out: out})

	return s
}

// DeliverLocal is the ingress for the cross-node relay.
func (s *Server) DeliverLocal(userID string, frame []byte) {
	s.out.DeliverLocal(userID, frame)
}

func (s *Server) Close() {
	s.conns.Close()
}
