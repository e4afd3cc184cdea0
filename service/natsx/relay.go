package natsx

import (
	"TransitChat/logger"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// Relay mirrors per-user push frames across gateway nodes over NATS
// core subjects, so a user whose connection landed on another node
// still sees room events. Durable state is untouched: a missed relay
// frame is reconciled by the client's next join sweep.

const userSubjectPrefix = "chat.user."

type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

type envelope struct {
	Origin string          `json:"origin"` // publishing node id, for echo suppression
	UserID string          `json:"userId"`
	Frame  json.RawMessage `json:"frame"`
}

type Relay struct {
	nc     *nats.Conn
	nodeID string
	sub    *nats.Subscription
}

func New(cfg Config, nodeID string) (*Relay, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}
	return &Relay{nc: nc, nodeID: nodeID}, nil
}

// PublishUser fans a frame out to the user's connections on other
// nodes. Best-effort: relay loss is acceptable by design.
func (r *Relay) PublishUser(userID string, frame []byte) {
	env := envelope{Origin: r.nodeID, UserID: userID, Frame: frame}
	b, err := json.Marshal(env)
	if err != nil {
		logger.Errorf("[relay] marshal envelope user=%s: %v", userID, err)
		return
	}
	if err := r.nc.Publish(userSubjectPrefix+userID, b); err != nil {
		logger.Errorf("[relay] publish user=%s: %v", userID, err)
	}
}

// Start subscribes to every user subject and hands remote frames to
// deliver. Frames published by this node are dropped to avoid echo.
func (r *Relay) Start(deliver func(userID string, frame []byte)) error {
	sub, err := r.nc.Subscribe(userSubjectPrefix+"*", func(m *nats.Msg) {
		var env envelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			logger.Errorf("[relay] bad envelope on %s: %v", m.Subject, err)
			return
		}
		if env.Origin == r.nodeID {
			return
		}
		deliver(env.UserID, env.Frame)
	})
	if err != nil {
		return errors.Wrap(err, "nats subscribe")
	}
	r.sub = sub
	return nil
}

func (r *Relay) Close() error {
	if r.sub != nil {
		_ = r.sub.Drain()
	}
	if r.nc != nil {
		return r.nc.Drain()
	}
	return nil
}
