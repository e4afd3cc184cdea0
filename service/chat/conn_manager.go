package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

type ManagerConf struct {
	HeartbeatTTL time.Duration    // connection considered dead without a pong
	SweepEvery   time.Duration    // dead-connection sweep period
	Clock        func() time.Time // injectable for tests; nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.HeartbeatTTL <= 0 {
		c.HeartbeatTTL = 2 * pongWait
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 30 * time.Second
	}
}

// ConnManager is the local connection registry: primary index by
// connection id, secondary by user id for multi-device delivery. A
// sweeper closes connections whose heartbeat expired, which bounds the
// leak from ungraceful drops; the read loop then runs the normal
// disconnect path.
type ConnManager struct {
	mu     sync.RWMutex
	byConn map[string]*Client
	byUser map[string]map[string]*Client

	conf     ManagerConf
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewConnManager(conf ManagerConf) *ConnManager {
	conf.norm()
	m := &ConnManager{
		byConn: make(map[string]*Client),
		byUser: make(map[string]map[string]*Client),
		conf:   conf,
		stopCh: make(chan struct{}),
	}
	go m.sweeper()
	return m
}

func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byConn {
		closeQuiet(c.WS)
	}
	m.byConn = make(map[string]*Client)
	m.byUser = make(map[string]map[string]*Client)
}

func (m *ConnManager) Add(c *Client) error {
	if c == nil || c.ConnID == "" || c.UserID == "" {
		return errors.New("client missing conn/user id")
	}
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byConn[c.ConnID]; exists {
		return errors.Errorf("connection %s already registered", c.ConnID)
	}
	c.heartbeat = now
	c.expireAt = now.Add(m.conf.HeartbeatTTL)
	m.byConn[c.ConnID] = c
	if m.byUser[c.UserID] == nil {
		m.byUser[c.UserID] = make(map[string]*Client)
	}
	m.byUser[c.UserID][c.ConnID] = c
	return nil
}

// Remove unregisters and returns the client, or nil if unknown. The
// socket itself is closed by the caller's read/write teardown.
func (m *ConnManager) Remove(connID string) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byConn[connID]
	if !ok {
		return nil
	}
	delete(m.byConn, connID)
	if mm := m.byUser[c.UserID]; mm != nil {
		delete(mm, connID)
		if len(mm) == 0 {
			delete(m.byUser, c.UserID)
		}
	}
	return c
}

func (m *ConnManager) Get(connID string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byConn[connID]
	return c, ok
}

func (m *ConnManager) ListUser(userID string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mm := m.byUser[userID]
	if len(mm) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out
}

func (m *ConnManager) UserConnCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID])
}

func (m *ConnManager) SendToConn(connID string, data []byte) bool {
	m.mu.RLock()
	c, ok := m.byConn[connID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return c.enqueue(data)
}

// SendToUser fans out to every local connection of the user.
func (m *ConnManager) SendToUser(userID string, data []byte) int {
	m.mu.RLock()
	mm := m.byUser[userID]
	conns := make([]*Client, 0, len(mm))
	for _, c := range mm {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	n := 0
	for _, c := range conns {
		if c.enqueue(data) {
			n++
		}
	}
	return n
}

func (m *ConnManager) Heartbeat(connID string) {
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byConn[connID]; ok {
		c.heartbeat = now
		c.expireAt = now.Add(m.conf.HeartbeatTTL)
	}
}

// AttachPongHandler refreshes the heartbeat and the read deadline on
// every pong; call right after the handshake.
func (m *ConnManager) AttachPongHandler(conn *websocket.Conn, connID string) {
	if conn == nil || connID == "" {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		m.Heartbeat(connID)
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-t.C:
			m.sweepOnce(now)
		}
	}
}

// sweepOnce closes expired sockets outside the lock; the read loops of
// those connections then run the regular disconnect reconciliation.
func (m *ConnManager) sweepOnce(now time.Time) {
	var expired []*Client
	m.mu.RLock()
	for _, c := range m.byConn {
		if now.After(c.expireAt) {
			expired = append(expired, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range expired {
		closeQuiet(c.WS)
	}
}

func closeQuiet(c *websocket.Conn) {
	if c != nil {
		_ = c.Close()
	}
}
