package chat

import (
	"TransitChat/logger"
	"TransitChat/service/storage"
	"TransitChat/tools/errs"
	"TransitChat/tools/ids"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS is the gin handler for the websocket endpoint. The handshake
// is authenticated before the upgrade: a bad credential gets a plain
// 401 and no socket ever exists.
func (s *Server) HandleWS(c *gin.Context) {
	claims, err := s.auth.Authenticate(c.Request)
	if err != nil {
		logger.Infof("[ws] handshake rejected: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{
			"code": errs.CodeOf(err),
			"msg":  "authentication failed",
		})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("[ws] upgrade user=%s: %v", claims.UserID, err)
		return
	}

	connID := ids.GenerateString()
	client := NewClient(connID, claims, ws, s.conf.SendQueueSize)

	if err := s.conns.Add(client); err != nil {
		logger.Errorf("[ws] register conn=%s: %v", connID, err)
		closeQuiet(ws)
		return
	}
	s.conns.AttachPongHandler(ws, connID)

	ctx := context.Background()
	if err := s.registerConnection(ctx, connID, claims.UserID); err != nil {
		logger.Errorf("[ws] presence register conn=%s user=%s: %v", connID, claims.UserID, err)
		s.conns.Remove(connID)
		closeQuiet(ws)
		return
	}

	logger.Infof("[ws] connected conn=%s user=%s", connID, claims.UserID)

	go client.writePump()
	s.readLoop(client)
}

// registerConnection records the connection->owner mapping and adds the
// connection to the user's device set. The mapping carries a TTL so an
// ungraceful node death cannot leak it forever.
func (s *Server) registerConnection(ctx context.Context, connID, userID string) error {
	if err := s.store.SetWithExpiry(ctx, storage.ConnectionKey(connID), userID, s.conf.ConnTTL); err != nil {
		return err
	}
	if err := s.store.AddToSet(ctx, storage.UserConnectionsKey(userID), connID); err != nil {
		_ = s.store.Delete(ctx, storage.ConnectionKey(connID))
		return err
	}
	return nil
}

// readLoop consumes command frames until the socket dies, then runs the
// full disconnect reconciliation exactly once.
func (s *Server) readLoop(c *Client) {
	defer func() {
		s.conns.Remove(c.ConnID)
		c.closeSend()
		s.reconciler.OnDisconnect(context.Background(), c.ConnID, c.UserID)
		logger.Infof("[ws] disconnected conn=%s user=%s", c.ConnID, c.UserID)
	}()

	for {
		_, raw, err := c.WS.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Infof("[ws] read conn=%s: %v", c.ConnID, err)
			}
			return
		}

		frame, err := ParseFrame(raw)
		if err != nil {
			s.sendError(c, errs.ErrInvalidRequest.WithDetail(err.Error()))
			continue
		}

		h := s.dispatcher.GetHandler(frame.Event)
		if h == nil {
			s.sendError(c, errs.ErrInvalidRequest.WithDetail("unknown event "+frame.Event))
			continue
		}

		if err := h.Handle(context.Background(), c, frame.Data); err != nil {
			logger.Infof("[ws] %s conn=%s user=%s: %v", frame.Event, c.ConnID, c.UserID, err)
			s.sendError(c, err)
		}
	}
}

// sendError reports a command failure to the issuing connection only.
func (s *Server) sendError(c *Client, err error) {
	c.enqueue(BuildFrame(EventError, ErrorPayload{
		Message: err.Error(),
		Code:    errs.CodeName(errs.CodeOf(err)),
	}))
}
