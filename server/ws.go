package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/hmaekawa/caster/domain"
	"github.com/hmaekawa/caster/logging"
	"github.com/hmaekawa/caster/protocol"
	"github.com/hmaekawa/caster/session"
)

// WebSocketHandler serves the same frame protocol over WebSocket, one JSON
// frame per text message, feeding the same session state machine as the TLS
// listener. Intended to sit behind the admin HTTP server.
func (s *Server) WebSocketHandler() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // same trust model as the bare-username login
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Error("failed to upgrade connection", "error", err)
			return
		}

		c := newWSConn(conn, s.logger, ConnOptions{
			WriteTimeout:  s.cfg.WriteTimeout,
			SendQueueSize: s.cfg.SendQueueSize,
			MaxFrameSize:  s.cfg.MaxFrameSize,
		})

		s.logger.Info("websocket connection established", "client_id", c.ID(), "remote", r.RemoteAddr)

		sess := session.New(c, c, s.registry, s.hub, s.store, s.logger, s.sessOpts)
		sess.Run(s.ctx)
	}
}

// wsConn adapts a websocket connection to domain.Client, mirroring Conn:
// session-owned reads, single writer draining a bounded queue.
type wsConn struct {
	id      string
	conn    *websocket.Conn
	sendCh  chan []byte
	logger  *logging.Logger
	options ConnOptions

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newWSConn(conn *websocket.Conn, logger *logging.Logger, options ConnOptions) *wsConn {
	ctx, cancel := context.WithCancel(context.Background())

	c := &wsConn{
		id:      xid.New().String(),
		conn:    conn,
		sendCh:  make(chan []byte, options.SendQueueSize),
		options: options,
		ctx:     ctx,
		cancel:  cancel,
	}
	c.logger = logger.WithFields(map[string]any{"client_id": c.id})

	conn.SetReadLimit(int64(options.MaxFrameSize))

	c.wg.Add(1)
	go c.writePump()

	return c
}

func (c *wsConn) ID() string {
	return c.id
}

// ReadFrame implements protocol.FrameReader, mapping one websocket text
// message to one frame.
func (c *wsConn) ReadFrame() (*domain.Frame, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		return protocol.Decode(data)
	}
}

func (c *wsConn) Send(ctx context.Context, message []byte) error {
	select {
	case <-c.ctx.Done():
		return errors.New("connection is closed")
	case <-ctx.Done():
		return ctx.Err()
	case c.sendCh <- message:
		return nil
	}
}

func (c *wsConn) Close() error {
	c.teardown()
	return nil
}

func (c *wsConn) teardown() {
	c.closeOnce.Do(func() {
		c.cancel()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("error closing websocket connection", "error", err)
		}
	})
}

func (c *wsConn) writePump() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			// The line delimiter is redundant inside a websocket message.
			if err := c.conn.WriteMessage(websocket.TextMessage, bytes.TrimSpace(message)); err != nil {
				c.logger.Warn("websocket write failed", "error", err)
				c.teardown()
				return
			}
		}
	}
}
