package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/hmaekawa/caster/domain"
	"github.com/hmaekawa/caster/logging"
	"github.com/hmaekawa/caster/protocol"
)

// ConnOptions configures a connection wrapper.
type ConnOptions struct {
	WriteTimeout  time.Duration
	SendQueueSize int
	MaxFrameSize  int
}

// DefaultConnOptions returns the default connection options.
func DefaultConnOptions() ConnOptions {
	return ConnOptions{
		WriteTimeout:  10 * time.Second,
		SendQueueSize: 256,
		MaxFrameSize:  4 * 1024 * 1024,
	}
}

// Conn adapts one transport-secured byte stream to domain.Client. Reads are
// owned by the session; all writes are funneled through a bounded send queue
// drained by a single writer goroutine, so broadcast deliveries and direct
// replies never interleave on the wire.
type Conn struct {
	id      string
	conn    net.Conn
	frames  *protocol.LineReader
	sendCh  chan []byte
	logger  *logging.Logger
	options ConnOptions

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewConn wraps an accepted connection and starts its writer.
func NewConn(nc net.Conn, logger *logging.Logger, options ConnOptions) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Conn{
		id:      xid.New().String(),
		conn:    nc,
		frames:  protocol.NewLineReader(nc, options.MaxFrameSize),
		sendCh:  make(chan []byte, options.SendQueueSize),
		options: options,
		ctx:     ctx,
		cancel:  cancel,
	}
	c.logger = logger.WithFields(map[string]any{"client_id": c.id})

	c.wg.Add(1)
	go c.writePump()

	return c
}

// ID implements domain.Client.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ReadFrame implements protocol.FrameReader.
func (c *Conn) ReadFrame() (*domain.Frame, error) {
	return c.frames.ReadFrame()
}

// Send implements domain.Client. It blocks until the message is queued, the
// caller's ctx expires, or the connection is closed.
func (c *Conn) Send(ctx context.Context, message []byte) error {
	select {
	case <-c.ctx.Done():
		return errors.New("connection is closed")
	case <-ctx.Done():
		return ctx.Err()
	case c.sendCh <- message:
		return nil
	}
}

// Close implements domain.Client. Safe to call from any goroutine, any
// number of times; it unblocks in-flight reads and writes.
func (c *Conn) Close() error {
	c.teardown()
	return nil
}

func (c *Conn) teardown() {
	c.closeOnce.Do(func() {
		c.cancel()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("error closing connection", "error", err)
		}
	})
}

// writePump is the connection's single writer.
func (c *Conn) writePump() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message := <-c.sendCh:
			if err := c.write(message); err != nil {
				c.logger.Warn("connection write failed", "error", err)
				c.teardown()
				return
			}

			// Drain whatever queued up behind this message.
			n := len(c.sendCh)
			for range n {
				select {
				case next := <-c.sendCh:
					if err := c.write(next); err != nil {
						c.logger.Warn("connection write failed", "error", err)
						c.teardown()
						return
					}
				default:
				}
			}
		}
	}
}

func (c *Conn) write(message []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout)); err != nil {
		return err
	}
	_, err := c.conn.Write(message)
	return err
}
