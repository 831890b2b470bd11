package hub_test

import (
	"context"
	"errors"
	"sync"

	"github.com/hmaekawa/caster/domain"
	"github.com/hmaekawa/caster/protocol"
)

// fakeClient records delivered frames and can be switched to fail sends,
// standing in for a broken or unresponsive peer.
type fakeClient struct {
	id string

	mu       sync.Mutex
	received []*domain.Frame
	broken   bool
	closed   bool
}

func newFakeClient(id string) *fakeClient {
	return &fakeClient{id: id}
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(_ context.Context, message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken || c.closed {
		return errors.New("send failed")
	}

	frame, err := protocol.Decode(message)
	if err != nil {
		return err
	}
	c.received = append(c.received, frame)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) breakConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broken = true
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) frames() []*domain.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*domain.Frame, len(c.received))
	copy(out, c.received)
	return out
}

func (c *fakeClient) framesOfType(frameType domain.FrameType) []*domain.Frame {
	var out []*domain.Frame
	for _, f := range c.frames() {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}
