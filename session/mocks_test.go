package session_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/hmaekawa/caster/domain"
)

// MockMessageStore is a mock implementation of domain.MessageStore.
type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Append(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageStore) Recent(ctx context.Context, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockMessageStore) ForUser(ctx context.Context, username string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, username, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockMessageStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// fakeHub records hub calls synchronously so tests can assert on them
// without a running broadcast loop.
type fakeHub struct {
	mu           sync.Mutex
	broadcasts   []*domain.Frame
	joins        []string
	disconnected []domain.Client
}

func (h *fakeHub) Start(context.Context) error { return nil }
func (h *fakeHub) Stop() error                 { return nil }

func (h *fakeHub) Broadcast(frame *domain.Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, frame)
	return nil
}

func (h *fakeHub) AnnounceJoin(username string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joins = append(h.joins, username)
	return nil
}

func (h *fakeHub) Disconnect(client domain.Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, client)
	return nil
}

func (h *fakeHub) Stats() domain.HubStats { return domain.HubStats{} }

// fakeClient captures bytes sent directly to this connection.
type fakeClient struct {
	id string

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(_ context.Context, message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := make([]byte, len(message))
	copy(data, message)
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// scriptedReader yields a fixed sequence of frames or errors, then EOF.
type scriptedReader struct {
	steps []readStep
	pos   int
}

type readStep struct {
	frame *domain.Frame
	err   error
}

func frameStep(f *domain.Frame) readStep { return readStep{frame: f} }
func errStep(err error) readStep         { return readStep{err: err} }

func (r *scriptedReader) ReadFrame() (*domain.Frame, error) {
	if r.pos >= len(r.steps) {
		return nil, io.EOF
	}
	step := r.steps[r.pos]
	r.pos++
	if step.err != nil {
		return nil, step.err
	}
	return step.frame, nil
}

var errTransport = errors.New("connection reset")
