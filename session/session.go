// Package session drives the per-connection state machine: a fresh connection
// must log in before anything else, then loops dispatching decoded frames
// until the transport fails or the stream ends.
package session

import (
	"context"
	"errors"
	"io"

	"github.com/hmaekawa/caster/domain"
	"github.com/hmaekawa/caster/logging"
	"github.com/hmaekawa/caster/protocol"
	"github.com/hmaekawa/caster/registry"
)

// State represents the lifecycle of one client connection.
type State int

const (
	StateAwaitingLogin State = iota
	StateActive
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateAwaitingLogin:
		return "awaiting_login"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a session.
type Options struct {
	// HistoryLimit caps the number of messages returned for a
	// history_request.
	HistoryLimit int
}

// DefaultOptions returns the default session options.
func DefaultOptions() Options {
	return Options{HistoryLimit: 100}
}

// Session owns one connection's reads. Writes to the connection go through
// the client's send queue only.
type Session struct {
	client   domain.Client
	frames   protocol.FrameReader
	registry *registry.Registry
	hub      domain.Hub
	store    domain.MessageStore
	logger   *logging.Logger
	options  Options

	state    State
	username string
}

// New creates a session for an accepted, handshake-complete connection.
func New(client domain.Client, frames protocol.FrameReader, reg *registry.Registry, hub domain.Hub, store domain.MessageStore, logger *logging.Logger, options Options) *Session {
	if options.HistoryLimit <= 0 {
		options.HistoryLimit = DefaultOptions().HistoryLimit
	}

	return &Session{
		client:   client,
		frames:   frames,
		registry: reg,
		hub:      hub,
		store:    store,
		logger:   logger.WithFields(map[string]any{"client_id": client.ID()}),
		options:  options,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	return s.state
}

// Username returns the username established at login, or "" before login.
func (s *Session) Username() string {
	return s.username
}

// Run drives the session to completion. It blocks until the connection
// closes or ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	defer s.close()

	if !s.login() {
		return
	}

	s.loop(ctx)
}

// login enforces the AwaitingLogin state: the first frame must decode as
// login, otherwise the session closes without ever touching the registry.
func (s *Session) login() bool {
	frame, err := s.frames.ReadFrame()
	if err != nil {
		s.logger.Warn("closing before login", "error", err)
		return false
	}

	if frame.Type != domain.FrameTypeLogin {
		s.logger.Warn("protocol violation: first frame must be login", "type", frame.Type)
		return false
	}

	if err := s.registry.Register(s.client, frame.Username); err != nil {
		s.logger.Error("failed to register client", "username", frame.Username, "error", err)
		return false
	}

	s.username = frame.Username
	s.state = StateActive
	s.logger = s.logger.WithFields(map[string]any{"username": s.username})
	s.logger.Info("user logged in")

	if err := s.hub.AnnounceJoin(s.username); err != nil {
		s.logger.Error("failed to announce join", "error", err)
	}

	return true
}

func (s *Session) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := s.frames.ReadFrame()
		if err != nil {
			var decodeErr *protocol.DecodeError
			if errors.As(err, &decodeErr) {
				// Recoverable: skip the frame, keep the session.
				s.logger.Warn("skipping malformed frame", "error", decodeErr)
				continue
			}
			if errors.Is(err, io.EOF) {
				s.logger.Info("client disconnected")
			} else {
				s.logger.Warn("session read failed", "error", err)
			}
			return
		}

		switch frame.Type {
		case domain.FrameTypeChat:
			s.handleChat(ctx, frame)
		case domain.FrameTypeFile:
			s.handleFile(ctx, frame)
		case domain.FrameTypeHistoryRequest:
			s.handleHistoryRequest(ctx)
		default:
			s.logger.Warn("unexpected frame type in active session", "type", frame.Type)
		}
	}
}

// handleChat persists the message, then broadcasts it with the sender
// attached. A persistence failure is logged but does not block the live
// broadcast: availability is preferred over durability here.
func (s *Session) handleChat(ctx context.Context, frame *domain.Frame) {
	msg := &domain.Message{
		Sender:   s.username,
		Receiver: domain.ReceiverAll,
		Type:     domain.MessageTypeChat,
		Content:  frame.Message,
	}
	if err := s.store.Append(ctx, msg); err != nil {
		s.logger.Error("failed to persist chat message", "error", err)
	}

	if err := s.hub.Broadcast(domain.NewChatFrame(s.username, frame.Message)); err != nil {
		s.logger.Error("failed to broadcast chat message", "error", err)
	}
}

// handleFile persists the file metadata and rebroadcasts the inline payload.
// The relay never writes payload bytes to disk; file_path records where
// receiving clients will save it.
func (s *Session) handleFile(ctx context.Context, frame *domain.Frame) {
	filePath := "downloads/" + frame.Filename
	msg := &domain.Message{
		Sender:   s.username,
		Receiver: domain.ReceiverAll,
		Type:     domain.MessageTypeFile,
		Content:  frame.Filename,
		FilePath: &filePath,
	}
	if err := s.store.Append(ctx, msg); err != nil {
		s.logger.Error("failed to persist file message", "error", err)
	}

	if err := s.hub.Broadcast(domain.NewFileFrame(s.username, frame.Filename, frame.FileData)); err != nil {
		s.logger.Error("failed to broadcast file", "error", err)
	}
}

// handleHistoryRequest replies to the requesting connection only.
func (s *Session) handleHistoryRequest(ctx context.Context) {
	history, err := s.store.ForUser(ctx, s.username, s.options.HistoryLimit)
	if err != nil {
		s.logger.Error("failed to query chat history", "error", err)
		return
	}

	data, err := protocol.Encode(domain.NewChatHistoryFrame(history))
	if err != nil {
		s.logger.Error("failed to encode chat history", "error", err)
		return
	}

	if err := s.client.Send(ctx, data); err != nil {
		s.logger.Warn("failed to send chat history", "error", err)
	}
}

// close is idempotent: entering Closed unregisters via the hub, which
// broadcasts the presence update if this client was registered.
func (s *Session) close() {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed

	if err := s.hub.Disconnect(s.client); err != nil {
		s.logger.Error("failed to hand client to hub for removal", "error", err)
		s.client.Close()
	}

	s.logger.Info("session closed")
}
