// Package hub implements the broadcast engine: frames are encoded once and
// fanned out to every registered client through its bounded send queue. A
// failed delivery marks that client dead without aborting the pass; dead
// clients are reaped afterwards and presence updates follow.
package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hmaekawa/caster/domain"
	"github.com/hmaekawa/caster/internal/eventbus"
	"github.com/hmaekawa/caster/logging"
	"github.com/hmaekawa/caster/protocol"
	"github.com/hmaekawa/caster/registry"
)

// Options configures a Hub.
type Options struct {
	// SendTimeout bounds the per-client enqueue during a broadcast pass, so
	// one slow consumer cannot stall delivery to the rest.
	SendTimeout time.Duration

	Logger *logging.Logger

	// Bus, when set, receives presence and message events.
	Bus eventbus.Bus
}

// DefaultOptions returns the default hub options.
func DefaultOptions(logger *logging.Logger) Options {
	return Options{
		SendTimeout: 5 * time.Second,
		Logger:      logger,
	}
}

// Hub is the concrete broadcast engine.
type Hub struct {
	registry    *registry.Registry
	broadcast   chan *domain.Frame
	disconnect  chan domain.Client
	bus         eventbus.Bus
	logger      *logging.Logger
	sendTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	framesBroadcast  int64
	framesDelivered  int64
	deliveryFailures int64
	startTime        time.Time
}

// New creates a hub over the given registry.
func New(reg *registry.Registry, opts Options) *Hub {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}

	return &Hub{
		registry:    reg,
		broadcast:   make(chan *domain.Frame, 1024),
		disconnect:  make(chan domain.Client, 256),
		bus:         opts.Bus,
		logger:      opts.Logger,
		sendTimeout: opts.SendTimeout,
		startTime:   time.Now(),
	}
}

// Start implements domain.Hub.
func (h *Hub) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.wg.Add(1)
	go h.run()
	h.logger.Info("hub started")
	return nil
}

// Stop implements domain.Hub. Remaining clients are closed.
func (h *Hub) Stop() error {
	h.logger.Info("stopping hub")
	h.cancel()
	h.wg.Wait()

	for _, e := range h.registry.Snapshot() {
		h.registry.Unregister(e.Client.ID())
		e.Client.Close()
	}

	h.logger.Info("hub stopped")
	return nil
}

// Broadcast implements domain.Hub.
func (h *Hub) Broadcast(frame *domain.Frame) error {
	select {
	case h.broadcast <- frame:
		return nil
	case <-h.ctx.Done():
		return errors.New("hub context cancelled during broadcast")
	default:
		return errors.New("broadcast channel is full")
	}
}

// AnnounceJoin implements domain.Hub.
func (h *Hub) AnnounceJoin(username string) error {
	if err := h.Broadcast(domain.NewChatFrame(domain.ServerSender, username+" joined the chat")); err != nil {
		return err
	}
	if err := h.Broadcast(domain.NewUserListFrame(h.registry.Usernames())); err != nil {
		return err
	}

	if h.bus != nil {
		h.bus.PublishAsync(eventbus.NewEvent(eventbus.EventClientJoined, "hub", eventbus.PresenceData{Username: username}))
	}
	return nil
}

// Disconnect implements domain.Hub.
func (h *Hub) Disconnect(client domain.Client) error {
	select {
	case h.disconnect <- client:
		return nil
	case <-h.ctx.Done():
		return errors.New("hub context cancelled during disconnect")
	default:
		return errors.New("disconnect channel is full")
	}
}

// Stats implements domain.Hub.
func (h *Hub) Stats() domain.HubStats {
	return domain.HubStats{
		ConnectedClients: h.registry.Len(),
		FramesBroadcast:  atomic.LoadInt64(&h.framesBroadcast),
		FramesDelivered:  atomic.LoadInt64(&h.framesDelivered),
		DeliveryFailures: atomic.LoadInt64(&h.deliveryFailures),
		Uptime:           time.Since(h.startTime).Seconds(),
	}
}

func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return

		case frame := <-h.broadcast:
			h.handleBroadcast(frame)

		case client := <-h.disconnect:
			h.drop(client)
		}
	}
}

// handleBroadcast encodes once and delivers to a registry snapshot. Delivery
// failures never abort the pass; failed clients are reaped afterwards.
func (h *Hub) handleBroadcast(frame *domain.Frame) {
	data, err := protocol.Encode(frame)
	if err != nil {
		h.logger.Error("failed to encode frame", "type", frame.Type, "error", err)
		return
	}

	var dead []domain.Client

	for _, e := range h.registry.Snapshot() {
		ctx, cancel := context.WithTimeout(h.ctx, h.sendTimeout)
		err := e.Client.Send(ctx, data)
		cancel()

		if err != nil {
			atomic.AddInt64(&h.deliveryFailures, 1)
			h.logger.Warn("failed to deliver frame",
				"client_id", e.Client.ID(),
				"username", e.Username,
				"error", err,
			)
			dead = append(dead, e.Client)
		} else {
			atomic.AddInt64(&h.framesDelivered, 1)
		}
	}

	atomic.AddInt64(&h.framesBroadcast, 1)

	if h.bus != nil && frame.Type == domain.FrameTypeChat && frame.Sender != domain.ServerSender {
		h.bus.PublishAsync(eventbus.NewEvent(eventbus.EventMessageBroadcast, "hub", eventbus.MessageData{
			Sender:  frame.Sender,
			Content: frame.Message,
		}))
	}

	for _, client := range dead {
		h.drop(client)
	}
}

// drop unregisters and closes a client. If it was registered, the leave
// notice and refreshed user list are queued as follow-up broadcasts; they are
// triggered only by the registry change, so reaping cannot recurse unboundedly.
func (h *Hub) drop(client domain.Client) {
	username, ok := h.registry.Unregister(client.ID())
	client.Close()
	if !ok {
		return
	}

	h.logger.Info("client removed",
		"client_id", client.ID(),
		"username", username,
		"total_clients", h.registry.Len(),
	)

	if h.bus != nil {
		h.bus.PublishAsync(eventbus.NewEvent(eventbus.EventClientLeft, "hub", eventbus.PresenceData{Username: username}))
	}

	h.queueFollowUp(domain.NewChatFrame(domain.ServerSender, username+" left the chat"))
	h.queueFollowUp(domain.NewUserListFrame(h.registry.Usernames()))
}

func (h *Hub) queueFollowUp(frame *domain.Frame) {
	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn("broadcast queue full, dropping presence update", "type", frame.Type)
	}
}
