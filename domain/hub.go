package domain

import "context"

// HubStats is a snapshot of the broadcast engine's counters.
type HubStats struct {
	ConnectedClients int     `json:"connected_clients"`
	FramesBroadcast  int64   `json:"frames_broadcast"`
	FramesDelivered  int64   `json:"frames_delivered"`
	DeliveryFailures int64   `json:"delivery_failures"`
	Uptime           float64 `json:"uptime_seconds"`
}

// Hub is the broadcast engine: it fans frames out to every registered client
// and owns the presence updates that follow registry changes.
type Hub interface {
	// Start starts the hub
	Start(ctx context.Context) error

	// Stop stops the hub gracefully
	Stop() error

	// Broadcast queues a frame for delivery to all registered clients
	Broadcast(frame *Frame) error

	// AnnounceJoin broadcasts the join notice and refreshed user list for a
	// user that just logged in
	AnnounceJoin(username string) error

	// Disconnect removes a client, closing it and broadcasting presence
	// updates if it was registered. Idempotent.
	Disconnect(client Client) error

	// Stats returns a snapshot of the hub counters
	Stats() HubStats
}
