package eventbus

import (
	"time"

	"github.com/rs/xid"
)

// EventType represents the type of event
type EventType string

// Event types
const (
	EventClientJoined     EventType = "client.joined"
	EventClientLeft       EventType = "client.left"
	EventMessageBroadcast EventType = "message.broadcast"
	EventMessageStored    EventType = "message.stored"
	EventError            EventType = "error"
)

// MessageData is the payload carried by message events.
type MessageData struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// PresenceData is the payload carried by presence events.
type PresenceData struct {
	Username string `json:"username"`
}

// Event represents a system event
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	Data      interface{}       `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates a new event
func NewEvent(eventType EventType, source string, data interface{}) *Event {
	return &Event{
		ID:        xid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
		Metadata:  make(map[string]string),
	}
}

// WithMetadata adds metadata to the event
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}
