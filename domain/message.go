package domain

import (
	"context"
	"time"
)

// Message kinds as persisted in the messages table.
const (
	MessageTypeChat = "chat"
	MessageTypeFile = "file"
)

// ReceiverAll marks a message addressed to every connected user. Chat is
// broadcast-only today; the receiver column is kept and filtered for forward
// compatibility with direct messages.
const ReceiverAll = "all"

// Message is one persisted chat entry. The store assigns ID and Timestamp at
// insertion; their order is the canonical total order for history replay.
type Message struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Sender    string    `gorm:"type:text;not null;index" json:"sender"`
	Receiver  string    `gorm:"type:text;not null;default:all;index" json:"receiver"`
	Type      string    `gorm:"column:message_type;type:text;not null" json:"type"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	FilePath  *string   `gorm:"type:text" json:"file_path,omitempty"`
}

// TableName implements the gorm table naming convention.
func (Message) TableName() string { return "messages" }

// MessageStore is the durable, append-only log of chat messages.
type MessageStore interface {
	// Append durably records a message, assigning its ID and Timestamp.
	// It is safe for concurrent callers from different sessions.
	Append(ctx context.Context, msg *Message) error

	// Recent returns the limit most recently appended messages, newest first.
	Recent(ctx context.Context, limit int) ([]Message, error)

	// ForUser returns messages visible to username (sent by them, addressed
	// to them, or broadcast), newest first, truncated to limit.
	ForUser(ctx context.Context, username string, limit int) ([]Message, error)

	// Close releases the underlying database handle.
	Close() error
}
