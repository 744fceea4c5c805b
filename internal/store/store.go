package store

import (
	"context"
	"errors"
	"time"
)

// Role marks who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a persisted chat message. The store assigns the ID; it is the
// only identifier clients may use to reference a message after delivery.
type Message struct {
	ID        int64
	GroupID   string
	ChatID    string
	Author    string
	Role      Role
	Content   string
	ReplyTo   *int64
	CreatedAt time.Time
}

var (
	// ErrNotFound is returned when a message id does not exist.
	ErrNotFound = errors.New("message not found")
	// ErrNotAuthor is returned when an edit or delete targets a message
	// written by someone else.
	ErrNotAuthor = errors.New("not the message author")
)

// MessageStore journals messages for a room and serves history reads.
// AppendMessage assigns the authoritative id and creation timestamp.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *Message) (int64, error)

	// UpdateMessage replaces the content of a message. The author must
	// match the original author.
	UpdateMessage(ctx context.Context, id int64, author, content string) error

	// DeleteMessage removes a message. The author must match.
	DeleteMessage(ctx context.Context, id int64, author string) error

	// History returns up to limit most recent messages for the room,
	// oldest first.
	History(ctx context.Context, groupID, chatID string, limit int) ([]*Message, error)

	// Close closes the underlying storage.
	Close() error
}
