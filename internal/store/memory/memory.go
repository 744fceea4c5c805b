package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nexuschat/nexus-relay/internal/store"
)

// Store is an in-memory store.MessageStore. It backs tests and ephemeral
// deployments where no journal file is wanted.
type Store struct {
	mu       sync.Mutex
	nextID   int64
	messages []*store.Message
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{nextID: 1}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// AppendMessage assigns the next id and records the message.
func (s *Store) AppendMessage(_ context.Context, msg *store.Message) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.ID = s.nextID
	s.nextID++

	kept := *msg
	s.messages = append(s.messages, &kept)
	return msg.ID, nil
}

// UpdateMessage replaces the content of a message owned by author.
func (s *Store) UpdateMessage(_ context.Context, id int64, author, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ID == id {
			if m.Author != author {
				return store.ErrNotAuthor
			}
			m.Content = content
			return nil
		}
	}
	return store.ErrNotFound
}

// DeleteMessage removes a message owned by author.
func (s *Store) DeleteMessage(_ context.Context, id int64, author string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.messages {
		if m.ID == id {
			if m.Author != author {
				return store.ErrNotAuthor
			}
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// History returns up to limit most recent room messages, oldest first.
func (s *Store) History(_ context.Context, groupID, chatID string, limit int) ([]*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var room []*store.Message
	for _, m := range s.messages {
		if m.GroupID == groupID && m.ChatID == chatID {
			room = append(room, m)
		}
	}
	if limit > 0 && len(room) > limit {
		room = room[len(room)-limit:]
	}

	out := make([]*store.Message, len(room))
	for i, m := range room {
		kept := *m
		out[i] = &kept
	}
	return out, nil
}
