package client

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexuschat/nexus-relay/internal/proto"
)

// MessageStatus tracks a local message through confirmation.
type MessageStatus int

const (
	// StatusPending means the message is rendered optimistically and the
	// authoritative echo has not arrived yet.
	StatusPending MessageStatus = iota
	// StatusConfirmed means the relay echoed the message back with its
	// authoritative id.
	StatusConfirmed
	// StatusFailed means the send failed; the message stays visible and
	// can be re-offered for retry.
	StatusFailed
)

// Message is one transcript entry. ID is zero until confirmation; Ref is the
// correlation token that matches the optimistic copy to its echo.
type Message struct {
	ID        int64
	Ref       string
	Role      string
	Sender    string
	Content   string
	ReplyTo   *int64
	Sources   []string
	Failure   bool
	Status    MessageStatus
	CreatedAt time.Time
}

// Transcript reconciles the locally rendered message list against server
// broadcasts. The sender's own echo promotes the pending entry in place
// rather than adding a second bubble; everything else appends. Edit and delete match on
// the authoritative id only, since they always originate after confirmation.
type Transcript struct {
	identity string

	mu       sync.Mutex
	messages []*Message
	byID     map[int64]*Message
	pending  map[string]*Message
	typing   map[string]struct{}
}

// NewTranscript builds an empty transcript for the given local identity.
func NewTranscript(identity string) *Transcript {
	return &Transcript{
		identity: identity,
		byID:     make(map[int64]*Message),
		pending:  make(map[string]*Message),
		typing:   make(map[string]struct{}),
	}
}

// AppendLocal records an optimistic message and returns it; its Ref goes out
// with the send so the echo can be matched deterministically.
func (t *Transcript) AppendLocal(content string, replyTo *int64) *Message {
	msg := &Message{
		Ref:       uuid.NewString(),
		Role:      proto.RoleUser,
		Sender:    t.identity,
		Content:   content,
		ReplyTo:   replyTo,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.pending[msg.Ref] = msg
	t.mu.Unlock()

	return msg
}

// ApplyMessage processes a new_message broadcast. The returned bool is true
// when the event produced a new entry, false when it reconciled a pending
// one.
func (t *Transcript) ApplyMessage(p proto.MessagePayload) (*Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p.Ref != "" {
		if msg, ok := t.pending[p.Ref]; ok {
			delete(t.pending, p.Ref)
			msg.ID = p.ID
			msg.Content = p.Content
			msg.Status = StatusConfirmed
			msg.CreatedAt = time.Unix(p.TS, 0)
			t.byID[p.ID] = msg
			return msg, false
		}
	}

	msg := &Message{
		ID:        p.ID,
		Ref:       p.Ref,
		Role:      p.Role,
		Sender:    p.Sender,
		Content:   p.Content,
		ReplyTo:   p.ReplyTo,
		Sources:   p.Sources,
		Failure:   p.Failure,
		Status:    StatusConfirmed,
		CreatedAt: time.Unix(p.TS, 0),
	}
	t.messages = append(t.messages, msg)
	if p.ID != 0 {
		t.byID[p.ID] = msg
	}
	return msg, true
}

// ApplyEdit processes a message_edited broadcast. Unknown ids are ignored:
// a temporary id is never a valid target.
func (t *Transcript) ApplyEdit(id int64, content string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg, ok := t.byID[id]
	if !ok {
		return false
	}
	msg.Content = content
	return true
}

// ApplyDelete processes a message_deleted broadcast.
func (t *Transcript) ApplyDelete(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg, ok := t.byID[id]
	if !ok {
		return false
	}
	delete(t.byID, id)
	for i, m := range t.messages {
		if m == msg {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			break
		}
	}
	return true
}

// LoadHistory merges server-provided history into the transcript. Messages
// inside the snapshot's id range are replaced by the server copies; confirmed
// entries newer than the snapshot tail are kept, since a broadcast may have
// reached this transcript after the snapshot was taken. Still-pending local
// messages stay at the tail.
func (t *Transcript) LoadHistory(history []proto.MessagePayload) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var maxID int64
	for _, p := range history {
		if p.ID > maxID {
			maxID = p.ID
		}
	}

	var newer, local []*Message
	for _, m := range t.messages {
		switch {
		case m.Status == StatusPending || m.Status == StatusFailed:
			local = append(local, m)
		case m.Status == StatusConfirmed && m.ID > maxID:
			newer = append(newer, m)
		}
	}

	t.messages = nil
	t.byID = make(map[int64]*Message)
	for _, p := range history {
		msg := &Message{
			ID:        p.ID,
			Role:      p.Role,
			Sender:    p.Sender,
			Content:   p.Content,
			ReplyTo:   p.ReplyTo,
			Status:    StatusConfirmed,
			CreatedAt: time.Unix(p.TS, 0),
		}
		t.messages = append(t.messages, msg)
		if p.ID != 0 {
			t.byID[p.ID] = msg
		}
	}
	for _, m := range newer {
		t.messages = append(t.messages, m)
		t.byID[m.ID] = m
	}
	t.messages = append(t.messages, local...)
}

// MarkFailed flags a pending message after a send failure. The message stays
// in the transcript for retry; it is never silently dropped.
func (t *Transcript) MarkFailed(ref string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg, ok := t.pending[ref]
	if !ok {
		return false
	}
	msg.Status = StatusFailed
	return true
}

// Retry re-offers a failed message for sending. The ref is kept, so a late
// echo of the original attempt still reconciles instead of duplicating.
func (t *Transcript) Retry(ref string) (*Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg, ok := t.pending[ref]
	if !ok || msg.Status != StatusFailed {
		return nil, false
	}
	msg.Status = StatusPending
	return msg, true
}

// SetTyping updates the transient typing display set.
func (t *Transcript) SetTyping(identity string, typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if typing {
		t.typing[identity] = struct{}{}
	} else {
		delete(t.typing, identity)
	}
}

// Typing returns who is currently typing, sorted for stable display.
func (t *Transcript) Typing() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.typing))
	for identity := range t.typing {
		out = append(out, identity)
	}
	sort.Strings(out)
	return out
}

// Messages returns a snapshot of the transcript in order.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = *m
	}
	return out
}
