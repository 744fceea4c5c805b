package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nexuschat/nexus-relay/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAssignsIDsInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var prev int64
	for _, content := range []string{"one", "two", "three"} {
		id, err := s.AppendMessage(ctx, &store.Message{
			GroupID: "g1", ChatID: "c1", Author: "alice",
			Role: store.RoleUser, Content: content,
		})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
		if id <= prev {
			t.Fatalf("ids not monotonic: %d after %d", id, prev)
		}
		prev = id
	}
}

func TestAppendSetsMessageFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := &store.Message{
		GroupID: "g1", ChatID: "c1", Author: "alice",
		Role: store.RoleUser, Content: "hello",
	}
	id, err := s.AppendMessage(ctx, msg)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if msg.ID != id {
		t.Fatalf("message id not backfilled: %d vs %d", msg.ID, id)
	}
	if msg.CreatedAt.IsZero() {
		t.Fatalf("created_at not set")
	}
}

func TestHistoryReturnsMostRecentOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	contents := []string{"a", "b", "c", "d", "e"}
	for _, content := range contents {
		if _, err := s.AppendMessage(ctx, &store.Message{
			GroupID: "g1", ChatID: "c1", Author: "alice",
			Role: store.RoleUser, Content: content,
		}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	// A message in another room must not leak in.
	if _, err := s.AppendMessage(ctx, &store.Message{
		GroupID: "g1", ChatID: "other", Author: "bob",
		Role: store.RoleUser, Content: "elsewhere",
	}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	msgs, err := s.History(ctx, "g1", "c1", 3)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"c", "d", "e"} {
		if msgs[i].Content != want {
			t.Fatalf("position %d: got %q want %q", i, msgs[i].Content, want)
		}
	}
}

func TestUpdateMessageChecksAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AppendMessage(ctx, &store.Message{
		GroupID: "g1", ChatID: "c1", Author: "alice",
		Role: store.RoleUser, Content: "v1",
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if err := s.UpdateMessage(ctx, id, "bob", "hijack"); !errors.Is(err, store.ErrNotAuthor) {
		t.Fatalf("expected ErrNotAuthor, got %v", err)
	}
	if err := s.UpdateMessage(ctx, 99999, "alice", "v2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateMessage(ctx, id, "alice", "v2"); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	msgs, err := s.History(ctx, "g1", "c1", 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "v2" {
		t.Fatalf("update not applied: %+v", msgs)
	}
}

func TestDeleteMessageChecksAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AppendMessage(ctx, &store.Message{
		GroupID: "g1", ChatID: "c1", Author: "alice",
		Role: store.RoleUser, Content: "doomed",
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if err := s.DeleteMessage(ctx, id, "bob"); !errors.Is(err, store.ErrNotAuthor) {
		t.Fatalf("expected ErrNotAuthor, got %v", err)
	}
	if err := s.DeleteMessage(ctx, id, "alice"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := s.DeleteMessage(ctx, id, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}

	msgs, err := s.History(ctx, "g1", "c1", 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("message still present after delete: %+v", msgs)
	}
}

func TestReplyToRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parent, err := s.AppendMessage(ctx, &store.Message{
		GroupID: "g1", ChatID: "c1", Author: "alice",
		Role: store.RoleUser, Content: "parent",
	})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := s.AppendMessage(ctx, &store.Message{
		GroupID: "g1", ChatID: "c1", Author: "bob",
		Role: store.RoleUser, Content: "child", ReplyTo: &parent,
	}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	msgs, err := s.History(ctx, "g1", "c1", 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if msgs[0].ReplyTo != nil {
		t.Fatalf("parent has unexpected reply_to")
	}
	if msgs[1].ReplyTo == nil || *msgs[1].ReplyTo != parent {
		t.Fatalf("reply_to lost: %+v", msgs[1])
	}
}
