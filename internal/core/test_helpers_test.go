package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexuschat/nexus-relay/internal/store/memory"
)

func testRegistry(t *testing.T, assist Answerer, opts Options) *Registry {
	t.Helper()

	nop := zerolog.Nop()
	return NewRegistry(memory.New(), assist, &nop, opts)
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent drains ch for the given window and fails if an event of the
// given kind shows up.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind, window time.Duration) {
	t.Helper()

	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event: %+v", ev)
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func drainEvents(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// stubAnswerer is a controllable Answerer for orchestration tests.
type stubAnswerer struct {
	mu          sync.Mutex
	calls       []Question
	inFlight    int
	maxInFlight int

	delay  time.Duration
	answer Answer
	err    error
}

func (s *stubAnswerer) Answer(ctx context.Context, q Question) (Answer, error) {
	s.mu.Lock()
	s.calls = append(s.calls, q)
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	delay, answer, err := s.delay, s.answer, s.err
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			s.done()
			return Answer{}, ctx.Err()
		}
	}

	s.done()
	return answer, err
}

func (s *stubAnswerer) done() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
}

func (s *stubAnswerer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubAnswerer) peakInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}
