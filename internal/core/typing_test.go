package core

import (
	"testing"
	"time"
)

func TestTypingStartBroadcastsToOthersOnly(t *testing.T) {
	reg := testRegistry(t, nil, Options{TypingTTL: time.Hour})
	room := RoomKey{GroupID: "g1", ChatID: "c1"}

	alice := NewClient("a", "alice")
	bob := NewClient("b", "bob")
	reg.Dispatch(alice, &Command{Kind: CommandJoinRoom, Room: room})
	reg.Dispatch(bob, &Command{Kind: CommandJoinRoom, Room: room})
	mustEvent(t, alice.Events, EventUserJoined)

	reg.Dispatch(alice, &Command{Kind: CommandTypingStart, Room: room})

	ev := mustEvent(t, bob.Events, EventUserTyping)
	if ev.User != "alice" || !ev.Typing {
		t.Fatalf("unexpected typing event: %+v", ev)
	}
	mustNoEvent(t, alice.Events, EventUserTyping, 100*time.Millisecond)

	// A refresh while already typing is not re-broadcast.
	reg.Dispatch(alice, &Command{Kind: CommandTypingStart, Room: room})
	mustNoEvent(t, bob.Events, EventUserTyping, 100*time.Millisecond)
}

func TestTypingStopBroadcastsOnce(t *testing.T) {
	reg := testRegistry(t, nil, Options{TypingTTL: time.Hour})
	room := RoomKey{GroupID: "g1", ChatID: "c1"}

	alice := NewClient("a", "alice")
	bob := NewClient("b", "bob")
	reg.Dispatch(alice, &Command{Kind: CommandJoinRoom, Room: room})
	reg.Dispatch(bob, &Command{Kind: CommandJoinRoom, Room: room})
	mustEvent(t, alice.Events, EventUserJoined)

	reg.Dispatch(alice, &Command{Kind: CommandTypingStart, Room: room})
	mustEvent(t, bob.Events, EventUserTyping)

	reg.Dispatch(alice, &Command{Kind: CommandTypingStop, Room: room})
	ev := mustEvent(t, bob.Events, EventUserTyping)
	if ev.User != "alice" || ev.Typing {
		t.Fatalf("unexpected typing event: %+v", ev)
	}

	// Stopping again while not typing is silent.
	reg.Dispatch(alice, &Command{Kind: CommandTypingStop, Room: room})
	mustNoEvent(t, bob.Events, EventUserTyping, 100*time.Millisecond)
}

func TestTypingExpiresAfterTTL(t *testing.T) {
	reg := testRegistry(t, nil, Options{TypingTTL: 50 * time.Millisecond})
	room := RoomKey{GroupID: "g1", ChatID: "c1"}

	alice := NewClient("a", "alice")
	bob := NewClient("b", "bob")
	reg.Dispatch(alice, &Command{Kind: CommandJoinRoom, Room: room})
	reg.Dispatch(bob, &Command{Kind: CommandJoinRoom, Room: room})
	mustEvent(t, alice.Events, EventUserJoined)

	reg.Dispatch(alice, &Command{Kind: CommandTypingStart, Room: room})
	if ev := mustEvent(t, bob.Events, EventUserTyping); !ev.Typing {
		t.Fatalf("expected typing started, got %+v", ev)
	}

	// No explicit stop; the TTL delivers exactly one stopped event.
	ev := mustEvent(t, bob.Events, EventUserTyping)
	if ev.User != "alice" || ev.Typing {
		t.Fatalf("expected typing stopped, got %+v", ev)
	}
	mustNoEvent(t, bob.Events, EventUserTyping, 150*time.Millisecond)
}

func TestTypingRefreshExtendsTTL(t *testing.T) {
	reg := testRegistry(t, nil, Options{TypingTTL: 120 * time.Millisecond})
	room := RoomKey{GroupID: "g1", ChatID: "c1"}

	alice := NewClient("a", "alice")
	bob := NewClient("b", "bob")
	reg.Dispatch(alice, &Command{Kind: CommandJoinRoom, Room: room})
	reg.Dispatch(bob, &Command{Kind: CommandJoinRoom, Room: room})
	mustEvent(t, alice.Events, EventUserJoined)

	reg.Dispatch(alice, &Command{Kind: CommandTypingStart, Room: room})
	mustEvent(t, bob.Events, EventUserTyping)

	// Keep refreshing well inside the TTL; no stop may arrive meanwhile.
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		reg.Dispatch(alice, &Command{Kind: CommandTypingStart, Room: room})
	}
	mustNoEvent(t, bob.Events, EventUserTyping, 60*time.Millisecond)

	// Once the refreshes cease, the stop arrives.
	ev := mustEvent(t, bob.Events, EventUserTyping)
	if ev.Typing {
		t.Fatalf("expected typing stopped, got %+v", ev)
	}
}

func TestExplicitStopThenExpiryDoesNotDouble(t *testing.T) {
	reg := testRegistry(t, nil, Options{TypingTTL: 50 * time.Millisecond})
	room := RoomKey{GroupID: "g1", ChatID: "c1"}

	alice := NewClient("a", "alice")
	bob := NewClient("b", "bob")
	reg.Dispatch(alice, &Command{Kind: CommandJoinRoom, Room: room})
	reg.Dispatch(bob, &Command{Kind: CommandJoinRoom, Room: room})
	mustEvent(t, alice.Events, EventUserJoined)

	reg.Dispatch(alice, &Command{Kind: CommandTypingStart, Room: room})
	mustEvent(t, bob.Events, EventUserTyping)
	reg.Dispatch(alice, &Command{Kind: CommandTypingStop, Room: room})
	mustEvent(t, bob.Events, EventUserTyping)

	// The timer may still fire after the stop; it must stay silent.
	mustNoEvent(t, bob.Events, EventUserTyping, 150*time.Millisecond)
}

func TestDisconnectClearsTyping(t *testing.T) {
	reg := testRegistry(t, nil, Options{TypingTTL: time.Hour})
	room := RoomKey{GroupID: "g1", ChatID: "c1"}

	alice := NewClient("a", "alice")
	bob := NewClient("b", "bob")
	reg.Dispatch(alice, &Command{Kind: CommandJoinRoom, Room: room})
	reg.Dispatch(bob, &Command{Kind: CommandJoinRoom, Room: room})
	mustEvent(t, alice.Events, EventUserJoined)

	reg.Dispatch(bob, &Command{Kind: CommandTypingStart, Room: room})
	mustEvent(t, alice.Events, EventUserTyping)

	reg.Unregister(bob)

	sawStop := false
	for i := 0; i < 2; i++ {
		ev := mustEvent(t, alice.Events, EventUserTyping)
		if ev.User == "bob" && !ev.Typing {
			sawStop = true
			break
		}
	}
	if !sawStop {
		t.Fatalf("typing indicator not cleared on disconnect")
	}
}
