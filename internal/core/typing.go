package core

import "time"

// typingSet tracks which identities are currently typing in one room. It is
// owned by the room goroutine and must only be touched from there; timer
// callbacks re-enter through the expire hook, which posts back into the room
// loop instead of mutating the set directly.
type typingSet struct {
	ttl     time.Duration
	entries map[string]*typingEntry
	gen     uint64

	// expire is called from a timer goroutine when an identity's TTL
	// elapses without a refresh.
	expire func(identity string, gen uint64)
}

type typingEntry struct {
	timer  *time.Timer
	gen    uint64
	client *Client // nil for the assistant identity
}

func newTypingSet(ttl time.Duration, expire func(identity string, gen uint64)) *typingSet {
	return &typingSet{
		ttl:     ttl,
		entries: make(map[string]*typingEntry),
		expire:  expire,
	}
}

// start (re)arms the expiry timer for identity. Returns true if the identity
// was not typing before, i.e. a started event should be broadcast.
func (t *typingSet) start(identity string, client *Client) bool {
	t.gen++
	gen := t.gen

	entry, exists := t.entries[identity]
	if exists {
		// Replace rather than Reset so an expiry that already fired for
		// the old timer is recognized as stale by its generation.
		entry.timer.Stop()
		entry.timer = t.afterFunc(identity, gen)
		entry.gen = gen
		return false
	}

	t.entries[identity] = &typingEntry{
		timer:  t.afterFunc(identity, gen),
		gen:    gen,
		client: client,
	}
	return true
}

// stop cancels the timer and removes identity. Returns true if the identity
// was typing, i.e. a stopped event should be broadcast.
func (t *typingSet) stop(identity string) bool {
	entry, exists := t.entries[identity]
	if !exists {
		return false
	}
	entry.timer.Stop()
	delete(t.entries, identity)
	return true
}

// expired handles a timer callback. Returns the entry if it is still current,
// in which case the identity has been removed and a stopped event should be
// broadcast exactly as for an explicit stop.
func (t *typingSet) expired(identity string, gen uint64) (*typingEntry, bool) {
	entry, exists := t.entries[identity]
	if !exists || entry.gen != gen {
		return nil, false
	}
	delete(t.entries, identity)
	return entry, true
}

// stopOwned removes every entry started by client and returns the affected
// identities. Used when a connection drops while its user is typing.
func (t *typingSet) stopOwned(client *Client) []string {
	var stopped []string
	for identity, entry := range t.entries {
		if entry.client != client {
			continue
		}
		entry.timer.Stop()
		delete(t.entries, identity)
		stopped = append(stopped, identity)
	}
	return stopped
}

func (t *typingSet) stopAll() {
	for identity, entry := range t.entries {
		entry.timer.Stop()
		delete(t.entries, identity)
	}
}

func (t *typingSet) afterFunc(identity string, gen uint64) *time.Timer {
	return time.AfterFunc(t.ttl, func() {
		t.expire(identity, gen)
	})
}
