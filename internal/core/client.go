package core

import "sync"

// Client is one live connection as seen by the core layer. Identity is
// resolved once at the transport handshake and never changes afterwards.
type Client struct {
	ID       string
	Identity string
	Events   chan *Event

	stalled   chan struct{}
	stallOnce sync.Once

	// room is the client's current room. Guarded by the registry mutex.
	room *Room
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id, identity string) *Client {
	return &Client{
		ID:       id,
		Identity: identity,
		Events:   make(chan *Event, 32),
		stalled:  make(chan struct{}),
	}
}

// Stalled is closed once the client's event buffer has overflowed. An
// overflowed client has already missed events, so the transport closes the
// connection and lets the reconnect plus history path recover the gap.
func (c *Client) Stalled() <-chan struct{} {
	return c.stalled
}

func (c *Client) send(ev *Event) {
	select {
	case c.Events <- ev:
	default:
		c.stallOnce.Do(func() { close(c.stalled) })
	}
}
