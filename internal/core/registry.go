package core

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexuschat/nexus-relay/internal/store"
)

// Options tunes room behavior. Zero values fall back to defaults.
type Options struct {
	// TypingTTL is how long a typing indicator survives without a refresh.
	TypingTTL time.Duration
	// HistoryLimit caps the history event delivered on room entry.
	HistoryLimit int
	// AssistWindow caps how many recent turns are sent upstream.
	AssistWindow int
	// AssistTimeout bounds one upstream answer-generation call.
	AssistTimeout time.Duration
	// AssistIdentity is the author name of assistant envelopes.
	AssistIdentity string
}

func (o Options) withDefaults() Options {
	if o.TypingTTL <= 0 {
		o.TypingTTL = 1500 * time.Millisecond
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 50
	}
	if o.AssistWindow <= 0 {
		o.AssistWindow = 5
	}
	if o.AssistTimeout <= 0 {
		o.AssistTimeout = 30 * time.Second
	}
	if o.AssistIdentity == "" {
		o.AssistIdentity = "nexus"
	}
	return o
}

// Registry maps room keys to live rooms and routes client commands to them.
// The registry mutex guards only the room table and each client's current
// room pointer; everything inside a room belongs to that room's goroutine.
type Registry struct {
	store  store.MessageStore
	assist Answerer
	log    *zerolog.Logger
	opts   Options

	mu    sync.Mutex
	rooms map[RoomKey]*Room
}

// NewRegistry builds a registry. assist may be nil, which disables answer
// orchestration entirely.
func NewRegistry(st store.MessageStore, assist Answerer, logger *zerolog.Logger, opts Options) *Registry {
	return &Registry{
		store:  st,
		assist: assist,
		log:    logger,
		opts:   opts.withDefaults(),
		rooms:  make(map[RoomKey]*Room),
	}
}

// Register announces a new connection to the registry.
func (reg *Registry) Register(c *Client) {
	reg.log.Debug().Str("conn_id", c.ID).Str("identity", c.Identity).Msg("client registered")
}

// Unregister cleans up after a dropped connection: the client leaves its
// room (emitting user_left to remaining members) like an explicit leave.
func (reg *Registry) Unregister(c *Client) {
	reg.Leave(c)
	reg.log.Debug().Str("conn_id", c.ID).Str("identity", c.Identity).Msg("client unregistered")
}

// Join subscribes c to the room at key, leaving any prior room first, and
// returns the resulting member count. Joining the current room again is a
// no-op beyond returning the count.
func (reg *Registry) Join(c *Client, key RoomKey) int {
	for {
		reg.mu.Lock()
		prev := c.room

		if prev != nil && prev.key == key {
			reg.mu.Unlock()
			if n, ok := prev.join(c); ok {
				return n
			}
			// Room shut down under us; detach and retry.
			reg.detach(c, prev)
			continue
		}

		room := reg.rooms[key]
		if room == nil || room.isClosed() {
			room = newRoom(key, reg)
			reg.rooms[key] = room
			go room.run()
		}
		c.room = room
		reg.mu.Unlock()

		if prev != nil {
			prev.leave(c)
		}
		if n, ok := room.join(c); ok {
			return n
		}

		// Lost the race with the room's teardown; retry with a fresh room.
		reg.drop(key, room)
		reg.detach(c, room)
	}
}

// Leave removes c from its current room. A client with no room is a no-op.
func (reg *Registry) Leave(c *Client) {
	reg.mu.Lock()
	room := c.room
	c.room = nil
	reg.mu.Unlock()

	if room != nil {
		room.leave(c)
	}
}

// Members reports the current member count of a room, 0 if it doesn't exist.
func (reg *Registry) Members(key RoomKey) int {
	reg.mu.Lock()
	room := reg.rooms[key]
	reg.mu.Unlock()

	if room == nil {
		return 0
	}
	return int(room.memberCount.Load())
}

// Broadcast fans an event out to every member of the room, if it exists.
func (reg *Registry) Broadcast(key RoomKey, ev *Event) {
	reg.mu.Lock()
	room := reg.rooms[key]
	reg.mu.Unlock()

	if room != nil {
		room.post(roomCmd{op: opBroadcast, ev: ev})
	}
}

// Dispatch routes one client command. Validation failures and routing
// failures come back to the caller as error events, never as silent drops.
func (reg *Registry) Dispatch(c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinRoom:
		n := reg.Join(c, cmd.Room)
		c.send(&Event{Kind: EventRoomJoined, Room: cmd.Room, Members: n})

	case CommandLeaveRoom:
		reg.Leave(c)

	case CommandSendMessage:
		if strings.TrimSpace(cmd.Content) == "" {
			c.send(&Event{Kind: EventError, Room: cmd.Room,
				Error: coreError(ErrCodeEmptyMessage, "message content is empty")})
			return
		}
		reg.routeToRoom(c, cmd.Room, roomCmd{
			op:            opSend,
			client:        c,
			content:       cmd.Content,
			replyTo:       cmd.ReplyTo,
			ref:           cmd.Ref,
			disableAssist: cmd.DisableAssist,
		})

	case CommandEditMessage:
		if strings.TrimSpace(cmd.Content) == "" {
			c.send(&Event{Kind: EventError, Room: cmd.Room,
				Error: coreError(ErrCodeEmptyMessage, "message content is empty")})
			return
		}
		reg.routeToRoom(c, cmd.Room, roomCmd{op: opEdit, client: c, id: cmd.MessageID, content: cmd.Content})

	case CommandDeleteMessage:
		reg.routeToRoom(c, cmd.Room, roomCmd{op: opDelete, client: c, id: cmd.MessageID})

	case CommandTypingStart:
		reg.routeToRoom(c, cmd.Room, roomCmd{op: opTypingStart, client: c})

	case CommandTypingStop:
		reg.routeToRoom(c, cmd.Room, roomCmd{op: opTypingStop, client: c})
	}
}

func (reg *Registry) routeToRoom(c *Client, key RoomKey, cmd roomCmd) {
	reg.mu.Lock()
	room := c.room
	reg.mu.Unlock()

	if room == nil || room.key != key {
		c.send(&Event{Kind: EventError, Room: key,
			Error: coreError(ErrCodeNotInRoom, "not joined to room "+key.String())})
		return
	}
	room.post(cmd)
}

// drop removes a room from the table if it is still the registered one.
func (reg *Registry) drop(key RoomKey, room *Room) {
	reg.mu.Lock()
	if reg.rooms[key] == room {
		delete(reg.rooms, key)
	}
	reg.mu.Unlock()
}

func (reg *Registry) detach(c *Client, room *Room) {
	reg.mu.Lock()
	if c.room == room {
		c.room = nil
	}
	reg.mu.Unlock()
}
