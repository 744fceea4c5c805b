package core

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/nexuschat/nexus-relay/internal/store"
)

const storeTimeout = 5 * time.Second

type roomOp int

const (
	opJoin roomOp = iota
	opLeave
	opSend
	opEdit
	opDelete
	opTypingStart
	opTypingStop
	opTypingExpired
	opBroadcast
	opAssistDone
)

type roomCmd struct {
	op            roomOp
	client        *Client
	identity      string
	content       string
	replyTo       *int64
	ref           string
	id            int64
	disableAssist bool
	gen           uint64
	ev            *Event
	outcome       *assistOutcome
	reply         chan int
}

// Room owns all mutable state for one broadcast domain: membership, typing
// timers and the orchestration queue. A single goroutine (run) consumes the
// command channel, so none of that state needs locking. Rooms are created
// lazily by the registry and shut themselves down once empty.
type Room struct {
	key  RoomKey
	reg  *Registry
	cmds chan roomCmd
	done chan struct{}

	members     map[*Client]struct{}
	memberCount atomic.Int64

	typing *typingSet

	assistBusy  bool
	assistQueue []string
}

func newRoom(key RoomKey, reg *Registry) *Room {
	r := &Room{
		key:     key,
		reg:     reg,
		cmds:    make(chan roomCmd, 64),
		done:    make(chan struct{}),
		members: make(map[*Client]struct{}),
	}
	r.typing = newTypingSet(reg.opts.TypingTTL, func(identity string, gen uint64) {
		r.post(roomCmd{op: opTypingExpired, identity: identity, gen: gen})
	})
	return r
}

func (r *Room) run() {
	for {
		cmd := <-r.cmds
		r.handle(cmd)
		if len(r.members) == 0 && r.shutdown() {
			return
		}
	}
}

// shutdown tears the empty room down unless a join raced it. Returns true
// when the room goroutine should exit.
func (r *Room) shutdown() bool {
	select {
	case cmd := <-r.cmds:
		r.handle(cmd)
		return false
	default:
	}

	r.reg.drop(r.key, r)
	close(r.done)

	// Reject stragglers that were queued before done closed. Joins get a
	// negative reply so the registry retries against a fresh room.
	for {
		select {
		case cmd := <-r.cmds:
			if cmd.reply != nil {
				cmd.reply <- -1
			}
		default:
			r.typing.stopAll()
			return true
		}
	}
}

func (r *Room) post(cmd roomCmd) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.cmds <- cmd:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) isClosed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// join subscribes c and reports the resulting member count. ok is false when
// the room shut down before the join could be processed.
func (r *Room) join(c *Client) (members int, ok bool) {
	reply := make(chan int, 1)
	if !r.post(roomCmd{op: opJoin, client: c, reply: reply}) {
		return 0, false
	}
	select {
	case n := <-reply:
		return n, n >= 0
	case <-r.done:
		// The reply may have been sent just before done closed.
		select {
		case n := <-reply:
			return n, n >= 0
		default:
			return 0, false
		}
	}
}

func (r *Room) leave(c *Client) {
	// If the post fails the room already shut down, which implies c was
	// no longer a member.
	r.post(roomCmd{op: opLeave, client: c})
}

func (r *Room) handle(cmd roomCmd) {
	switch cmd.op {
	case opJoin:
		r.handleJoin(cmd)
	case opLeave:
		r.handleLeave(cmd)
	case opSend:
		r.handleSend(cmd)
	case opEdit:
		r.handleEdit(cmd)
	case opDelete:
		r.handleDelete(cmd)
	case opTypingStart:
		if r.typing.start(cmd.client.Identity, cmd.client) {
			r.broadcast(r.typingEvent(cmd.client.Identity, true), cmd.client)
		}
	case opTypingStop:
		if r.typing.stop(cmd.client.Identity) {
			r.broadcast(r.typingEvent(cmd.client.Identity, false), cmd.client)
		}
	case opTypingExpired:
		if entry, ok := r.typing.expired(cmd.identity, cmd.gen); ok {
			r.broadcast(r.typingEvent(cmd.identity, false), entry.client)
		}
	case opBroadcast:
		r.broadcast(cmd.ev, nil)
	case opAssistDone:
		r.handleAssistDone(cmd)
	}
}

func (r *Room) handleJoin(cmd roomCmd) {
	c := cmd.client
	if _, exists := r.members[c]; exists {
		// Idempotent: same membership, no duplicate notifications.
		cmd.reply <- len(r.members)
		return
	}

	r.members[c] = struct{}{}
	r.memberCount.Store(int64(len(r.members)))
	cmd.reply <- len(r.members)

	r.broadcast(&Event{Kind: EventUserJoined, Room: r.key, User: c.Identity}, c)
	go r.sendHistory(c)

	r.reg.log.Debug().Str("room", r.key.String()).Str("user", c.Identity).
		Int("members", len(r.members)).Msg("user joined room")
}

func (r *Room) handleLeave(cmd roomCmd) {
	c := cmd.client
	if _, exists := r.members[c]; !exists {
		return
	}

	delete(r.members, c)
	r.memberCount.Store(int64(len(r.members)))

	for _, identity := range r.typing.stopOwned(c) {
		r.broadcast(r.typingEvent(identity, false), c)
	}
	r.broadcast(&Event{Kind: EventUserLeft, Room: r.key, User: c.Identity}, c)

	r.reg.log.Debug().Str("room", r.key.String()).Str("user", c.Identity).
		Int("members", len(r.members)).Msg("user left room")
}

func (r *Room) handleSend(cmd roomCmd) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	msg := &store.Message{
		GroupID: r.key.GroupID,
		ChatID:  r.key.ChatID,
		Author:  cmd.client.Identity,
		Role:    store.RoleUser,
		Content: cmd.content,
		ReplyTo: cmd.replyTo,
	}
	id, err := r.reg.store.AppendMessage(ctx, msg)
	if err != nil {
		r.reg.log.Error().Err(err).Str("room", r.key.String()).Msg("append message")
		cmd.client.send(&Event{
			Kind:  EventError,
			Room:  r.key,
			Error: coreError(ErrCodeInternal, "failed to store message"),
		})
		return
	}

	env := &Envelope{
		ID:        id,
		Role:      RoleUser,
		Author:    cmd.client.Identity,
		Content:   cmd.content,
		ReplyTo:   cmd.replyTo,
		Ref:       cmd.ref,
		CreatedAt: msg.CreatedAt,
	}
	// The author receives the echo too; it carries the authoritative id
	// their optimistic copy is reconciled against.
	r.broadcast(&Event{Kind: EventNewMessage, Room: r.key, Message: env}, nil)

	if !cmd.disableAssist && r.reg.assist != nil {
		r.enqueueAssist(cmd.content)
	}
}

func (r *Room) handleEdit(cmd roomCmd) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := r.reg.store.UpdateMessage(ctx, cmd.id, cmd.client.Identity, cmd.content); err != nil {
		cmd.client.send(r.storeErrorEvent(err, "edit message"))
		return
	}

	r.broadcast(&Event{
		Kind: EventMessageEdited,
		Room: r.key,
		Message: &Envelope{
			ID:      cmd.id,
			Role:    RoleUser,
			Author:  cmd.client.Identity,
			Content: cmd.content,
		},
	}, nil)
}

func (r *Room) handleDelete(cmd roomCmd) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := r.reg.store.DeleteMessage(ctx, cmd.id, cmd.client.Identity); err != nil {
		cmd.client.send(r.storeErrorEvent(err, "delete message"))
		return
	}

	r.broadcast(&Event{
		Kind:    EventMessageDeleted,
		Room:    r.key,
		Message: &Envelope{ID: cmd.id},
	}, nil)
}

func (r *Room) storeErrorEvent(err error, opName string) *Event {
	var coreErr *CoreError
	switch {
	case errors.Is(err, store.ErrNotFound):
		coreErr = coreError(ErrCodeMessageNotFound, "message not found")
	case errors.Is(err, store.ErrNotAuthor):
		coreErr = coreError(ErrCodeNotAuthor, "not the message author")
	default:
		r.reg.log.Error().Err(err).Str("room", r.key.String()).Msg(opName)
		coreErr = coreError(ErrCodeInternal, "internal error")
	}
	return &Event{Kind: EventError, Room: r.key, Error: coreErr}
}

func (r *Room) sendHistory(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	msgs, err := r.reg.store.History(ctx, r.key.GroupID, r.key.ChatID, r.reg.opts.HistoryLimit)
	if err != nil {
		r.reg.log.Warn().Err(err).Str("room", r.key.String()).Msg("fetch history")
		return
	}

	envs := make([]*Envelope, 0, len(msgs))
	for _, m := range msgs {
		envs = append(envs, envelopeFromStored(m))
	}
	c.send(&Event{Kind: EventHistory, Room: r.key, Messages: envs})
}

func (r *Room) typingEvent(identity string, typing bool) *Event {
	return &Event{Kind: EventUserTyping, Room: r.key, User: identity, Typing: typing}
}

// broadcast fans an event out to members in the order the room decided it.
// Per-room ordering is what clients rely on; cross-room order is undefined.
func (r *Room) broadcast(ev *Event, exclude *Client) {
	for c := range r.members {
		if c == exclude {
			continue
		}
		c.send(ev)
	}
}

func envelopeFromStored(m *store.Message) *Envelope {
	return &Envelope{
		ID:        m.ID,
		Role:      Role(m.Role),
		Author:    m.Author,
		Content:   m.Content,
		ReplyTo:   m.ReplyTo,
		CreatedAt: m.CreatedAt,
	}
}
