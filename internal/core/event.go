package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNewMessage notifies clients about a message broadcast in a room.
	EventNewMessage EventKind = iota
	// EventMessageEdited notifies clients that a message's content changed.
	EventMessageEdited
	// EventMessageDeleted notifies clients that a message was removed.
	EventMessageDeleted
	// EventUserJoined notifies clients about a user joining a room.
	EventUserJoined
	// EventUserLeft notifies clients about a user leaving a room.
	EventUserLeft
	// EventUserTyping notifies clients that a user started or stopped typing.
	EventUserTyping
	// EventRoomJoined acknowledges a join to the joining client.
	EventRoomJoined
	// EventHistory delivers message history to a client upon joining a room.
	EventHistory
	// EventError notifies a client about a rejected operation.
	EventError
)

// Event is sent to clients to describe what happened in a room.
type Event struct {
	Kind     EventKind
	Room     RoomKey
	User     string
	Typing   bool
	Members  int
	Message  *Envelope
	Messages []*Envelope
	Error    *CoreError
}
