package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom subscribes the client to a room.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom unsubscribes the client from its room.
	CommandLeaveRoom
	// CommandSendMessage relays a chat message to room participants.
	CommandSendMessage
	// CommandEditMessage replaces the content of an earlier message.
	CommandEditMessage
	// CommandDeleteMessage removes an earlier message.
	CommandDeleteMessage
	// CommandTypingStart marks the client as typing.
	CommandTypingStart
	// CommandTypingStop clears the client's typing state.
	CommandTypingStop
)

// Command represents an action requested by a client.
type Command struct {
	Kind          CommandKind
	Room          RoomKey
	Content       string
	ReplyTo       *int64
	Ref           string
	MessageID     int64
	DisableAssist bool
}
