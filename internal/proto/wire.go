package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoinRoom      = "join_room"
	InboundTypeLeaveRoom     = "leave_room"
	InboundTypeSendMessage   = "send_message"
	InboundTypeEditMessage   = "edit_message"
	InboundTypeDeleteMessage = "delete_message"
	InboundTypeTypingStart   = "typing_start"
	InboundTypeTypingStop    = "typing_stop"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNewMessage     = "new_message"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventUserTyping     = "user_typing"
	EventRoomJoined     = "room_joined"
	EventHistory        = "history"

	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// RoomRef addresses a room in inbound frames.
type RoomRef struct {
	GroupID string `json:"group_id"`
	ChatID  string `json:"chat_id"`
}

// SendData is a chat message from the client. Ref is an opaque correlation
// token; the relay echoes it back verbatim on the broadcast so the sender
// can promote its optimistic copy.
type SendData struct {
	RoomRef
	Content   string `json:"content"`
	ReplyTo   *int64 `json:"reply_to,omitempty"`
	Ref       string `json:"ref,omitempty"`
	DisableAI bool   `json:"disable_ai,omitempty"`
}

// EditData replaces the content of a previously confirmed message.
type EditData struct {
	RoomRef
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// DeleteData removes a previously confirmed message.
type DeleteData struct {
	RoomRef
	ID int64 `json:"id"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessagePayload is the wire form of one message envelope.
type MessagePayload struct {
	ID      int64    `json:"id"`
	GroupID string   `json:"group_id"`
	ChatID  string   `json:"chat_id"`
	Role    string   `json:"role"`
	Sender  string   `json:"sender"`
	Content string   `json:"content"`
	ReplyTo *int64   `json:"reply_to,omitempty"`
	Ref     string   `json:"ref,omitempty"`
	Sources []string `json:"sources,omitempty"`
	Failure bool     `json:"failure,omitempty"`
	TS      int64    `json:"ts,omitempty"`
}

// PresencePayload notifies that a user joined or left a room.
type PresencePayload struct {
	GroupID string `json:"group_id"`
	ChatID  string `json:"chat_id"`
	User    string `json:"user"`
}

// TypingPayload notifies that a user started or stopped typing.
type TypingPayload struct {
	GroupID  string `json:"group_id"`
	ChatID   string `json:"chat_id"`
	User     string `json:"user"`
	IsTyping bool   `json:"is_typing"`
}

// RoomJoinedPayload acknowledges a join to the joining client.
type RoomJoinedPayload struct {
	GroupID string `json:"group_id"`
	ChatID  string `json:"chat_id"`
	Members int    `json:"members"`
}

// HistoryPayload delivers past messages on room entry, oldest first.
type HistoryPayload struct {
	GroupID  string           `json:"group_id"`
	ChatID   string           `json:"chat_id"`
	Messages []MessagePayload `json:"messages"`
}

// DeletedPayload identifies a removed message.
type DeletedPayload struct {
	GroupID string `json:"group_id"`
	ChatID  string `json:"chat_id"`
	ID      int64  `json:"id"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
