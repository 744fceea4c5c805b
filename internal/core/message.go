package core

import "time"

// RoomKey addresses one broadcast domain: a chat nested under a group.
type RoomKey struct {
	GroupID string
	ChatID  string
}

func (k RoomKey) String() string {
	return k.GroupID + ":" + k.ChatID
}

// Role marks who authored an envelope.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Envelope is the unit broadcast to a room. ID is assigned by the message
// store and is the only identifier valid for edit/delete correlation. Ref is
// the client-supplied correlation token, echoed back verbatim so the sender
// can match the broadcast against its optimistic copy.
type Envelope struct {
	ID        int64
	Role      Role
	Author    string
	Content   string
	ReplyTo   *int64
	Ref       string
	Sources   []string
	Failure   bool
	CreatedAt time.Time
}
