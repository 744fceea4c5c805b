package core

import "context"

// Turn is one prior message handed to the answer-generation dependency.
type Turn struct {
	Role    Role
	Sender  string
	Content string
}

// Question is one request to the answer-generation dependency. History is
// bounded by the configured window before it reaches this struct.
type Question struct {
	Query       string
	RoomContext string
	History     []Turn
}

// Answer is a successful reply from the answer-generation dependency.
type Answer struct {
	Text    string
	Sources []string
}

// Answerer generates an assistant reply for a user message. The call may
// block for seconds; the orchestrator keeps it off the room's critical path.
// Any error is treated as one opaque upstream failure, never retried.
type Answerer interface {
	Answer(ctx context.Context, q Question) (Answer, error)
}
