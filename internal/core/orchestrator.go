package core

import (
	"context"
	"time"

	"github.com/nexuschat/nexus-relay/internal/store"
)

// assistFailureText is broadcast in place of an answer when the upstream
// call fails. The envelope's Failure flag lets clients render it apart from
// a normal assistant reply.
const assistFailureText = "Sorry, I encountered an error processing your request."

type assistOutcome struct {
	answer Answer
	err    error
}

// enqueueAssist runs from the room goroutine. At most one upstream call is
// in flight per room; further requests wait their turn so one transcript
// never interleaves two assistant replies.
func (r *Room) enqueueAssist(query string) {
	if r.assistBusy {
		r.assistQueue = append(r.assistQueue, query)
		return
	}
	r.startAssist(query)
}

func (r *Room) startAssist(query string) {
	r.assistBusy = true

	// The assistant goes through the same typing contract as any user.
	if r.typing.start(r.reg.opts.AssistIdentity, nil) {
		r.broadcast(r.typingEvent(r.reg.opts.AssistIdentity, true), nil)
	}

	go r.generate(query)
}

// generate performs the blocking upstream call off the room goroutine and
// posts the outcome back into the command loop.
func (r *Room) generate(query string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.reg.opts.AssistTimeout)
	defer cancel()

	question := Question{
		Query:       query,
		RoomContext: r.key.String(),
		History:     r.recentTurns(ctx, query),
	}

	started := time.Now()
	answer, err := r.reg.assist.Answer(ctx, question)
	if err != nil {
		r.reg.log.Warn().Err(err).Str("room", r.key.String()).
			Dur("elapsed", time.Since(started)).Msg("answer generation failed")
	} else {
		r.reg.log.Debug().Str("room", r.key.String()).
			Dur("elapsed", time.Since(started)).Msg("answer generated")
	}

	r.post(roomCmd{op: opAssistDone, outcome: &assistOutcome{answer: answer, err: err}})
}

// recentTurns builds the history window for one upstream call. The
// triggering message is already journaled by the time this runs, so it is
// trimmed off the tail; the upstream sees it only as the query.
func (r *Room) recentTurns(ctx context.Context, query string) []Turn {
	limit := r.reg.opts.AssistWindow
	msgs, err := r.reg.store.History(ctx, r.key.GroupID, r.key.ChatID, limit+1)
	if err != nil {
		r.reg.log.Warn().Err(err).Str("room", r.key.String()).Msg("fetch assist history")
		return nil
	}

	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		sender := m.Author
		if m.Role == store.RoleAssistant {
			sender = r.reg.opts.AssistIdentity
		}
		turns = append(turns, Turn{Role: Role(m.Role), Sender: sender, Content: m.Content})
	}

	if n := len(turns); n > 0 && turns[n-1].Role == RoleUser && turns[n-1].Content == query {
		turns = turns[:n-1]
	}
	if len(turns) > limit {
		turns = turns[1:]
	}
	return turns
}

// handleAssistDone runs from the room goroutine. Success or failure, the
// assistant's typing indicator is cleared before anything else can happen in
// the room; a stuck indicator is a correctness bug.
func (r *Room) handleAssistDone(cmd roomCmd) {
	r.assistBusy = false
	out := cmd.outcome

	content := out.answer.Text
	var sources []string
	failed := out.err != nil
	if failed {
		content = assistFailureText
	} else {
		sources = out.answer.Sources
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	msg := &store.Message{
		GroupID: r.key.GroupID,
		ChatID:  r.key.ChatID,
		Author:  r.reg.opts.AssistIdentity,
		Role:    store.RoleAssistant,
		Content: content,
	}
	if _, err := r.reg.store.AppendMessage(ctx, msg); err != nil {
		// Keep the reply visible even if the journal write failed.
		r.reg.log.Error().Err(err).Str("room", r.key.String()).Msg("append assistant message")
	}

	r.broadcast(&Event{
		Kind: EventNewMessage,
		Room: r.key,
		Message: &Envelope{
			ID:        msg.ID,
			Role:      RoleAssistant,
			Author:    r.reg.opts.AssistIdentity,
			Content:   content,
			Sources:   sources,
			Failure:   failed,
			CreatedAt: msg.CreatedAt,
		},
	}, nil)

	if r.typing.stop(r.reg.opts.AssistIdentity) {
		r.broadcast(r.typingEvent(r.reg.opts.AssistIdentity, false), nil)
	}

	if len(r.assistQueue) > 0 {
		next := r.assistQueue[0]
		r.assistQueue = r.assistQueue[1:]
		r.startAssist(next)
	}
}
