package http

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nexuschat/nexus-relay/internal/core"
	"github.com/nexuschat/nexus-relay/internal/proto"
)

func TestEditedEventOmitsTimestamp(t *testing.T) {
	out := outboundFromEvent(&core.Event{
		Kind: core.EventMessageEdited,
		Room: core.RoomKey{GroupID: "g1", ChatID: "c1"},
		Message: &core.Envelope{
			ID:      3,
			Role:    core.RoleUser,
			Author:  "alice",
			Content: "v2",
		},
	})

	payload, ok := out.Data.(proto.MessagePayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", out.Data)
	}
	if payload.TS != 0 {
		t.Fatalf("edit event fabricated a timestamp: %d", payload.TS)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal outbound: %v", err)
	}
	if strings.Contains(string(raw), `"ts"`) {
		t.Fatalf("ts emitted on edit event: %s", raw)
	}
}

func TestNewMessageEventCarriesTimestamp(t *testing.T) {
	created := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	out := outboundFromEvent(&core.Event{
		Kind: core.EventNewMessage,
		Room: core.RoomKey{GroupID: "g1", ChatID: "c1"},
		Message: &core.Envelope{
			ID:        3,
			Role:      core.RoleUser,
			Author:    "alice",
			Content:   "hi",
			CreatedAt: created,
		},
	})

	payload, ok := out.Data.(proto.MessagePayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", out.Data)
	}
	if payload.TS != created.Unix() {
		t.Fatalf("unexpected ts: %d", payload.TS)
	}
}
