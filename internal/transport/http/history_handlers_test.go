package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexuschat/nexus-relay/internal/config"
	"github.com/nexuschat/nexus-relay/internal/core"
	"github.com/nexuschat/nexus-relay/internal/store"
	"github.com/nexuschat/nexus-relay/internal/store/memory"
)

func TestHistoryEndpointRequiresAuth(t *testing.T) {
	ts := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/api/history?group_id=g1&chat_id=c1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestHistoryEndpointReturnsMessages(t *testing.T) {
	nop := zerolog.Nop()
	st := memory.New()
	registry := core.NewRegistry(st, nil, &nop, core.Options{})

	for _, content := range []string{"one", "two"} {
		if _, err := st.AppendMessage(context.Background(), &store.Message{
			GroupID: "g1", ChatID: "c1", Author: "alice",
			Role: store.RoleUser, Content: content,
		}); err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	server := NewServer(registry, testAuthCfg, st, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
	}, &nop)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	req, _ := stdhttp.NewRequest(stdhttp.MethodGet, ts.URL+"/api/history?group_id=g1&chat_id=c1", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "alice"))

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var messages []HistoryMessage
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content != "one" || messages[1].Content != "two" {
		t.Fatalf("unexpected order: %+v", messages)
	}
	if messages[0].Sender != "alice" || messages[0].Role != "user" {
		t.Fatalf("unexpected message fields: %+v", messages[0])
	}
}

func TestHistoryEndpointValidatesParams(t *testing.T) {
	ts := startTestServer(t)

	req, _ := stdhttp.NewRequest(stdhttp.MethodGet, ts.URL+"/api/history?group_id=g1", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "alice"))

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	req, _ = stdhttp.NewRequest(stdhttp.MethodGet, ts.URL+"/api/history?group_id=g1&chat_id=c1&limit=zero", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "alice"))

	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
