// Package assist talks to the external answer-generation service. The relay
// treats it as an opaque HTTP dependency: a query plus bounded history goes
// in, an answer with optional source citations comes out, and every failure
// mode collapses into one error.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/nexuschat/nexus-relay/internal/core"
)

// Client implements core.Answerer over HTTP.
type Client struct {
	baseURL string
	hc      *http.Client
	log     *zerolog.Logger
}

// New builds a client for the service at baseURL (no trailing slash needed).
// Call deadlines come from the caller's context.
func New(baseURL string, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{},
		log:     logger,
	}
}

type queryRequest struct {
	Query       string      `json:"query"`
	RoomContext string      `json:"room_context"`
	History     []queryTurn `json:"history"`
}

type queryTurn struct {
	Role    string `json:"role"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

type queryResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}

// Answer posts the question to the service and returns its reply.
func (c *Client) Answer(ctx context.Context, q core.Question) (core.Answer, error) {
	payload := queryRequest{
		Query:       q.Query,
		RoomContext: q.RoomContext,
		History:     make([]queryTurn, 0, len(q.History)),
	}
	for _, turn := range q.History {
		payload.History = append(payload.History, queryTurn{
			Role:    string(turn.Role),
			Sender:  turn.Sender,
			Content: turn.Content,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return core.Answer{}, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rag/query", bytes.NewReader(body))
	if err != nil {
		return core.Answer{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return core.Answer{}, fmt.Errorf("query answer service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little for the log; the cause doesn't change handling.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Debug().Int("status", resp.StatusCode).Bytes("body", snippet).Msg("answer service non-2xx")
		return core.Answer{}, fmt.Errorf("answer service returned status %d", resp.StatusCode)
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return core.Answer{}, fmt.Errorf("decode answer: %w", err)
	}

	return core.Answer{Text: out.Answer, Sources: out.Sources}, nil
}
