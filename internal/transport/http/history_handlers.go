package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nexuschat/nexus-relay/internal/store"
)

const defaultHistoryLimit = 50

// HistoryHandlers serves the REST history fetch the web client performs on
// room entry, alongside the history event pushed over the socket.
type HistoryHandlers struct {
	store store.MessageStore
	log   *zerolog.Logger
}

// NewHistoryHandlers creates a new history handlers instance.
func NewHistoryHandlers(st store.MessageStore, logger *zerolog.Logger) *HistoryHandlers {
	return &HistoryHandlers{store: st, log: logger}
}

// HistoryMessage is one message in the history response.
type HistoryMessage struct {
	ID      int64  `json:"id"`
	Role    string `json:"role"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
	TS      int64  `json:"ts"`
}

// GetHistory returns recent messages of a room, oldest first.
// GET /api/history?group_id=...&chat_id=...&limit=...
func (h *HistoryHandlers) GetHistory(c *gin.Context) {
	groupID := c.Query("group_id")
	chatID := c.Query("chat_id")
	if groupID == "" || chatID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "group_id and chat_id are required"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	messages, err := h.store.History(c.Request.Context(), groupID, chatID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("group_id", groupID).Str("chat_id", chatID).Msg("failed to fetch history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]HistoryMessage, 0, len(messages))
	for _, m := range messages {
		response = append(response, HistoryMessage{
			ID:      m.ID,
			Role:    string(m.Role),
			Sender:  m.Author,
			Content: m.Content,
			TS:      m.CreatedAt.Unix(),
		})
	}

	c.JSON(http.StatusOK, response)
}
