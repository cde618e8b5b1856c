package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	librarian "github.com/soundprediction/go-librarian"
	"github.com/soundprediction/go-librarian/pkg/server/dto"
)

// ChatHandler handles conversational requests. It is the one boundary
// where errors become user-visible messages instead of propagating.
type ChatHandler struct {
	client *librarian.Client
	logger *slog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(client *librarian.Client, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		client: client,
		logger: logger,
	}
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	answer, err := h.client.Respond(c.Request.Context(), sessionID, req.Message)
	if err != nil {
		h.logger.Error("chat turn failed", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "chat_failed",
			Message: "the librarian could not answer right now, please try again",
		})
		return
	}

	c.JSON(http.StatusOK, dto.ChatResponse{
		SessionID: sessionID,
		Answer:    answer,
	})
}
