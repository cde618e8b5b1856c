package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	librarian "github.com/soundprediction/go-librarian"
	"github.com/soundprediction/go-librarian/pkg/server/dto"
)

// HealthHandler reports service health and graph counts.
type HealthHandler struct {
	client *librarian.Client
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(client *librarian.Client) *HealthHandler {
	return &HealthHandler{client: client}
}

// Health handles GET /healthz.
func (h *HealthHandler) Health(c *gin.Context) {
	stats, err := h.client.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.HealthResponse{Status: "degraded"})
		return
	}

	c.JSON(http.StatusOK, dto.HealthResponse{
		Status: "ok",
		Graph:  stats,
	})
}
