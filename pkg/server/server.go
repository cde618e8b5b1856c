package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	librarian "github.com/soundprediction/go-librarian"
	"github.com/soundprediction/go-librarian/pkg/config"
	"github.com/soundprediction/go-librarian/pkg/server/handlers"
)

// Server exposes the chat agent over HTTP.
type Server struct {
	config *config.Config
	client *librarian.Client
	logger *slog.Logger
	engine *gin.Engine
	http   *http.Server
}

// New creates a new server around a librarian client.
func New(cfg *config.Config, client *librarian.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		client: client,
		logger: logger,
	}
}

// Setup configures routes and middleware.
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	chat := handlers.NewChatHandler(s.client, s.logger)
	health := handlers.NewHealthHandler(s.client)

	engine.POST("/chat", chat.Chat)
	engine.GET("/healthz", health.Health)

	s.engine = engine
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Start runs the HTTP server until it fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting chat server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
