package librarian

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soundprediction/go-librarian/pkg/config"
	"github.com/soundprediction/go-librarian/pkg/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the librarian chat HTTP server",
	Long: `Start the HTTP server exposing the chat agent.

Endpoints:
- POST /chat     one conversational turn (session_id optional)
- GET  /healthz  connectivity check plus graph counts`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
	serveMode string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "Server host")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Server port")
	serveCmd.Flags().StringVar(&serveMode, "mode", "debug", "Server mode (debug, release, test)")

	serveCmd.Flags().String("db-uri", "", "Neo4j URI")
	serveCmd.Flags().String("db-username", "", "Neo4j username")
	serveCmd.Flags().String("db-password", "", "Neo4j password")
	serveCmd.Flags().String("db-database", "", "Neo4j database name")

	serveCmd.Flags().String("llm-model", "", "Chat model")
	serveCmd.Flags().String("llm-api-key", "", "Provider API key")
	serveCmd.Flags().String("embedding-model", "", "Embedding model")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideServeFlags(cmd, cfg)

	if err := validateServeConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client, store, log, err := buildClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	// Fail at startup rather than on the first chat turn.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = store.Ping(pingCtx)
	pingCancel()
	if err != nil {
		return err
	}

	srv := server.New(cfg, client, log)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	}
}

func overrideServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serveMode
	}
	if cmd.Flags().Changed("db-uri") {
		cfg.Database.URI, _ = cmd.Flags().GetString("db-uri")
	}
	if cmd.Flags().Changed("db-username") {
		cfg.Database.Username, _ = cmd.Flags().GetString("db-username")
	}
	if cmd.Flags().Changed("db-password") {
		cfg.Database.Password, _ = cmd.Flags().GetString("db-password")
	}
	if cmd.Flags().Changed("db-database") {
		cfg.Database.Database, _ = cmd.Flags().GetString("db-database")
	}
	if cmd.Flags().Changed("llm-model") {
		cfg.LLM.Model, _ = cmd.Flags().GetString("llm-model")
	}
	if cmd.Flags().Changed("llm-api-key") {
		cfg.LLM.APIKey, _ = cmd.Flags().GetString("llm-api-key")
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
	if cmd.Flags().Changed("embedding-model") {
		cfg.Embedding.Model, _ = cmd.Flags().GetString("embedding-model")
	}
}

func validateServeConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Database.URI == "" {
		return fmt.Errorf("database URI is required")
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required (set OPENAI_API_KEY)")
	}
	return nil
}
