package librarian

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	librarianlib "github.com/soundprediction/go-librarian"
	"github.com/soundprediction/go-librarian/pkg/cache"
	"github.com/soundprediction/go-librarian/pkg/config"
	"github.com/soundprediction/go-librarian/pkg/embedder"
	"github.com/soundprediction/go-librarian/pkg/graph"
	"github.com/soundprediction/go-librarian/pkg/llm"
	"github.com/soundprediction/go-librarian/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "librarian",
	Short: "A book-recommendation chatbot backed by a Neo4j library graph",
	Long: `go-librarian answers questions about books, authors, and genres by
routing each message to general chat, plot-similarity retrieval over a
vector index, or generated Cypher against the library graph.

Use "librarian ingest" to load a CSV of books and "librarian serve" to
start the chat API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./librarian.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("librarian")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.librarian")
	}

	viper.AutomaticEnv()
	// Missing config files are fine; defaults and env cover everything.
	_ = viper.ReadInConfig()
}

// buildClient constructs the full dependency graph from configuration:
// store, providers, optional cache, and the librarian client on top.
func buildClient(cfg *config.Config) (*librarianlib.Client, *graph.Neo4jStore, *slog.Logger, error) {
	log := logger.NewDefaultLogger(logger.ParseLevel(cfg.Log.Level))

	store, err := graph.NewNeo4jStore(cfg.Database.URI, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database, log)
	if err != nil {
		return nil, nil, nil, err
	}

	temperature := cfg.LLM.Temperature
	maxTokens := cfg.LLM.MaxTokens
	llmClient := llm.Client(llm.NewOpenAIClient(cfg.LLM.APIKey, llm.Config{
		Model:       cfg.LLM.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		BaseURL:     cfg.LLM.BaseURL,
	}))
	llmClient = llm.NewBreakerClient(llmClient, "openai-chat")

	embedderClient := embedder.NewOpenAIEmbedder(cfg.Embedding.APIKey, embedder.Config{
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Index.Dimensions,
		BaseURL:    cfg.Embedding.BaseURL,
	}, log)

	var cacheClient cache.Cache
	if cfg.Cache.Path != "" {
		badgerCache, err := cache.NewBadgerCache(cfg.Cache.Path)
		if err != nil {
			store.Close(context.Background())
			return nil, nil, nil, fmt.Errorf("failed to open cache: %w", err)
		}
		cacheClient = badgerCache
	}

	client, err := librarianlib.NewClient(store, llmClient, embedderClient, cacheClient, &librarianlib.Config{
		IndexName:  cfg.Index.Name,
		Dimensions: cfg.Index.Dimensions,
		Similarity: cfg.Index.Similarity,
		TopK:       cfg.Index.TopK,
		SchemaTTL:  time.Duration(cfg.Cache.SchemaTTLMinutes) * time.Minute,
	}, log)
	if err != nil {
		store.Close(context.Background())
		return nil, nil, nil, err
	}

	return client, store, log, nil
}
