// Package librarian ties a Neo4j library graph, an embedding provider, and
// a language model into a conversational book-recommendation service: an
// ingestion pipeline that loads books with plot embeddings, and a chat
// agent that routes each utterance to general chat, plot-similarity
// retrieval, or schema-driven Cypher generation.
package librarian

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/soundprediction/go-librarian/pkg/agent"
	"github.com/soundprediction/go-librarian/pkg/cache"
	"github.com/soundprediction/go-librarian/pkg/embedder"
	"github.com/soundprediction/go-librarian/pkg/graph"
	"github.com/soundprediction/go-librarian/pkg/ingest"
	"github.com/soundprediction/go-librarian/pkg/llm"
)

// Config holds client-level settings shared by ingestion and chat.
type Config struct {
	// IndexName is the vector index over Book plot embeddings.
	IndexName string
	// Dimensions of the index; falls back to the embedder's output length.
	Dimensions int
	// Similarity function for the index.
	Similarity string
	// TopK plot matches retrieved per similarity search.
	TopK int
	// SchemaTTL bounds how long the rendered schema is cached.
	SchemaTTL time.Duration
}

// Client is the top-level entry point. Dependencies are constructed by the
// caller and injected; the client owns none of their lifecycles except
// through Close.
type Client struct {
	store    graph.Store
	llm      llm.Client
	embedder embedder.Client
	cache    cache.Cache
	agent    *agent.Agent
	pipeline *ingest.Pipeline
	logger   *slog.Logger
}

// NewClient wires the chat agent and ingestion pipeline over the provided
// dependencies. cacheClient may be nil to disable caching.
func NewClient(store graph.Store, llmClient llm.Client, embedderClient embedder.Client, cacheClient cache.Cache, config *Config, logger *slog.Logger) (*Client, error) {
	if config == nil {
		config = &Config{}
	}
	if config.IndexName == "" {
		config.IndexName = "summaryPlots"
	}
	if config.Similarity == "" {
		config.Similarity = graph.SimilarityCosine
	}
	if logger == nil {
		logger = slog.Default()
	}

	tools := []agent.Tool{
		agent.NewGeneralChatTool(llmClient),
		agent.NewPlotSearchTool(store, embedderClient, llmClient, cacheClient, agent.PlotSearchConfig{
			IndexName: config.IndexName,
			TopK:      config.TopK,
		}, logger),
		agent.NewCypherQATool(store, llmClient, cacheClient, agent.CypherQAConfig{
			SchemaTTL: config.SchemaTTL,
		}, logger),
	}

	chatAgent, err := agent.New(llmClient, store, tools, logger)
	if err != nil {
		return nil, err
	}

	pipeline := ingest.NewPipeline(store, embedderClient, ingest.Config{
		IndexName:  config.IndexName,
		Dimensions: config.Dimensions,
		Similarity: config.Similarity,
	}, logger)

	return &Client{
		store:    store,
		llm:      llmClient,
		embedder: embedderClient,
		cache:    cacheClient,
		agent:    chatAgent,
		pipeline: pipeline,
		logger:   logger,
	}, nil
}

// Respond handles one chat turn for the given session.
func (c *Client) Respond(ctx context.Context, sessionID, input string) (string, error) {
	return c.agent.Respond(ctx, sessionID, input)
}

// Ingest loads records into the graph and ensures the vector index exists.
func (c *Client) Ingest(ctx context.Context, records []ingest.Record) error {
	return c.pipeline.Run(ctx, records)
}

// IngestCSV parses a CSV stream and ingests its records.
func (c *Client) IngestCSV(ctx context.Context, r io.Reader) error {
	return c.pipeline.RunCSV(ctx, r)
}

// EnsureIndex creates the vector index when missing, without ingesting.
func (c *Client) EnsureIndex(ctx context.Context) error {
	return c.pipeline.EnsureIndex(ctx)
}

// Stats returns node and relationship counts from the graph.
func (c *Client) Stats(ctx context.Context) (*graph.Stats, error) {
	return c.store.Stats(ctx)
}

// Close releases all owned resources.
func (c *Client) Close(ctx context.Context) error {
	var firstErr error
	if err := c.store.Close(ctx); err != nil {
		firstErr = err
	}
	if c.llm != nil {
		if err := c.llm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
