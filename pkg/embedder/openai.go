package embedder

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DefaultMaxRetries bounds the provider-level backoff loop.
const DefaultMaxRetries = 3

// OpenAIEmbedder implements the Client interface for OpenAI's embedding
// models and OpenAI-compatible services.
type OpenAIEmbedder struct {
	client *openai.Client
	config Config
	logger *slog.Logger
}

// NewOpenAIEmbedder creates a new OpenAI embedder client.
func NewOpenAIEmbedder(apiKey string, config Config, logger *slog.Logger) *OpenAIEmbedder {
	var client *openai.Client
	if config.BaseURL != "" {
		clientConfig := openai.DefaultConfig(apiKey)
		clientConfig.BaseURL = config.BaseURL
		client = openai.NewClientWithConfig(clientConfig)
	} else {
		client = openai.NewClient(apiKey)
	}

	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.Dimensions == 0 {
		switch config.Model {
		case "text-embedding-ada-002", "text-embedding-3-small":
			config.Dimensions = 1536
		case "text-embedding-3-large":
			config.Dimensions = 3072
		}
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIEmbedder{
		client: client,
		config: config,
		logger: logger,
	}
}

// Embed generates embeddings for multiple texts, batching requests.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	// The embedding endpoint treats newlines as token noise.
	cleaned := make([]string, len(texts))
	for i, text := range texts {
		cleaned[i] = strings.ReplaceAll(text, "\n", " ")
	}

	var all [][]float32
	for i := 0; i < len(cleaned); i += e.config.BatchSize {
		end := i + e.config.BatchSize
		if end > len(cleaned) {
			end = len(cleaned)
		}

		batch, err := e.embedBatch(ctx, cleaned[i:end])
		if err != nil {
			e.logger.Error("embedding batch failed", "from", i, "to", end, "error", err)
			return nil, err
		}
		all = append(all, batch...)
	}

	return all, nil
}

// EmbedSingle generates an embedding for a single text.
func (e *OpenAIEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, &ProviderError{Provider: "openai", Op: "embedding", Err: errNoEmbeddings}
	}
	return embeddings[0], nil
}

// Dimensions returns the number of dimensions in the embeddings.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// Close cleans up resources (no-op for OpenAI embedder).
func (e *OpenAIEmbedder) Close() error {
	return nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			e.logger.Warn("retrying embedding request", "backoff", backoff, "attempt", attempt)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req := openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(e.config.Model),
		}
		if e.config.Dimensions > 0 {
			req.Dimensions = e.config.Dimensions
		}

		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			lastErr = err
			if isRetriable(err) && attempt < e.config.MaxRetries {
				continue
			}
			return nil, &ProviderError{Provider: "openai", Op: "embedding", Err: err}
		}

		embeddings := make([][]float32, len(resp.Data))
		for i, item := range resp.Data {
			vector := make([]float32, len(item.Embedding))
			copy(vector, item.Embedding)
			embeddings[i] = vector
		}
		return embeddings, nil
	}

	return nil, &ProviderError{Provider: "openai", Op: "embedding", Err: lastErr}
}

var errNoEmbeddings = &emptyResultError{}

type emptyResultError struct{}

func (*emptyResultError) Error() string { return "no embeddings returned" }

func isRetriable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"rate limit",
		"rate_limit",
		"timeout",
		"connection",
		"internal server error",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
		"temporary failure",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
