package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/soundprediction/go-librarian/pkg/cache"
	"github.com/soundprediction/go-librarian/pkg/embedder"
	"github.com/soundprediction/go-librarian/pkg/graph"
	"github.com/soundprediction/go-librarian/pkg/llm"
)

// PlotSearchConfig configures the plot-similarity strategy.
type PlotSearchConfig struct {
	IndexName    string
	TopK         int
	EmbeddingTTL time.Duration
}

// NewPlotSearchTool returns the semantic retrieval strategy: embed the
// utterance, query the vector index, and let the model compose an answer
// from the retrieved plots only.
func NewPlotSearchTool(store graph.Store, embedderClient embedder.Client, llmClient llm.Client, cacheClient cache.Cache, config PlotSearchConfig, logger *slog.Logger) Tool {
	if config.IndexName == "" {
		config.IndexName = "summaryPlots"
	}
	if config.TopK <= 0 {
		config.TopK = 5
	}
	if config.EmbeddingTTL <= 0 {
		config.EmbeddingTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return Tool{
		Name:        "Books Plot Search",
		Description: "For finding books by describing their plot or story, or identifying a book from a partial description of what happens in it.",
		Func: func(ctx context.Context, input string) (string, error) {
			vector, err := utteranceEmbedding(ctx, embedderClient, cacheClient, input, config.EmbeddingTTL, logger)
			if err != nil {
				return "", err
			}

			matches, err := store.SearchPlots(ctx, config.IndexName, vector, config.TopK)
			if err != nil {
				logger.Error("plot search failed", "error", err)
				return "", err
			}
			if len(matches) == 0 {
				return "I could not find any books in the library with a plot like that.", nil
			}

			resp, err := llmClient.Chat(ctx, []llm.Message{
				llm.NewSystemMessage(fmt.Sprintf(retrievalInstructions, renderMatches(matches))),
				llm.NewUserMessage(input),
			})
			if err != nil {
				return "", err
			}
			return resp.Content, nil
		},
	}
}

// utteranceEmbedding embeds the input, consulting the cache first so
// repeated questions skip the provider round trip.
func utteranceEmbedding(ctx context.Context, embedderClient embedder.Client, cacheClient cache.Cache, input string, ttl time.Duration, logger *slog.Logger) ([]float32, error) {
	key := cache.EmbeddingKey(input)
	if cacheClient != nil {
		if data, err := cacheClient.Get(key); err == nil {
			var vector []float32
			if err := json.Unmarshal(data, &vector); err == nil {
				return vector, nil
			}
		}
	}

	vector, err := embedderClient.EmbedSingle(ctx, input)
	if err != nil {
		logger.Error("failed to embed utterance", "error", err)
		return nil, err
	}

	if cacheClient != nil {
		if data, err := json.Marshal(vector); err == nil {
			if err := cacheClient.Set(key, data, ttl); err != nil {
				logger.Warn("failed to cache utterance embedding", "error", err)
			}
		}
	}

	return vector, nil
}

func renderMatches(matches []graph.PlotMatch) string {
	var buf strings.Builder
	for i, match := range matches {
		fmt.Fprintf(&buf, "%d. %q", i+1, match.Title)
		if len(match.Authors) > 0 {
			fmt.Fprintf(&buf, " by %s", strings.Join(match.Authors, ", "))
		}
		if len(match.Genres) > 0 {
			fmt.Fprintf(&buf, " (genres: %s)", strings.Join(match.Genres, ", "))
		}
		fmt.Fprintf(&buf, ", similarity %.3f\n%s\n\n", match.Score, match.Summary)
	}
	return buf.String()
}
