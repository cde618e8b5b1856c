package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/soundprediction/go-librarian/pkg/cache"
	"github.com/soundprediction/go-librarian/pkg/graph"
	"github.com/soundprediction/go-librarian/pkg/llm"
)

// CypherQAConfig configures the structured query strategy.
type CypherQAConfig struct {
	// SchemaTTL bounds how long the rendered schema is cached before it is
	// refetched from the store.
	SchemaTTL time.Duration
}

// Generated queries must be read-only; anything that could mutate the
// graph is a generation error, not a candidate for execution.
var writeClausePattern = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|FOREACH)\b|\bLOAD\s+CSV\b|db\.create`)

// NewCypherQATool returns the structured query strategy: generate Cypher
// from the live schema, execute it read-only, and render the rows into
// prose. Generation failures degrade to an explanatory answer.
func NewCypherQATool(store graph.Store, llmClient llm.Client, cacheClient cache.Cache, config CypherQAConfig, logger *slog.Logger) Tool {
	if config.SchemaTTL <= 0 {
		config.SchemaTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return Tool{
		Name:        "Book Information",
		Description: "For finding books by author, genre, rating, or publication year, recommending a book, or providing detailed information about a specific book, using database queries.",
		Func: func(ctx context.Context, input string) (string, error) {
			schema, err := liveSchema(ctx, store, cacheClient, config.SchemaTTL, logger)
			if err != nil {
				return "", err
			}

			cypher, err := generateCypher(ctx, llmClient, schema, input)
			if err != nil {
				logger.Warn("cypher generation rejected", "error", err)
				return "I couldn't turn that question into a library search. Could you rephrase it in terms of books, authors, or genres?", nil
			}

			rows, err := store.QueryRead(ctx, cypher, nil)
			if err != nil {
				// A syntactically plausible query can still reference
				// labels or properties the store does not have.
				genErr := &QueryGenerationError{Query: cypher, Err: err}
				logger.Warn("generated cypher failed to execute", "error", genErr)
				return "I couldn't find an answer to that in the library. Could you rephrase the question?", nil
			}
			if len(rows) == 0 {
				return "I could not find anything matching that in the library.", nil
			}

			rendered, err := json.Marshal(rows)
			if err != nil {
				return "", fmt.Errorf("failed to render query results: %w", err)
			}

			resp, err := llmClient.Chat(ctx, []llm.Message{
				llm.NewSystemMessage(fmt.Sprintf(answerFromRowsInstructions, string(rendered))),
				llm.NewUserMessage(input),
			})
			if err != nil {
				return "", err
			}
			return resp.Content, nil
		},
	}
}

// liveSchema fetches the rendered schema from the store, caching it with
// the configured TTL. Deleting cache.SchemaKey forces a refetch.
func liveSchema(ctx context.Context, store graph.Store, cacheClient cache.Cache, ttl time.Duration, logger *slog.Logger) (string, error) {
	if cacheClient != nil {
		if data, err := cacheClient.Get(cache.SchemaKey); err == nil {
			return string(data), nil
		}
	}

	schema, err := store.Schema(ctx)
	if err != nil {
		logger.Error("failed to fetch graph schema", "error", err)
		return "", err
	}

	if cacheClient != nil {
		if err := cacheClient.Set(cache.SchemaKey, []byte(schema), ttl); err != nil {
			logger.Warn("failed to cache graph schema", "error", err)
		}
	}

	return schema, nil
}

func generateCypher(ctx context.Context, llmClient llm.Client, schema, question string) (string, error) {
	resp, err := llmClient.Chat(ctx, []llm.Message{
		llm.NewUserMessage(fmt.Sprintf(cypherGenerationTemplate, schema, question)),
	})
	if err != nil {
		return "", err
	}

	cypher := sanitizeCypher(resp.Content)
	if cypher == "" {
		return "", &QueryGenerationError{Query: resp.Content, Err: fmt.Errorf("empty query")}
	}
	if match := writeClausePattern.FindString(cypher); match != "" {
		return "", &QueryGenerationError{Query: cypher, Err: fmt.Errorf("query contains write clause %q", match)}
	}

	return cypher, nil
}

// sanitizeCypher strips markdown code fences and a leading language tag
// from a model-generated query.
func sanitizeCypher(raw string) string {
	query := strings.TrimSpace(raw)
	query = strings.TrimPrefix(query, "```cypher")
	query = strings.TrimPrefix(query, "```")
	query = strings.TrimSuffix(query, "```")
	query = strings.TrimSpace(query)
	query = strings.TrimPrefix(query, "cypher\n")
	return strings.TrimSpace(query)
}
