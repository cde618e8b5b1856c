package config_test

import (
	"testing"

	"github.com/soundprediction/go-librarian/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "bolt://localhost:7687", cfg.Database.URI)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, "summaryPlots", cfg.Index.Name)
	assert.Equal(t, 1536, cfg.Index.Dimensions)
	assert.Equal(t, "cosine", cfg.Index.Similarity)
	assert.Equal(t, 5, cfg.Index.TopK)
	assert.Equal(t, 10, cfg.Cache.SchemaTTLMinutes)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NEO4J_URI", "neo4j://db.example.com:7687")
	t.Setenv("NEO4J_USERNAME", "reader")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("SERVER_HOST", "0.0.0.0")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)

	// The one API key feeds both providers.
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "neo4j://db.example.com:7687", cfg.Database.URI)
	assert.Equal(t, "reader", cfg.Database.Username)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadBadPortIgnored(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}
