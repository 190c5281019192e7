package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 1536, cfg.OpenAI.EmbeddingDimension)
	assert.Equal(t, 6000, cfg.Chunker.MaxChunkChars)
	assert.Equal(t, 200, cfg.Chunker.OverlapChars)
	assert.Equal(t, 10, cfg.Retrieval.DefaultLimit)
	assert.Equal(t, 0.8, cfg.Retrieval.DefaultMinScore)
	assert.Equal(t, "rerank-v3.5", cfg.Reranker.Model)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("OPENAI_EMBEDDING_DIMENSION", "768")
	t.Setenv("CHUNK_MAX_CHARS", "3000")
	t.Setenv("RETRIEVAL_DEFAULT_MIN_SCORE", "0.75")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 768, cfg.OpenAI.EmbeddingDimension)
	assert.Equal(t, 3000, cfg.Chunker.MaxChunkChars)
	assert.Equal(t, 0.75, cfg.Retrieval.DefaultMinScore)
}

func TestLoad_MissingEnvFileIsNotAnError(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	_, err := Load("/nonexistent/.env")
	assert.NoError(t, err)
}

func TestValidate_RequiresAPIKey(t *testing.T) {
	cfg := &Config{}
	cfg.OpenAI.EmbeddingDimension = 1536
	cfg.Chunker.MaxChunkChars = 6000
	cfg.Chunker.OverlapChars = 200

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestValidate_RejectsBadChunkSizes(t *testing.T) {
	cfg := &Config{}
	cfg.OpenAI.APIKey = "key"
	cfg.OpenAI.EmbeddingDimension = 1536
	cfg.Chunker.MaxChunkChars = 100
	cfg.Chunker.OverlapChars = 100

	assert.Error(t, cfg.Validate())
}
