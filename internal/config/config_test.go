package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithFileDefaults(t *testing.T) {
	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, 8087, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.QueryTimeout)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "product_chunks", cfg.VectorStore.Collection)
	assert.Equal(t, time.Hour, cfg.Catalog.RefreshTTL)
	assert.Equal(t, 30, cfg.Pipeline.RetrievalCount)
	assert.Equal(t, 0.5, cfg.Pipeline.SimilarityThreshold)
	assert.Equal(t, 5, cfg.Pipeline.MaxQueries)
	assert.Equal(t, 10, cfg.Pipeline.FinalChunkCount)
	assert.Equal(t, 400, cfg.Pipeline.ChunkTokenCap)
	require.NotNil(t, cfg.Pipeline.UseReranking)
	assert.True(t, *cfg.Pipeline.UseReranking)
	require.NotNil(t, cfg.Pipeline.UseCompression)
	assert.True(t, *cfg.Pipeline.UseCompression)
}

func TestLoadWithFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9999
vectorstore:
  provider: qdrant
  collection: catalog_docs
  qdrant:
    host: qdrant.internal
pipeline:
  retrieval_count: 15
  max_queries: 3
`)
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "catalog_docs", cfg.VectorStore.Collection)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 15, cfg.Pipeline.RetrievalCount)
	assert.Equal(t, 3, cfg.Pipeline.MaxQueries)
	// Untouched sections keep defaults.
	assert.Equal(t, 384, cfg.VectorStore.Qdrant.VectorSize)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"unknown provider", func(c *Config) { c.VectorStore.Provider = "pinecone" }},
		{"max queries over cap", func(c *Config) { c.Pipeline.MaxQueries = 9 }},
		{"threshold over 1", func(c *Config) { c.Pipeline.SimilarityThreshold = 1.5 }},
		{"missing llm model", func(c *Config) { c.LLM.Model = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadWithFile("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
