// Package config provides configuration loading for answerd.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. See LoadWithFile for precedence rules.
package config

import (
	"fmt"
	"time"

	"github.com/answerforge/answerd/internal/logging"
)

// Config holds the complete answerd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     logging.Config    `koanf:"logging"`
	LLM         LLMConfig         `koanf:"llm"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Catalog     CatalogConfig     `koanf:"catalog"`
	Pipeline    PipelineConfig    `koanf:"pipeline"`

	// CompanyContext strings are injected into classification prompts
	// so the model knows the document domain.
	CompanyContext []string `koanf:"company_context"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// QueryTimeout bounds a single query request end to end.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// LLMConfig holds completion service configuration.
type LLMConfig struct {
	// BaseURL is an OpenAI-compatible chat completions endpoint.
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`

	// Temperature used for free-text generation. Classification and
	// extraction calls always run at temperature 0.
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// EmbeddingsConfig holds embedding service configuration.
type EmbeddingsConfig struct {
	// BaseURL is the base URL for the embedding API.
	// For TEI: http://localhost:8080/v1
	// For OpenAI: https://api.openai.com/v1
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`
}

// VectorStoreConfig holds vector search backend configuration.
type VectorStoreConfig struct {
	// Provider selects the backend implementation: "qdrant" or "chromem".
	Provider   string        `koanf:"provider"`
	Collection string        `koanf:"collection"`
	Qdrant     QdrantConfig  `koanf:"qdrant"`
	Chromem    ChromemConfig `koanf:"chromem"`
}

// QdrantConfig holds Qdrant gRPC client configuration.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	UseTLS     bool   `koanf:"use_tls"`
	VectorSize int    `koanf:"vector_size"`
}

// ChromemConfig holds embedded chromem-go configuration.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory.
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// CatalogConfig holds product catalog source configuration.
type CatalogConfig struct {
	// URL is the endpoint returning the product catalog as JSON.
	URL string `koanf:"url"`

	// RefreshTTL is how long a fetched catalog stays fresh.
	RefreshTTL time.Duration `koanf:"refresh_ttl"`

	// SimilarityThreshold is the minimum resolver match score.
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
}

// PipelineConfig holds query pipeline defaults. Request options may
// override these per call. The toggles are pointers so an absent key
// defaults to enabled while an explicit false still disables the stage.
type PipelineConfig struct {
	RetrievalCount      int     `koanf:"retrieval_count"`
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
	MaxQueries          int     `koanf:"max_queries"`
	FinalChunkCount     int     `koanf:"final_chunk_count"`
	ChunkTokenCap       int     `koanf:"chunk_token_cap"`
	UseReranking        *bool   `koanf:"use_reranking"`
	UseCompression      *bool   `koanf:"use_compression"`
	UseMultiQuery       *bool   `koanf:"use_multi_query"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.Server.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm base_url required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model required")
	}
	if c.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings base_url required")
	}
	if c.Embeddings.Model == "" {
		return fmt.Errorf("embeddings model required")
	}
	switch c.VectorStore.Provider {
	case "qdrant", "chromem":
	default:
		return fmt.Errorf("vectorstore provider must be 'qdrant' or 'chromem', got %q", c.VectorStore.Provider)
	}
	if c.VectorStore.Collection == "" {
		return fmt.Errorf("vectorstore collection required")
	}
	if c.Catalog.RefreshTTL <= 0 {
		return fmt.Errorf("catalog refresh_ttl must be positive")
	}
	if c.Pipeline.RetrievalCount <= 0 {
		return fmt.Errorf("pipeline retrieval_count must be positive")
	}
	if c.Pipeline.SimilarityThreshold < 0 || c.Pipeline.SimilarityThreshold > 1 {
		return fmt.Errorf("pipeline similarity_threshold must be in [0,1]")
	}
	if c.Pipeline.MaxQueries < 1 || c.Pipeline.MaxQueries > 8 {
		return fmt.Errorf("pipeline max_queries must be in [1,8], got %d", c.Pipeline.MaxQueries)
	}
	return nil
}
