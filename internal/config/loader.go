package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/answerforge/answerd/internal/logging"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, LLM_BASE_URL, etc.)
//  2. YAML config file
//  3. Hardcoded defaults
//
// Environment variables use underscore separator and are uppercased.
// The transformer splits on the first underscore only:
//
//	SERVER_PORT          -> server.port
//	LLM_BASE_URL         -> llm.base_url
//	PIPELINE_MAX_QUERIES -> pipeline.max_queries
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			f, err := os.Open(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to open config file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return nil, fmt.Errorf("failed to stat config file: %w", err)
			}
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
			}

			content, err := io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}

			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		// SECTION_FIELD_NAME -> section.field_name
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8087
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.QueryTimeout == 0 {
		cfg.Server.QueryTimeout = 60 * time.Second
	}

	if cfg.Logging.Format == "" {
		cfg.Logging = *logging.NewDefaultConfig()
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2000
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080/v1"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "product_chunks"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.VectorStore.Qdrant.VectorSize == 0 {
		cfg.VectorStore.Qdrant.VectorSize = 384 // bge-small-en-v1.5 dimensions
	}

	if cfg.Catalog.RefreshTTL == 0 {
		cfg.Catalog.RefreshTTL = time.Hour
	}
	if cfg.Catalog.SimilarityThreshold == 0 {
		cfg.Catalog.SimilarityThreshold = 0.5
	}

	if cfg.Pipeline.RetrievalCount == 0 {
		cfg.Pipeline.RetrievalCount = 30
	}
	if cfg.Pipeline.SimilarityThreshold == 0 {
		cfg.Pipeline.SimilarityThreshold = 0.5
	}
	if cfg.Pipeline.MaxQueries == 0 {
		cfg.Pipeline.MaxQueries = 5
	}
	if cfg.Pipeline.FinalChunkCount == 0 {
		cfg.Pipeline.FinalChunkCount = 10
	}
	if cfg.Pipeline.ChunkTokenCap == 0 {
		cfg.Pipeline.ChunkTokenCap = 400
	}
	enabled := true
	if cfg.Pipeline.UseReranking == nil {
		cfg.Pipeline.UseReranking = &enabled
	}
	if cfg.Pipeline.UseCompression == nil {
		cfg.Pipeline.UseCompression = &enabled
	}
	if cfg.Pipeline.UseMultiQuery == nil {
		cfg.Pipeline.UseMultiQuery = &enabled
	}
}
