package vectorstore

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"

	"github.com/answerforge/answerd/internal/config"
	"github.com/answerforge/answerd/internal/embeddings"
)

// NewBackend creates a vector search backend from configuration.
//
// Providers:
//   - "chromem": embedded chromem-go store (default, no external service)
//   - "qdrant":  external Qdrant over gRPC
func NewBackend(cfg config.VectorStoreConfig, embedder embeddings.Embedder) (Backend, error) {
	switch cfg.Provider {
	case "chromem":
		return NewChromemBackend(ChromemConfig{
			Path:           cfg.Chromem.Path,
			Compress:       cfg.Chromem.Compress,
			CollectionName: cfg.Collection,
		}, embeddingFunc(embedder))

	case "qdrant":
		return NewQdrantBackend(QdrantConfig{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			UseTLS:         cfg.Qdrant.UseTLS,
			CollectionName: cfg.Collection,
			VectorSize:     uint64(cfg.Qdrant.VectorSize),
		})

	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// embeddingFunc adapts an embeddings.Embedder to chromem's EmbeddingFunc.
func embeddingFunc(embedder embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}
