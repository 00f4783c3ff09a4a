package vectorstore

import (
	"context"
	"fmt"
	"os"
	"runtime"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("answerd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Empty path creates an in-memory database (tests, ingest dry runs).
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// CollectionName is the collection holding the document chunks.
	CollectionName string
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.CollectionName == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.CollectionName)
}

// ChromemBackend implements Backend using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: pure Go, no external service, optional persistence to
// gob files. It is the default backend for local deployments and tests.
type ChromemBackend struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     ChromemConfig
}

// NewChromemBackend creates a ChromemBackend with the given configuration.
// embedFn is used to embed documents at ingest time; queries arrive
// pre-embedded through Search.
func NewChromemBackend(config ChromemConfig, embedFn chromem.EmbeddingFunc) (*ChromemBackend, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(config.Path, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", config.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(config.CollectionName, nil, embedFn)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", config.CollectionName, err)
	}

	return &ChromemBackend{
		db:         db,
		collection: collection,
		config:     config,
	}, nil
}

// Search performs similarity search against the collection.
func (b *ChromemBackend) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float32, filter map[string]any) ([]Hit, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemBackend.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", b.config.CollectionName),
		attribute.Int("limit", limit),
	)

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}

	// chromem rejects nResults greater than the collection size.
	if count := b.collection.Count(); limit > count {
		limit = count
	}
	if limit == 0 {
		return []Hit{}, nil
	}

	results, err := b.collection.QueryEmbedding(ctx, vector, limit, stringFilter(filter), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", b.config.CollectionName, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		if res.Similarity < scoreThreshold {
			continue
		}

		hit := Hit{
			ID:      res.ID,
			Content: res.Content,
			Score:   res.Similarity,
		}
		if len(res.Metadata) > 0 {
			hit.Metadata = make(map[string]any, len(res.Metadata))
			for k, v := range res.Metadata {
				hit.Metadata[k] = v
			}
			hit.Filename, _ = res.Metadata["filename"]
		}
		hits = append(hits, hit)
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// AddDocuments embeds and stores documents in the collection.
func (b *ChromemBackend) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	chromemDocs := make([]chromem.Document, 0, len(docs))
	for _, doc := range docs {
		metadata := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			if s, ok := v.(string); ok {
				metadata[k] = s
			}
		}

		chromemDocs = append(chromemDocs, chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: metadata,
		})
	}

	if err := b.collection.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

// Close releases resources. chromem persists on write, so this is a no-op.
func (b *ChromemBackend) Close() error {
	return nil
}
