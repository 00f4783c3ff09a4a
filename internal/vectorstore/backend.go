// Package vectorstore provides vector similarity search backends.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector backend")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")
)

// Hit is a single scored record returned by a similarity search.
type Hit struct {
	// ID is the chunk identifier, unique within the collection.
	ID string

	// Content is the chunk text.
	Content string

	// Filename is the source document filename, if stored.
	Filename string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Metadata contains the stored payload (document_id, product_name, ...).
	Metadata map[string]any
}

// Document represents a chunk to be stored in the vector store.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Backend is the vector similarity search contract consumed by the
// retriever.
//
// Implementations are transport-agnostic. The filter, when non-nil,
// restricts results to records whose metadata matches every key exactly
// (keyword match); only string filter values are supported.
type Backend interface {
	// Search returns up to limit hits for the query vector, ordered by
	// similarity score descending. Hits scoring below scoreThreshold are
	// dropped by the backend.
	Search(ctx context.Context, vector []float32, limit int, scoreThreshold float32, filter map[string]any) ([]Hit, error)

	// AddDocuments embeds and stores documents. Used by ingest tooling,
	// not by the query pipeline.
	AddDocuments(ctx context.Context, docs []Document) error

	// Close releases the backend connection and resources.
	Close() error
}

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name.
// Rejects uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// stringFilter narrows a metadata filter to its string-valued entries.
func stringFilter(filter map[string]any) map[string]string {
	if len(filter) == 0 {
		return nil
	}
	out := make(map[string]string, len(filter))
	for k, v := range filter {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
