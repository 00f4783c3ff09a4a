// Package retriever executes the retrieval plan against the vector
// backend and deduplicates the evidence.
package retriever

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/answerforge/answerd/internal/embeddings"
	"github.com/answerforge/answerd/internal/expander"
	"github.com/answerforge/answerd/internal/logging"
	"github.com/answerforge/answerd/internal/vectorstore"
)

// Metadata keys carried by ingested chunks.
const (
	metaProductName = "product_name"
	metaDocumentID  = "document_id"
)

// SearchResult is one retrieved chunk of evidence.
type SearchResult struct {
	ChunkID    string
	DocumentID string
	Content    string
	Filename   string
	Score      float32
	Metadata   map[string]any
}

// Retriever runs mode-specific retrieval strategies.
type Retriever struct {
	embedder embeddings.Embedder
	backend  vectorstore.Backend
	logger   *logging.Logger
}

// New creates a Retriever.
func New(embedder embeddings.Embedder, backend vectorstore.Backend, logger *logging.Logger) *Retriever {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Retriever{embedder: embedder, backend: backend, logger: logger}
}

// Retrieve executes the plan's strategy. Embedding or backend errors
// propagate: there is no safe default evidence.
func (r *Retriever) Retrieve(ctx context.Context, plan expander.Expanded, limit int, scoreThreshold float64) ([]SearchResult, error) {
	if len(plan.SearchQueries) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 30
	}

	var (
		results []SearchResult
		err     error
	)
	switch plan.Kind {
	case expander.ModeCatalog:
		results, err = r.retrieveCatalog(ctx, plan, limit, scoreThreshold)
	case expander.ModeComparison:
		results, err = r.retrieveComparison(ctx, plan, limit, scoreThreshold)
	default:
		results, err = r.retrieveStandard(ctx, plan, limit, scoreThreshold)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug(ctx, "retrieval complete",
		zap.String("mode", plan.Kind.String()),
		zap.Int("queries", len(plan.SearchQueries)),
		zap.Int("chunks", len(results)))
	return results, nil
}

// retrieveStandard batch-embeds all queries, searches each concurrently
// and merges keeping the first occurrence of every chunk id in
// query-processing order. Ties break by discovery order, not score; the
// reranker reorders later.
func (r *Retriever) retrieveStandard(ctx context.Context, plan expander.Expanded, limit int, scoreThreshold float64) ([]SearchResult, error) {
	var filter map[string]any
	if plan.LockedProduct != "" {
		filter = map[string]any{metaProductName: plan.LockedProduct}
	}

	perQuery, err := r.searchAll(ctx, plan.SearchQueries, limit, scoreThreshold, filter)
	if err != nil {
		return nil, err
	}
	return mergeFirstSeen(perQuery), nil
}

// searchAll embeds queries in one batch, then fans out one search per
// query. Results keep query order regardless of completion order.
func (r *Retriever) searchAll(ctx context.Context, queries []string, limit int, scoreThreshold float64, filter map[string]any) ([][]vectorstore.Hit, error) {
	vectors, err := r.embedder.EmbedBatch(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("embedding queries: %w", err)
	}
	if len(vectors) != len(queries) {
		return nil, fmt.Errorf("embedding queries: got %d vectors for %d queries", len(vectors), len(queries))
	}

	perQuery := make([][]vectorstore.Hit, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	for i := range queries {
		g.Go(func() error {
			hits, err := r.backend.Search(ctx, vectors[i], limit, float32(scoreThreshold), filter)
			if err != nil {
				return fmt.Errorf("searching %q: %w", queries[i], err)
			}
			perQuery[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return perQuery, nil
}

// mergeFirstSeen flattens per-query hits keeping each chunk id once, at
// its first position.
func mergeFirstSeen(perQuery [][]vectorstore.Hit) []SearchResult {
	seen := make(map[string]bool)
	var merged []SearchResult
	for _, hits := range perQuery {
		for _, hit := range hits {
			if seen[hit.ID] {
				continue
			}
			seen[hit.ID] = true
			merged = append(merged, toSearchResult(hit))
		}
	}
	return merged
}

func toSearchResult(hit vectorstore.Hit) SearchResult {
	result := SearchResult{
		ChunkID:  hit.ID,
		Content:  hit.Content,
		Filename: hit.Filename,
		Score:    hit.Score,
		Metadata: hit.Metadata,
	}
	if docID, ok := hit.Metadata[metaDocumentID].(string); ok {
		result.DocumentID = docID
	}
	return result
}
