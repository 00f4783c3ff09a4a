// Package reranker reorders retrieved chunks by answer relevance.
//
// Non-trivial queries go through a multi-criteria completion call;
// simple queries use a lexical-overlap heuristic to bound latency. Both
// paths are deterministic for identical inputs and never fail: a scoring
// error falls back to the retrieval order already present in the input.
package reranker

import (
	"context"

	"go.uber.org/zap"

	"github.com/answerforge/answerd/internal/expander"
	"github.com/answerforge/answerd/internal/llm"
	"github.com/answerforge/answerd/internal/logging"
	"github.com/answerforge/answerd/internal/retriever"
)

// maxChunksPerDocument bounds how many chunks one document contributes
// unless evidence is scarce.
const maxChunksPerDocument = 3

// SubScores are the multi-criteria components of a rerank score.
type SubScores struct {
	Relevance    float64
	Completeness float64
	Specificity  float64
}

// Ranked is a retrieved chunk with its rerank score.
type Ranked struct {
	retriever.SearchResult
	RerankScore float64
	SubScores   SubScores
}

// Reranker scores and reorders retrieved chunks.
type Reranker struct {
	llm    llm.Client
	logger *logging.Logger
}

// New creates a Reranker.
func New(client llm.Client, logger *logging.Logger) *Reranker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reranker{llm: client, logger: logger}
}

// Rerank orders results by relevance to the query, truncated to
// 2x finalChunkCount so the compressor has room to drop low-value
// material. Comparison queries and queries with more than two variants
// take the multi-criteria path; the rest take the heuristic path.
func (r *Reranker) Rerank(ctx context.Context, query string, results []retriever.SearchResult, plan expander.Expanded, finalChunkCount int) []Ranked {
	if len(results) == 0 {
		return nil
	}
	if finalChunkCount <= 0 {
		finalChunkCount = 10
	}
	limit := 2 * finalChunkCount

	var ranked []Ranked
	if plan.Kind == expander.ModeComparison || len(plan.SearchQueries) > 2 {
		var err error
		ranked, err = r.rerankLLM(ctx, query, results)
		if err != nil {
			r.logger.Warn(ctx, "multi-criteria rerank failed, keeping retrieval order", zap.Error(err))
			ranked = retrievalOrder(results)
		}
	} else {
		ranked = rerankHeuristic(query, results)
	}

	ranked = dropNearDuplicates(ranked)
	ranked = enforceDiversity(ranked, limit)

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// retrievalOrder wraps results without reordering, scored by their
// position so downstream truncation stays meaningful.
func retrievalOrder(results []retriever.SearchResult) []Ranked {
	ranked := make([]Ranked, len(results))
	for i, result := range results {
		ranked[i] = Ranked{
			SearchResult: result,
			RerankScore:  1.0 - float64(i)/float64(len(results)),
		}
	}
	return ranked
}

// enforceDiversity caps chunks per document. Chunks cut by the cap are
// re-admitted in score order when the capped set cannot fill the target,
// so scarce evidence is never discarded.
func enforceDiversity(ranked []Ranked, target int) []Ranked {
	perDocument := make(map[string]int)
	kept := make([]Ranked, 0, len(ranked))
	var overflow []Ranked
	for _, chunk := range ranked {
		key := chunk.DocumentID
		if key == "" {
			key = chunk.Filename
		}
		if perDocument[key] >= maxChunksPerDocument {
			overflow = append(overflow, chunk)
			continue
		}
		perDocument[key]++
		kept = append(kept, chunk)
	}
	for _, chunk := range overflow {
		if len(kept) >= target {
			break
		}
		kept = append(kept, chunk)
	}
	return kept
}
