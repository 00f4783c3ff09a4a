// Package pipeline orchestrates the retrieval-augmented query flow:
// analyze, expand, retrieve, rerank, compress, assemble. Stages run
// strictly in order; each stage's algorithm needs the prior stage's
// complete output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/answerforge/answerd/internal/analyzer"
	"github.com/answerforge/answerd/internal/assembler"
	"github.com/answerforge/answerd/internal/compressor"
	"github.com/answerforge/answerd/internal/expander"
	"github.com/answerforge/answerd/internal/logging"
	"github.com/answerforge/answerd/internal/reranker"
	"github.com/answerforge/answerd/internal/retriever"
)

// Stage failures surfaced to callers. Analysis and expansion failures
// degrade inside their stages and never reach here.
var (
	// ErrRetrieval means the evidence search itself failed.
	ErrRetrieval = errors.New("could not search the product documents")
	// ErrGeneration means the final answer could not be generated.
	ErrGeneration = errors.New("could not generate an answer")
)

// noEvidenceResponse is the deterministic answer for empty retrieval.
const noEvidenceResponse = "I don't have enough information in the uploaded documents to answer this question."

// Stage contracts, satisfied by the concrete stage packages.
type (
	QueryAnalyzer interface {
		Analyze(ctx context.Context, query, productHint string) analyzer.Analysis
	}
	QueryExpander interface {
		Expand(ctx context.Context, query string, analysis analyzer.Analysis, opts expander.Options) expander.Expanded
	}
	EvidenceRetriever interface {
		Retrieve(ctx context.Context, plan expander.Expanded, limit int, scoreThreshold float64) ([]retriever.SearchResult, error)
	}
	ChunkReranker interface {
		Rerank(ctx context.Context, query string, results []retriever.SearchResult, plan expander.Expanded, finalChunkCount int) []reranker.Ranked
	}
	ChunkCompressor interface {
		Compress(query string, ranked []reranker.Ranked, tokenCap int, aggressive bool) []compressor.Chunk
	}
	AnswerAssembler interface {
		Assemble(ctx context.Context, query string, chunks []compressor.Chunk, style string) (assembler.Assembled, error)
	}
)

// GapRecorder receives queries whose answers admitted missing context,
// for routing into an analytics or suggestion queue.
type GapRecorder func(ctx context.Context, query string, analysis assembler.ContextAnalysis)

// Source is one cited evidence chunk returned to the caller.
type Source struct {
	ChunkID  string `json:"chunkId"`
	Filename string `json:"filename,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Performance carries per-stage wall-clock timings.
type Performance struct {
	StageTimingsMS map[string]int64 `json:"stageTimingsMs"`
	TotalMS        int64            `json:"totalMs"`
}

// Metadata carries per-stage result counts.
type Metadata struct {
	Mode            string `json:"mode"`
	RetrievedChunks int    `json:"retrievedChunks"`
	RerankedChunks  int    `json:"rerankedChunks"`
	FinalChunks     int    `json:"finalChunks"`
}

// Result is the pipeline's answer for one query.
type Result struct {
	Query           string                    `json:"query"`
	Response        string                    `json:"response"`
	Sources         []Source                  `json:"sources"`
	ContextAnalysis assembler.ContextAnalysis `json:"contextAnalysis"`
	Performance     Performance               `json:"performance"`
	Metadata        Metadata                  `json:"metadata"`
}

// Deps wires the pipeline's stages.
type Deps struct {
	Analyzer   QueryAnalyzer
	Expander   QueryExpander
	Retriever  EvidenceRetriever
	Reranker   ChunkReranker
	Compressor ChunkCompressor
	Assembler  AnswerAssembler

	// ChunkTokenCap bounds each compressed chunk; 0 means 400.
	ChunkTokenCap int
	// GapRecorder is optional.
	GapRecorder GapRecorder
	Logger      *logging.Logger
}

// Pipeline answers queries over the product documents.
type Pipeline struct {
	deps Deps
}

// New creates a Pipeline.
func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.ChunkTokenCap <= 0 {
		deps.ChunkTokenCap = 400
	}
	return &Pipeline{deps: deps}
}

// Query runs the full pipeline for one question.
func (p *Pipeline) Query(ctx context.Context, query string, opts Options) (Result, error) {
	start := time.Now()
	cfg := opts.resolve()
	timings := make(map[string]int64, 6)
	result := Result{Query: query}

	analysis := timed(timings, "analyze", func() analyzer.Analysis {
		return p.deps.Analyzer.Analyze(ctx, query, cfg.productName)
	})

	plan := timed(timings, "expand", func() expander.Expanded {
		return p.deps.Expander.Expand(ctx, query, analysis, expander.Options{
			UseMultiQuery: cfg.useMultiQuery,
			MaxQueries:    cfg.maxQueries,
		})
	})
	result.Metadata.Mode = plan.Kind.String()

	if plan.Kind == expander.ModeDirect {
		result.Response = plan.DirectResponse
		result.Performance = performance(timings, start)
		return result, nil
	}

	retrieved, err := timedErr(timings, "retrieve", func() ([]retriever.SearchResult, error) {
		return p.deps.Retriever.Retrieve(ctx, plan, cfg.retrievalCount, cfg.similarityThreshold)
	})
	if err != nil {
		p.deps.Logger.Error(ctx, "retrieval failed", zap.Error(err))
		return Result{}, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	result.Metadata.RetrievedChunks = len(retrieved)

	if len(retrieved) == 0 {
		result.Response = noEvidenceResponse
		result.ContextAnalysis = assembler.ContextAnalysis{
			IsContextMissing: true,
			Category:         "documentation_gap",
			Priority:         "high",
		}
		result.Performance = performance(timings, start)
		p.recordGap(ctx, query, result.ContextAnalysis)
		return result, nil
	}

	ranked := timed(timings, "rerank", func() []reranker.Ranked {
		if cfg.useReranking {
			return p.deps.Reranker.Rerank(ctx, plan.NormalizedQuery, retrieved, plan, cfg.finalChunkCount)
		}
		return passthroughRank(retrieved, 2*cfg.finalChunkCount)
	})
	result.Metadata.RerankedChunks = len(ranked)

	chunks := timed(timings, "compress", func() []compressor.Chunk {
		if cfg.useCompression {
			return p.deps.Compressor.Compress(plan.NormalizedQuery, ranked, p.deps.ChunkTokenCap, false)
		}
		return passthroughChunks(ranked)
	})
	if len(chunks) > cfg.finalChunkCount {
		chunks = chunks[:cfg.finalChunkCount]
	}
	result.Metadata.FinalChunks = len(chunks)

	style := assembler.StyleMarkdown
	if !cfg.formatAsMarkdown {
		style = assembler.StyleText
	}
	assembled, err := timedErr(timings, "generate", func() (assembler.Assembled, error) {
		return p.deps.Assembler.Assemble(ctx, query, chunks, style)
	})
	if err != nil {
		p.deps.Logger.Error(ctx, "answer generation failed", zap.Error(err))
		return Result{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	result.Response = assembled.Response
	result.ContextAnalysis = assembled.ContextAnalysis
	result.Sources = sources(assembled.UsedChunkIDs, chunks)
	result.Performance = performance(timings, start)

	if assembled.ContextAnalysis.IsContextMissing {
		p.recordGap(ctx, query, assembled.ContextAnalysis)
	}

	p.deps.Logger.Info(ctx, "query answered",
		zap.String("mode", result.Metadata.Mode),
		zap.Int("retrieved", result.Metadata.RetrievedChunks),
		zap.Int("final", result.Metadata.FinalChunks),
		zap.Int64("total_ms", result.Performance.TotalMS))
	return result, nil
}

func (p *Pipeline) recordGap(ctx context.Context, query string, analysis assembler.ContextAnalysis) {
	if p.deps.GapRecorder != nil {
		p.deps.GapRecorder(ctx, query, analysis)
	}
}

// passthroughRank wraps retrieval order unchanged when reranking is off.
func passthroughRank(results []retriever.SearchResult, limit int) []reranker.Ranked {
	if len(results) > limit {
		results = results[:limit]
	}
	ranked := make([]reranker.Ranked, len(results))
	for i, result := range results {
		ranked[i] = reranker.Ranked{SearchResult: result, RerankScore: float64(result.Score)}
	}
	return ranked
}

// passthroughChunks maps ranked chunks directly when compression is off.
func passthroughChunks(ranked []reranker.Ranked) []compressor.Chunk {
	chunks := make([]compressor.Chunk, len(ranked))
	for i, r := range ranked {
		chunks[i] = compressor.Chunk{
			OriginalChunkID: r.ChunkID,
			Content:         r.Content,
			TokenEstimate:   len(r.Content) / 4,
			Filename:        r.Filename,
		}
	}
	return chunks
}

// sources keeps only the chunks the answer actually cited, in citation
// order.
func sources(usedIDs []string, chunks []compressor.Chunk) []Source {
	byID := make(map[string]compressor.Chunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.OriginalChunkID] = chunk
	}
	out := make([]Source, 0, len(usedIDs))
	for _, id := range usedIDs {
		chunk, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, Source{ChunkID: id, Filename: chunk.Filename, Content: chunk.Content})
	}
	return out
}

func timed[T any](timings map[string]int64, stage string, fn func() T) T {
	start := time.Now()
	out := fn()
	timings[stage] = time.Since(start).Milliseconds()
	return out
}

func timedErr[T any](timings map[string]int64, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	timings[stage] = time.Since(start).Milliseconds()
	return out, err
}

func performance(timings map[string]int64, start time.Time) Performance {
	return Performance{StageTimingsMS: timings, TotalMS: time.Since(start).Milliseconds()}
}
