package reranker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/answerforge/answerd/internal/llm"
	"github.com/answerforge/answerd/internal/retriever"
)

// snippetLength bounds how much chunk text the scoring prompt carries.
const snippetLength = 600

// Multi-criteria blend weights.
const (
	relevanceWeight    = 0.5
	completenessWeight = 0.3
	specificityWeight  = 0.2
)

// chunkScore is one entry of the structured scoring payload.
type chunkScore struct {
	Index        int     `json:"index"`
	Relevance    float64 `json:"relevance"`
	Completeness float64 `json:"completeness"`
	Specificity  float64 `json:"specificity"`
}

type scoringResponse struct {
	Scores []chunkScore `json:"scores"`
}

// rerankLLM scores every chunk in one completion call on relevance,
// completeness and specificity, then orders by the weighted blend.
// Ties break by original index so identical inputs rank identically.
func (r *Reranker) rerankLLM(ctx context.Context, query string, results []retriever.SearchResult) ([]Ranked, error) {
	var out scoringResponse
	err := llm.CompleteJSON(ctx, r.llm, llm.Request{
		System: scoringSystemPrompt,
		Prompt: scoringPrompt(query, results),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("scoring chunks: %w", err)
	}

	byIndex := make(map[int]chunkScore, len(out.Scores))
	for _, score := range out.Scores {
		if score.Index >= 0 && score.Index < len(results) {
			byIndex[score.Index] = score
		}
	}
	if len(byIndex) == 0 {
		return nil, fmt.Errorf("scoring chunks: no valid indexes in response")
	}

	type indexed struct {
		Ranked
		index int
	}
	scored := make([]indexed, len(results))
	for i, result := range results {
		score := byIndex[i]
		sub := SubScores{
			Relevance:    clamp01(score.Relevance),
			Completeness: clamp01(score.Completeness),
			Specificity:  clamp01(score.Specificity),
		}
		scored[i] = indexed{
			Ranked: Ranked{
				SearchResult: result,
				RerankScore: relevanceWeight*sub.Relevance +
					completenessWeight*sub.Completeness +
					specificityWeight*sub.Specificity,
				SubScores: sub,
			},
			index: i,
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RerankScore != scored[j].RerankScore {
			return scored[i].RerankScore > scored[j].RerankScore
		}
		return scored[i].index < scored[j].index
	})

	ranked := make([]Ranked, len(scored))
	for i, s := range scored {
		ranked[i] = s.Ranked
	}
	return ranked, nil
}

const scoringSystemPrompt = `You score context chunks for how well they answer a question. For each chunk give three scores in [0,1]: relevance (does it address the question), completeness (does it answer fully on its own), specificity (concrete facts over generic text). Respond with JSON: {"scores": [{"index": 0, "relevance": 0.0, "completeness": 0.0, "specificity": 0.0}]} covering every chunk.`

func scoringPrompt(query string, results []retriever.SearchResult) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nChunks:\n")
	for i, result := range results {
		fmt.Fprintf(&b, "[%d] %s\n", i, snippet(result.Content, snippetLength))
	}
	return b.String()
}

// snippet cuts content at the byte limit, backing up to a rune boundary.
func snippet(content string, limit int) string {
	if len(content) <= limit {
		return content
	}
	for limit > 0 && !utf8.RuneStart(content[limit]) {
		limit--
	}
	return content[:limit]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
