package reranker

import (
	"sort"
	"strings"

	"github.com/answerforge/answerd/internal/retriever"
)

// rerankHeuristic scores chunks by lexical overlap with the query,
// blended evenly with the vector similarity score. No completion call,
// so simple queries stay fast.
func rerankHeuristic(query string, results []retriever.SearchResult) []Ranked {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return retrievalOrder(results)
	}

	type indexed struct {
		Ranked
		index int
	}
	scored := make([]indexed, len(results))
	for i, result := range results {
		overlap := termOverlap(queryTokens, tokenize(result.Content))
		scored[i] = indexed{
			Ranked: Ranked{
				SearchResult: result,
				RerankScore:  0.5*float64(result.Score) + 0.5*overlap,
				SubScores:    SubScores{Relevance: overlap},
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
	return ranked
}

// tokenize splits text into lowercase terms, dropping stopwords and
// tokens shorter than 3 chars.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlphanumeric(r)
	})
	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if len(token) > 2 && !stopwords[token] {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

var stopwords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true,
	"from": true, "was": true, "are": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "this": true, "that": true,
	"these": true, "those": true, "you": true, "they": true,
	"what": true, "which": true, "who": true, "when": true,
	"where": true, "why": true, "how": true, "not": true,
}

// termOverlap is the fraction of unique query terms present in the
// document tokens. Always in [0, 1].
func termOverlap(queryTokens, docTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	docSet := make(map[string]bool, len(docTokens))
	for _, token := range docTokens {
		docSet[token] = true
	}
	counted := make(map[string]bool, len(queryTokens))
	matches := 0
	for _, token := range queryTokens {
		if counted[token] {
			continue
		}
		counted[token] = true
		if docSet[token] {
			matches++
		}
	}
	return float64(matches) / float64(len(counted))
}

// dropNearDuplicates removes chunks whose token set almost fully
// overlaps an earlier chunk's. The earlier (higher-ranked) chunk wins.
func dropNearDuplicates(ranked []Ranked) []Ranked {
	const threshold = 0.9

	kept := make([]Ranked, 0, len(ranked))
	keptSets := make([]map[string]bool, 0, len(ranked))
	for _, chunk := range ranked {
		set := tokenSet(chunk.Content)
		duplicate := false
		for _, prior := range keptSets {
			if jaccard(set, prior) >= threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, chunk)
		keptSets = append(keptSets, set)
	}
	return kept
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range tokenize(text) {
		set[token] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for token := range a {
		if b[token] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
