package catalog

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// Resolver fuzzy-matches free text against the product catalog.
//
// Matching strategies, in priority order (highest score wins):
//  1. Exact normalized full-string match (1.0).
//  2. Substring containment either direction (0.90-0.95): a query that
//     contains the full name is more specific than a name that merely
//     contains the query.
//  3. Alias containment (0.6 base, up to +0.25 scaled by alias length
//     so longer, more specific aliases outrank short generic ones).
//  4. Fuzzy: max of normalized Levenshtein similarity and token-overlap
//     ratio against the name and every alias.
type Resolver struct {
	cache *Cache
}

// NewResolver creates a resolver over the given catalog cache.
func NewResolver(cache *Cache) *Resolver {
	return &Resolver{cache: cache}
}

// Resolve returns products matching the query, sorted descending by
// score and truncated to maxResults. Matches scoring below threshold
// are dropped. A stale or still-loading catalog yields an empty result
// set rather than blocking.
func (r *Resolver) Resolve(ctx context.Context, query string, threshold float64, maxResults int) []Match {
	normQuery := Normalize(query)
	if normQuery == "" {
		return nil
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	products := r.cache.Products(ctx)
	matches := make([]Match, 0, len(products))
	for _, product := range products {
		score, matchType := scoreProduct(normQuery, product)
		if score >= threshold {
			matches = append(matches, Match{Product: product, Score: score, MatchType: matchType})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		// Prefer the longer name on ties: "Insoles Pro" over "Insoles".
		return len(matches[i].Product.Name) > len(matches[j].Product.Name)
	})

	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

// Lookup returns the catalog product whose normalized name equals the
// given name.
func (r *Resolver) Lookup(ctx context.Context, name string) (Product, bool) {
	norm := Normalize(name)
	for _, product := range r.cache.Products(ctx) {
		if Normalize(product.Name) == norm {
			return product, true
		}
	}
	return Product{}, false
}

// scoreProduct computes the best score for a product across all
// matching strategies.
func scoreProduct(normQuery string, product Product) (float64, MatchType) {
	normName := Normalize(product.Name)
	if normName == "" {
		return 0, MatchFuzzy
	}

	if normQuery == normName {
		return 1.0, MatchExact
	}

	bestScore := 0.0
	bestType := MatchFuzzy

	// A query containing the full name is more specific than a name
	// that merely contains the query.
	if strings.Contains(normQuery, normName) {
		bestScore, bestType = 0.95, MatchExact
	} else if strings.Contains(normName, normQuery) {
		bestScore, bestType = 0.90, MatchExact
	}

	for _, alias := range product.Aliases {
		normAlias := Normalize(alias)
		if len(normAlias) < 3 || isStopWord(normAlias) {
			continue
		}
		if strings.Contains(normQuery, normAlias) {
			score := aliasScore(normAlias)
			if score > bestScore {
				bestScore, bestType = score, MatchAlias
			}
		}
	}

	// Fuzzy scoring against the name and every alias.
	candidates := append([]string{normName}, product.Aliases...)
	for _, candidate := range candidates {
		normCandidate := Normalize(candidate)
		if normCandidate == "" {
			continue
		}
		score := fuzzyScore(normQuery, normCandidate)
		if score > bestScore {
			bestScore, bestType = score, MatchFuzzy
		}
	}

	return bestScore, bestType
}

// aliasScore scales with alias length: 0.6 base plus up to +0.25.
func aliasScore(alias string) float64 {
	bonus := float64(len(alias)) * 0.01
	if bonus > 0.25 {
		bonus = 0.25
	}
	return 0.6 + bonus
}

// fuzzyScore is the max of normalized Levenshtein similarity and
// token-overlap ratio. Always in [0,1].
func fuzzyScore(query, candidate string) float64 {
	lev := levenshteinSimilarity(query, candidate)
	overlap := tokenOverlap(query, candidate)
	if overlap > lev {
		return overlap
	}
	return lev
}

// levenshteinSimilarity = (max(len1,len2) - editDistance) / max(len1,len2).
func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return float64(maxLen-levenshtein(ra, rb)) / float64(maxLen)
}

// levenshtein computes edit distance with a two-row DP.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// tokenOverlap is the fraction of query tokens (length > 2) that are
// substrings of, or contain, some candidate token.
func tokenOverlap(query, candidate string) float64 {
	queryTokens := significantTokens(query)
	if len(queryTokens) == 0 {
		return 0
	}
	candidateTokens := strings.Fields(candidate)

	matched := 0
	for _, qt := range queryTokens {
		for _, ct := range candidateTokens {
			if strings.Contains(ct, qt) || strings.Contains(qt, ct) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// significantTokens returns tokens longer than 2 characters.
func significantTokens(s string) []string {
	fields := strings.Fields(s)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Normalize lowercases, strips punctuation and collapses whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// isStopWord returns true for common English stopwords that make alias
// containment meaningless.
func isStopWord(token string) bool {
	switch token {
	case "the", "and", "for", "with", "pro", "new", "all", "one":
		return true
	}
	return false
}
