// Package expander turns one analyzed query into a retrieval plan:
// normalized text plus mode-specific search-query variants.
package expander

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/answerforge/answerd/internal/analyzer"
	"github.com/answerforge/answerd/internal/llm"
	"github.com/answerforge/answerd/internal/logging"
)

// maxSearchQueries caps the total variants in any mode.
const maxSearchQueries = 8

// Options control query expansion for one request.
type Options struct {
	// UseMultiQuery enables completion-generated reformulations. When
	// false, standard mode retrieves with the normalized query alone.
	UseMultiQuery bool
	// MaxQueries bounds generated variants; clamped to [1, 8].
	MaxQueries int
}

// Expander builds retrieval plans from query analyses.
type Expander struct {
	llm    llm.Client
	logger *logging.Logger
}

// New creates an Expander.
func New(client llm.Client, logger *logging.Logger) *Expander {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Expander{llm: client, logger: logger}
}

// Expand produces the retrieval plan for a query. It never fails:
// generation errors degrade to retrieving with the normalized query.
func (e *Expander) Expand(ctx context.Context, query string, analysis analyzer.Analysis, opts Options) Expanded {
	maxQueries := opts.MaxQueries
	if maxQueries < 1 {
		maxQueries = 5
	}
	if maxQueries > maxSearchQueries {
		maxQueries = maxSearchQueries
	}

	normalized := normalizeProductMentions(query, analysis.DetectedProducts)

	out := Expanded{
		Kind:             ModeStandard,
		OriginalQuery:    query,
		NormalizedQuery:  normalized,
		QueryType:        analysis.QueryType,
		NeedsRAG:         analysis.NeedsRAG,
		DetectedProducts: analysis.DetectedProducts,
	}

	switch {
	case !analysis.NeedsRAG:
		out.Kind = ModeDirect
		out.DirectResponse = analysis.DirectResponse
		return out

	case analysis.IsCatalogQuery:
		out.Kind = ModeCatalog
		out.SearchQueries = e.catalogQueries(ctx, normalized, maxQueries)

	case analysis.IsComparisonQuery && len(analysis.DetectedProducts) >= 2:
		out.Kind = ModeComparison
		out.ComparisonProducts = analysis.DetectedProducts
		out.SearchQueries = e.comparisonQueries(ctx, normalized, analysis.DetectedProducts)

	default:
		out.SearchQueries = e.standardQueries(ctx, normalized, maxQueries, opts.UseMultiQuery)
		if analysis.IsSpecificProductQuery && len(analysis.DetectedProducts) == 1 {
			out.LockedProduct = analysis.DetectedProducts[0]
		}
	}

	out.SearchQueries = finalizeQueries(out.SearchQueries, normalized, out.LockedProduct)
	return out
}

// generated is the structured completion payload for query generation.
type generated struct {
	Queries []string `json:"queries"`
}

func (e *Expander) generate(ctx context.Context, system, prompt string) ([]string, error) {
	var out generated
	err := llm.CompleteJSON(ctx, e.llm, llm.Request{System: system, Prompt: prompt}, &out)
	if err != nil {
		return nil, err
	}
	queries := make([]string, 0, len(out.Queries))
	for _, q := range out.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("completion returned no queries")
	}
	return queries, nil
}

// standardQueries generates reformulations of the query: decomposed,
// keyword-focused, synonym-expanded and product-specific variants, all
// from one completion call.
func (e *Expander) standardQueries(ctx context.Context, query string, maxQueries int, multiQuery bool) []string {
	if !multiQuery {
		return []string{query}
	}
	system := fmt.Sprintf(`You rewrite a customer question into %d diverse search queries for a product-document index. Include the original phrasing, a decomposed sub-question, a keyword-only form, a synonym-expanded form and a product-specific form where applicable. Respond with JSON: {"queries": ["..."]}.`, maxQueries)
	queries, err := e.generate(ctx, system, "Question: "+query)
	if err != nil {
		e.logger.Warn(ctx, "query expansion failed, using original query", zap.Error(err))
		return []string{query}
	}
	if len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}
	return queries
}

// catalogQueries generates queries engineered to cover many distinct
// products and categories rather than the literal question.
func (e *Expander) catalogQueries(ctx context.Context, query string, maxQueries int) []string {
	system := fmt.Sprintf(`You write %d diverse search queries that together cover as many distinct products and product categories as possible for a catalog-wide question. Each query should target a different category or product type. Respond with JSON: {"queries": ["..."]}.`, maxQueries)
	queries, err := e.generate(ctx, system, "Question: "+query)
	if err != nil {
		e.logger.Warn(ctx, "catalog expansion failed, using original query", zap.Error(err))
		return []string{query}
	}
	if len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}
	return queries
}

// comparisonQueries fans out one generation call per compared product so
// each item gets independent, balanced coverage. Every generated query
// carries its product name so the retriever can filter on it.
func (e *Expander) comparisonQueries(ctx context.Context, query string, products []string) []string {
	perProduct := make([][]string, len(products))

	var wg sync.WaitGroup
	for i, product := range products {
		wg.Add(1)
		go func(i int, product string) {
			defer wg.Done()
			system := `You write 2-3 focused search queries about one specific product, covering the aspects the question compares. Respond with JSON: {"queries": ["..."]}.`
			prompt := fmt.Sprintf("Question: %s\nProduct: %s", query, product)
			queries, err := e.generate(ctx, system, prompt)
			if err != nil {
				e.logger.Warn(ctx, "comparison expansion failed for product",
					zap.String("product", product), zap.Error(err))
				queries = []string{query}
			}
			if len(queries) > 3 {
				queries = queries[:3]
			}
			for j, q := range queries {
				if !containsFold(q, product) {
					queries[j] = q + " " + product
				}
			}
			perProduct[i] = queries
		}(i, product)
	}
	wg.Wait()

	// Cap per product before merging so the global cap cannot starve the
	// later products of a wide comparison.
	perProductCap := maxSearchQueries / len(products)
	if perProductCap < 1 {
		perProductCap = 1
	}
	var merged []string
	for _, queries := range perProduct {
		if len(queries) > perProductCap {
			queries = queries[:perProductCap]
		}
		merged = append(merged, queries...)
	}
	return merged
}

// finalizeQueries applies domain-term expansion, appends the locked
// product to queries that do not mention it, deduplicates and caps.
func finalizeQueries(queries []string, fallback, lockedProduct string) []string {
	if len(queries) == 0 {
		queries = []string{fallback}
	}

	seen := make(map[string]bool, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = expandDomainTerms(q)
		if lockedProduct != "" && !containsFold(q, lockedProduct) {
			q = q + " " + lockedProduct
		}
		key := strings.ToLower(strings.TrimSpace(q))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == maxSearchQueries {
			break
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
