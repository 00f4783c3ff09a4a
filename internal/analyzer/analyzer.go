// Package analyzer classifies incoming queries and detects referenced
// products, comparison intent and catalog intent.
//
// Classification is a single structured completion call. Earlier designs
// issued up to four sequential calls (product detection, catalog
// detection, comparison detection, classification); consolidating them
// cuts latency 2-4x while keeping the same output fields.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/answerforge/answerd/internal/catalog"
	"github.com/answerforge/answerd/internal/llm"
	"github.com/answerforge/answerd/internal/logging"
)

// Analysis is the classification of one query. Produced once per query;
// immutable afterward.
type Analysis struct {
	QueryType              string
	NeedsRAG               bool
	DirectResponse         string
	Intent                 string
	IsSpecificProductQuery bool
	DetectedProducts       []string
	IsComparisonQuery      bool
	IsCatalogQuery         bool
}

// Analyzer classifies queries against the product catalog.
type Analyzer struct {
	llm      llm.Client
	resolver *catalog.Resolver
	logger   *logging.Logger

	// companyContext strings are injected into the classification prompt
	// so the model knows the document domain.
	companyContext []string

	// productThreshold is the resolver score needed to accept a
	// model-detected product name as a catalog product.
	productThreshold float64
}

// New creates an Analyzer.
func New(client llm.Client, resolver *catalog.Resolver, companyContext []string, logger *logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{
		llm:              client,
		resolver:         resolver,
		logger:           logger,
		companyContext:   companyContext,
		productThreshold: 0.6,
	}
}

// Analyze classifies the query. It never fails: any completion or parse
// error degrades to conservative defaults (broad unlocked retrieval)
// instead of surfacing, since a wrong narrow answer is worse than a
// broad search.
func (a *Analyzer) Analyze(ctx context.Context, query, productHint string) Analysis {
	analysis, err := a.classify(ctx, query, productHint)
	if err != nil {
		a.logger.Warn(ctx, "query classification failed, using defaults", zap.Error(err))
		analysis = defaultAnalysis()
	}

	// Deterministic guard: recommendation/category phrasing always
	// disables the product lock, even when the model detected a product.
	// A single mis-detected product must not silently narrow retrieval.
	if isRecommendationQuery(query) {
		analysis.IsSpecificProductQuery = false
	}

	return analysis
}

// classification mirrors the structured completion payload.
type classification struct {
	QueryType              string   `json:"query_type"`
	NeedsRAG               bool     `json:"needs_rag"`
	DirectResponse         string   `json:"direct_response"`
	Intent                 string   `json:"intent"`
	IsSpecificProductQuery bool     `json:"is_specific_product_query"`
	DetectedProducts       []string `json:"detected_products"`
	IsComparisonQuery      bool     `json:"is_comparison_query"`
	IsCatalogQuery         bool     `json:"is_catalog_query"`
}

func (a *Analyzer) classify(ctx context.Context, query, productHint string) (Analysis, error) {
	products := a.resolver.Resolve(ctx, query, 0.3, 5)
	candidateNames := make([]string, 0, len(products))
	for _, m := range products {
		candidateNames = append(candidateNames, m.Product.Name)
	}

	var out classification
	err := llm.CompleteJSON(ctx, a.llm, llm.Request{
		System: a.systemPrompt(candidateNames),
		Prompt: a.userPrompt(query, productHint),
	}, &out)
	if err != nil {
		return Analysis{}, fmt.Errorf("classifying query: %w", err)
	}

	analysis := Analysis{
		QueryType:              out.QueryType,
		NeedsRAG:               out.NeedsRAG,
		DirectResponse:         out.DirectResponse,
		Intent:                 out.Intent,
		IsSpecificProductQuery: out.IsSpecificProductQuery,
		IsComparisonQuery:      out.IsComparisonQuery,
		IsCatalogQuery:         out.IsCatalogQuery,
	}
	if analysis.QueryType == "" {
		analysis.QueryType = "category query"
	}
	if analysis.Intent == "" {
		analysis.Intent = "informational"
	}

	// Only catalog-exact names enter DetectedProducts, never free text.
	seen := make(map[string]bool)
	for _, name := range out.DetectedProducts {
		canonical, ok := a.canonicalName(ctx, name)
		if ok && !seen[canonical] {
			seen[canonical] = true
			analysis.DetectedProducts = append(analysis.DetectedProducts, canonical)
		}
	}
	if productHint != "" {
		if canonical, ok := a.canonicalName(ctx, productHint); ok && !seen[canonical] {
			analysis.DetectedProducts = append(analysis.DetectedProducts, canonical)
		}
	}

	return analysis, nil
}

// canonicalName resolves free text to a catalog-exact product name.
func (a *Analyzer) canonicalName(ctx context.Context, name string) (string, bool) {
	matches := a.resolver.Resolve(ctx, name, a.productThreshold, 1)
	if len(matches) == 0 {
		return "", false
	}
	return matches[0].Product.Name, true
}

// defaultAnalysis is the conservative fallback: broad unlocked retrieval.
func defaultAnalysis() Analysis {
	return Analysis{
		QueryType:              "category query",
		NeedsRAG:               true,
		Intent:                 "informational",
		IsSpecificProductQuery: false,
	}
}

func (a *Analyzer) systemPrompt(candidateProducts []string) string {
	var b strings.Builder
	b.WriteString("You classify customer questions about a product catalog. ")
	b.WriteString("Respond with a single JSON object, no prose, with keys: ")
	b.WriteString(`query_type (one of "product query", "category query", "comparison query", "catalog query", "greeting", "chitchat"), `)
	b.WriteString("needs_rag (false only for greetings/chitchat that need no documents), ")
	b.WriteString("direct_response (a short reply when needs_rag is false, else empty), ")
	b.WriteString("intent (short phrase), is_specific_product_query, ")
	b.WriteString("detected_products (catalog product names mentioned in the question), ")
	b.WriteString("is_comparison_query, is_catalog_query.\n")

	if len(a.companyContext) > 0 {
		b.WriteString("Company context: ")
		b.WriteString(strings.Join(a.companyContext, "; "))
		b.WriteString("\n")
	}
	if len(candidateProducts) > 0 {
		b.WriteString("Catalog products possibly referenced: ")
		b.WriteString(strings.Join(candidateProducts, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

func (a *Analyzer) userPrompt(query, productHint string) string {
	if productHint != "" {
		return fmt.Sprintf("Question: %s\nProduct hint from the caller: %s", query, productHint)
	}
	return "Question: " + query
}
