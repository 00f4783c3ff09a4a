package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/answerforge/answerd/internal/catalog"
	"github.com/answerforge/answerd/internal/llm"
)

type stubClient struct {
	response string
	err      error
}

func (s *stubClient) Complete(_ context.Context, _ llm.Request) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func testResolver(t *testing.T) *catalog.Resolver {
	t.Helper()
	source := catalog.NewStaticSource([]catalog.Product{
		{ID: "p1", Name: "Deep Sleep Pillow", Aliases: []string{"sleep pillow"}},
		{ID: "p2", Name: "Dual Gel Insoles"},
		{ID: "p3", Name: "Dual Gel Insoles Pro"},
		{ID: "p4", Name: "Car Back Cushion"},
	})
	cache := catalog.NewCache(source, time.Hour, nil)
	return catalog.NewResolver(cache)
}

func TestAnalyzeMapsClassification(t *testing.T) {
	client := &stubClient{response: `{
		"query_type": "product query",
		"needs_rag": true,
		"intent": "usage instructions",
		"is_specific_product_query": true,
		"detected_products": ["deep sleep pillow"],
		"is_comparison_query": false,
		"is_catalog_query": false
	}`}
	a := New(client, testResolver(t), nil, nil)

	got := a.Analyze(context.Background(), "how do I wash the deep sleep pillow?", "")

	assert.Equal(t, "product query", got.QueryType)
	assert.True(t, got.NeedsRAG)
	assert.True(t, got.IsSpecificProductQuery)
	assert.Equal(t, "usage instructions", got.Intent)
	// Model output is mapped back to the catalog-exact name.
	require.Len(t, got.DetectedProducts, 1)
	assert.Equal(t, "Deep Sleep Pillow", got.DetectedProducts[0])
}

func TestAnalyzeDropsUnknownProducts(t *testing.T) {
	client := &stubClient{response: `{
		"query_type": "product query",
		"needs_rag": true,
		"is_specific_product_query": true,
		"detected_products": ["quantum hoverboard"]
	}`}
	a := New(client, testResolver(t), nil, nil)

	got := a.Analyze(context.Background(), "tell me about the quantum hoverboard", "")

	assert.Empty(t, got.DetectedProducts)
}

func TestAnalyzeProductHint(t *testing.T) {
	client := &stubClient{response: `{
		"query_type": "product query",
		"needs_rag": true,
		"is_specific_product_query": true,
		"detected_products": []
	}`}
	a := New(client, testResolver(t), nil, nil)

	got := a.Analyze(context.Background(), "what sizes are available?", "dual gel insoles pro")

	require.Len(t, got.DetectedProducts, 1)
	assert.Equal(t, "Dual Gel Insoles Pro", got.DetectedProducts[0])
}

func TestAnalyzeDegradesToDefaults(t *testing.T) {
	tests := []struct {
		name   string
		client *stubClient
	}{
		{"completion error", &stubClient{err: errors.New("upstream 503")}},
		{"malformed json", &stubClient{response: "certainly! here is my analysis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.client, testResolver(t), nil, nil)

			got := a.Analyze(context.Background(), "how thick are the insoles?", "")

			assert.True(t, got.NeedsRAG)
			assert.Equal(t, "category query", got.QueryType)
			assert.Equal(t, "informational", got.Intent)
			assert.False(t, got.IsSpecificProductQuery)
			assert.Empty(t, got.DetectedProducts)
		})
	}
}

func TestAnalyzeRecommendationGuard(t *testing.T) {
	// Even when classification claims a specific product, recommendation
	// phrasing disables the product lock.
	client := &stubClient{response: `{
		"query_type": "product query",
		"needs_rag": true,
		"is_specific_product_query": true,
		"detected_products": ["car back cushion"]
	}`}
	a := New(client, testResolver(t), nil, nil)

	got := a.Analyze(context.Background(), "which is the best back cushion for car?", "")

	assert.False(t, got.IsSpecificProductQuery)
	// Detected products stay; only the lock is released.
	assert.Contains(t, got.DetectedProducts, "Car Back Cushion")
}

func TestIsRecommendationQuery(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"which is the best back cushion for car?", true},
		{"what is the best pillow?", true},
		{"can you recommend something for knee pain?", true},
		{"suggest an insole for running", true},
		{"is this suitable for flat feet?", true},
		{"looking for a travel pillow", true},
		{"what should I buy for back pain?", true},
		{"help me choose between these", true},
		{"how do I wash the deep sleep pillow?", false},
		{"what is the warranty period?", false},
		{"dual gel insoles pro size chart", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, isRecommendationQuery(tt.query))
		})
	}
}
