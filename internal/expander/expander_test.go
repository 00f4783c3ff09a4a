package expander

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/answerforge/answerd/internal/analyzer"
	"github.com/answerforge/answerd/internal/llm"
)

type funcClient func(ctx context.Context, req llm.Request) (string, error)

func (f funcClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	return f(ctx, req)
}

func staticClient(response string) funcClient {
	return func(context.Context, llm.Request) (string, error) {
		return response, nil
	}
}

func failingClient() funcClient {
	return func(context.Context, llm.Request) (string, error) {
		return "", errors.New("upstream timeout")
	}
}

func TestExpandDirectMode(t *testing.T) {
	e := New(failingClient(), nil)

	got := e.Expand(context.Background(), "hello there", analyzer.Analysis{
		NeedsRAG:       false,
		DirectResponse: "Hi! Ask me anything about our products.",
	}, Options{UseMultiQuery: true})

	assert.Equal(t, ModeDirect, got.Kind)
	assert.Equal(t, "Hi! Ask me anything about our products.", got.DirectResponse)
	assert.Empty(t, got.SearchQueries)
}

func TestExpandStandardMultiQuery(t *testing.T) {
	e := New(staticClient(`{"queries": ["pillow washing instructions", "how to clean memory foam pillow", "pillow care guide"]}`), nil)

	got := e.Expand(context.Background(), "how do I wash my pillow?", analyzer.Analysis{
		NeedsRAG:  true,
		QueryType: "product query",
	}, Options{UseMultiQuery: true, MaxQueries: 5})

	assert.Equal(t, ModeStandard, got.Kind)
	assert.Len(t, got.SearchQueries, 3)
	assert.Empty(t, got.LockedProduct)
}

func TestExpandStandardSingleQuery(t *testing.T) {
	e := New(failingClient(), nil)

	got := e.Expand(context.Background(), "warranty period", analyzer.Analysis{NeedsRAG: true}, Options{})

	require.Len(t, got.SearchQueries, 1)
	assert.Equal(t, "warranty period", got.SearchQueries[0])
}

func TestExpandDegradesOnGenerationError(t *testing.T) {
	e := New(failingClient(), nil)

	got := e.Expand(context.Background(), "how thick are the insoles?", analyzer.Analysis{
		NeedsRAG: true,
	}, Options{UseMultiQuery: true, MaxQueries: 5})

	require.Len(t, got.SearchQueries, 1)
	assert.Equal(t, "how thick are the insoles?", got.SearchQueries[0])
}

func TestExpandProductLock(t *testing.T) {
	e := New(staticClient(`{"queries": ["insole thickness", "Dual Gel Insoles Pro thickness spec"]}`), nil)

	got := e.Expand(context.Background(), "how thick is the dual gel insoles pro?", analyzer.Analysis{
		NeedsRAG:               true,
		IsSpecificProductQuery: true,
		DetectedProducts:       []string{"Dual Gel Insoles Pro"},
	}, Options{UseMultiQuery: true, MaxQueries: 5})

	assert.Equal(t, "Dual Gel Insoles Pro", got.LockedProduct)
	for _, q := range got.SearchQueries {
		assert.Contains(t, strings.ToLower(q), "dual gel insoles pro")
	}
}

func TestExpandNoLockForMultipleProducts(t *testing.T) {
	e := New(staticClient(`{"queries": ["pillow vs cushion"]}`), nil)

	got := e.Expand(context.Background(), "pillow and cushion care", analyzer.Analysis{
		NeedsRAG:               true,
		IsSpecificProductQuery: true,
		DetectedProducts:       []string{"Deep Sleep Pillow", "Car Back Cushion"},
	}, Options{UseMultiQuery: true})

	assert.Empty(t, got.LockedProduct)
}

func TestExpandCatalogMode(t *testing.T) {
	e := New(staticClient(`{"queries": ["pillows for sleep", "insoles for foot pain", "cushions for posture", "mattresses", "neck support"]}`), nil)

	got := e.Expand(context.Background(), "what products do you sell?", analyzer.Analysis{
		NeedsRAG:       true,
		IsCatalogQuery: true,
	}, Options{UseMultiQuery: true, MaxQueries: 5})

	assert.Equal(t, ModeCatalog, got.Kind)
	assert.Len(t, got.SearchQueries, 5)
	assert.Empty(t, got.LockedProduct)
}

func TestExpandComparisonMode(t *testing.T) {
	e := New(staticClient(`{"queries": ["gel thickness", "arch support level"]}`), nil)

	got := e.Expand(context.Background(), "dual gel insoles vs dual gel insoles pro", analyzer.Analysis{
		NeedsRAG:          true,
		IsComparisonQuery: true,
		DetectedProducts:  []string{"Dual Gel Insoles", "Dual Gel Insoles Pro"},
	}, Options{UseMultiQuery: true, MaxQueries: 5})

	assert.Equal(t, ModeComparison, got.Kind)
	assert.Equal(t, []string{"Dual Gel Insoles", "Dual Gel Insoles Pro"}, got.ComparisonProducts)
	// Every query names a product so the retriever can partition them.
	for _, q := range got.SearchQueries {
		assert.Contains(t, strings.ToLower(q), "dual gel insoles")
	}
}

func TestExpandComparisonCoversEveryProduct(t *testing.T) {
	e := New(staticClient(`{"queries": ["gel thickness", "arch support level", "heel cushioning"]}`), nil)

	products := []string{"Deep Sleep Pillow", "Dual Gel Insoles", "Back Cushion", "Neck Rest"}
	got := e.Expand(context.Background(), "compare all four", analyzer.Analysis{
		NeedsRAG:          true,
		IsComparisonQuery: true,
		DetectedProducts:  products,
	}, Options{UseMultiQuery: true, MaxQueries: 8})

	assert.Equal(t, ModeComparison, got.Kind)
	assert.LessOrEqual(t, len(got.SearchQueries), maxSearchQueries)
	// The global cap must not starve the later products.
	for _, product := range products {
		found := false
		for _, q := range got.SearchQueries {
			if strings.Contains(strings.ToLower(q), strings.ToLower(product)) {
				found = true
				break
			}
		}
		assert.True(t, found, "no query mentions %s", product)
	}
}

func TestExpandQueryCap(t *testing.T) {
	e := New(staticClient(`{"queries": ["q1","q2","q3","q4","q5","q6","q7","q8","q9","q10"]}`), nil)

	got := e.Expand(context.Background(), "everything about pillows", analyzer.Analysis{
		NeedsRAG: true,
	}, Options{UseMultiQuery: true, MaxQueries: 99})

	assert.LessOrEqual(t, len(got.SearchQueries), maxSearchQueries)
}

func TestNormalizeProductMentions(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		products []string
		want     string
	}{
		{
			name:     "misspelling rewritten",
			query:    "is the deep slep pillow washable?",
			products: []string{"Frido Ultimate Deep Sleep Pillow"},
			want:     "is the Frido Ultimate Deep Sleep Pillow washable?",
		},
		{
			name:     "no mention untouched",
			query:    "what is the warranty?",
			products: []string{"Deep Sleep Pillow"},
			want:     "what is the warranty?",
		},
		{
			name:     "single substitution per product",
			query:    "deep sleep pillow or deep sleep pillow?",
			products: []string{"Frido Deep Sleep Pillow"},
			want:     "Frido Deep Sleep Pillow or deep sleep pillow?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeProductMentions(tt.query, tt.products))
		})
	}
}

func TestExpandDomainTerms(t *testing.T) {
	assert.Equal(t, "insoles for heel pain orthopedic support relief", expandDomainTerms("insoles for heel pain"))
	assert.Equal(t, "pillow size chart dimensions specifications", expandDomainTerms("pillow size chart"))
	assert.Equal(t, "warranty details", expandDomainTerms("warranty details"))
}
