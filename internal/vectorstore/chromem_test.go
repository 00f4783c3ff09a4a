package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// axisEmbedding returns deterministic unit vectors so similarity is exact:
// documents about insoles map to one axis, pillows to another.
func axisEmbedding(_ context.Context, text string) ([]float32, error) {
	switch {
	case contains(text, "insole"):
		return []float32{1, 0, 0}, nil
	case contains(text, "pillow"):
		return []float32{0, 1, 0}, nil
	default:
		return []float32{0, 0, 1}, nil
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func newTestBackend(t *testing.T) *ChromemBackend {
	t.Helper()
	backend, err := NewChromemBackend(ChromemConfig{CollectionName: "test_chunks"}, axisEmbedding)
	require.NoError(t, err)
	return backend
}

func TestChromemBackendSearch(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)

	docs := []Document{
		{ID: "c1", Content: "gel insole for flat feet", Metadata: map[string]any{"product_name": "Dual Gel Insoles", "filename": "insoles.pdf"}},
		{ID: "c2", Content: "memory foam pillow for neck pain", Metadata: map[string]any{"product_name": "Deep Sleep Pillow", "filename": "pillow.pdf"}},
	}
	require.NoError(t, backend.AddDocuments(ctx, docs))

	hits, err := backend.Search(ctx, []float32{1, 0, 0}, 10, 0.5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ID)
	assert.Equal(t, "gel insole for flat feet", hits[0].Content)
	assert.Equal(t, "insoles.pdf", hits[0].Filename)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 0.001)
}

func TestChromemBackendSearchWithFilter(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)

	docs := []Document{
		{ID: "c1", Content: "insole arch support", Metadata: map[string]any{"product_name": "Dual Gel Insoles"}},
		{ID: "c2", Content: "insole sizing chart", Metadata: map[string]any{"product_name": "Dual Gel Insoles Pro"}},
	}
	require.NoError(t, backend.AddDocuments(ctx, docs))

	hits, err := backend.Search(ctx, []float32{1, 0, 0}, 10, 0, map[string]any{"product_name": "Dual Gel Insoles Pro"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c2", hits[0].ID)
}

func TestChromemBackendEmptyCollection(t *testing.T) {
	backend := newTestBackend(t)

	hits, err := backend.Search(context.Background(), []float32{1, 0, 0}, 5, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChromemBackendRejectsEmptyDocs(t *testing.T) {
	backend := newTestBackend(t)
	assert.ErrorIs(t, backend.AddDocuments(context.Background(), nil), ErrEmptyDocuments)
}

func TestChromemBackendScoreThreshold(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)

	require.NoError(t, backend.AddDocuments(ctx, []Document{
		{ID: "c1", Content: "insole"},
		{ID: "c2", Content: "pillow"},
	}))

	// The orthogonal pillow document scores 0 against the insole axis.
	hits, err := backend.Search(ctx, []float32{1, 0, 0}, 10, 0.9, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ID)
}
