package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "product_chunks", false},
		{"valid with digits", "chunks_v2", false},
		{"empty", "", true},
		{"uppercase", "ProductChunks", true},
		{"spaces", "product chunks", true},
		{"path traversal", "../etc", true},
		{"too long", string(make([]byte, 65)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStringFilter(t *testing.T) {
	assert.Nil(t, stringFilter(nil))
	assert.Nil(t, stringFilter(map[string]any{}))
	assert.Nil(t, stringFilter(map[string]any{"count": 3}))

	got := stringFilter(map[string]any{"product_name": "Dual Gel Insoles", "count": 3})
	assert.Equal(t, map[string]string{"product_name": "Dual Gel Insoles"}, got)
}

func TestQdrantConfigValidate(t *testing.T) {
	valid := QdrantConfig{Host: "localhost", Port: 6334, CollectionName: "chunks", VectorSize: 384}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*QdrantConfig)
	}{
		{"missing host", func(c *QdrantConfig) { c.Host = "" }},
		{"bad port", func(c *QdrantConfig) { c.Port = -1 }},
		{"missing collection", func(c *QdrantConfig) { c.CollectionName = "" }},
		{"zero vector size", func(c *QdrantConfig) { c.VectorSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestQdrantConfigApplyDefaults(t *testing.T) {
	cfg := QdrantConfig{Host: "localhost", CollectionName: "chunks", VectorSize: 384}
	cfg.ApplyDefaults()

	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.NotZero(t, cfg.RetryBackoff)
	assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
}
