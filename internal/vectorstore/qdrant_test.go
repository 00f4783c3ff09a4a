package vectorstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPointID(t *testing.T) {
	valid := "4f9c2d1e-8b3a-4c5d-9e6f-7a8b9c0d1e2f"
	assert.Equal(t, valid, pointID(valid))

	derived := pointID("chunk-42")
	_, err := uuid.Parse(derived)
	assert.NoError(t, err)
	// Derived ids are stable so re-ingesting the same chunk upserts
	// instead of duplicating.
	assert.Equal(t, derived, pointID("chunk-42"))
	assert.NotEqual(t, derived, pointID("chunk-43"))
}
