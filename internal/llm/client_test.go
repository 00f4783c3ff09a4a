package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
)

func TestBuildMessagesWithSystemPrompt(t *testing.T) {
	messages := buildMessages(Request{System: "be terse", Prompt: "hello"})

	require.Len(t, messages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, messages[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, messages[1].Role)
}

func TestBuildMessagesWithoutSystemPrompt(t *testing.T) {
	messages := buildMessages(Request{Prompt: "hello"})

	require.Len(t, messages, 1)
	assert.Equal(t, schema.ChatMessageTypeHuman, messages[0].Role)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{BaseURL: "http://localhost:8000/v1", Model: "m"}, false},
		{"missing base URL", Config{Model: "m"}, true},
		{"missing model", Config{BaseURL: "http://localhost:8000/v1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
