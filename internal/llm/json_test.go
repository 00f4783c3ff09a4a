package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient returns a canned response and records the last request.
type stubClient struct {
	response string
	err      error
	lastReq  Request
}

func (s *stubClient) Complete(_ context.Context, req Request) (string, error) {
	s.lastReq = req
	return s.response, s.err
}

func TestCompleteJSONParsesPlainObject(t *testing.T) {
	client := &stubClient{response: `{"name": "insole", "count": 3}`}

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	err := CompleteJSON(context.Background(), client, Request{Prompt: "p", Temperature: 0.7}, &out)
	require.NoError(t, err)
	assert.Equal(t, "insole", out.Name)
	assert.Equal(t, 3, out.Count)
	// Structured calls are always deterministic.
	assert.Zero(t, client.lastReq.Temperature)
}

func TestCompleteJSONStripsMarkdownFences(t *testing.T) {
	client := &stubClient{response: "```json\n{\"ok\": true}\n```"}

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, CompleteJSON(context.Background(), client, Request{Prompt: "p"}, &out))
	assert.True(t, out.OK)
}

func TestCompleteJSONTrimsSurroundingProse(t *testing.T) {
	client := &stubClient{response: `Here is the result: ["a", "b"] hope that helps`}

	var out []string
	require.NoError(t, CompleteJSON(context.Background(), client, Request{Prompt: "p"}, &out))
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestCompleteJSONErrors(t *testing.T) {
	t.Run("client error propagates", func(t *testing.T) {
		client := &stubClient{err: errors.New("boom")}
		var out map[string]any
		assert.Error(t, CompleteJSON(context.Background(), client, Request{Prompt: "p"}, &out))
	})

	t.Run("no JSON in response", func(t *testing.T) {
		client := &stubClient{response: "sorry, I cannot help"}
		var out map[string]any
		assert.Error(t, CompleteJSON(context.Background(), client, Request{Prompt: "p"}, &out))
	})

	t.Run("malformed JSON", func(t *testing.T) {
		client := &stubClient{response: `{"name": }`}
		var out map[string]any
		assert.Error(t, CompleteJSON(context.Background(), client, Request{Prompt: "p"}, &out))
	})
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"object", `{"a":1}`, `{"a":1}`},
		{"array", `[1,2]`, `[1,2]`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n[1]\n```", `[1]`},
		{"prose around object", `sure: {"a":1}.`, `{"a":1}`},
		{"nothing", "no json here", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}
