package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/answerforge/answerd/internal/pipeline"
)

type stubService struct {
	result  pipeline.Result
	err     error
	gotOpts pipeline.Options
}

func (s *stubService) Query(_ context.Context, query string, opts pipeline.Options) (pipeline.Result, error) {
	s.gotOpts = opts
	if s.err != nil {
		return pipeline.Result{}, s.err
	}
	result := s.result
	result.Query = query
	return result, nil
}

func newTestServer(t *testing.T, service QueryService) *Server {
	t.Helper()
	s, err := NewServer(service, nil, Config{Port: 8087}, pipeline.Options{})
	require.NoError(t, err)
	return s
}

func doQuery(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	req.Header.Set(echoContentType, echoJSON)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

const (
	echoContentType = "Content-Type"
	echoJSON        = "application/json"
)

func TestHandleQuery(t *testing.T) {
	service := &stubService{result: pipeline.Result{
		Response: "The cover is machine washable.",
		Sources:  []pipeline.Source{{ChunkID: "c1", Filename: "pillow.pdf"}},
		Metadata: pipeline.Metadata{Mode: "standard", RetrievedChunks: 4, FinalChunks: 1},
	}}
	s := newTestServer(t, service)

	rec := doQuery(s, `{"query": "how do I wash it?", "finalChunkCount": 3, "useReranking": false}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var got pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "how do I wash it?", got.Query)
	assert.Equal(t, "The cover is machine washable.", got.Response)

	assert.Equal(t, 3, service.gotOpts.FinalChunkCount)
	require.NotNil(t, service.gotOpts.UseReranking)
	assert.False(t, *service.gotOpts.UseReranking)
	assert.Nil(t, service.gotOpts.UseCompression)
}

func TestHandleQueryMissingQuery(t *testing.T) {
	s := newTestServer(t, &stubService{})

	rec := doQuery(s, `{"finalChunkCount": 3}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueryInvalidBody(t *testing.T) {
	s := newTestServer(t, &stubService{})

	rec := doQuery(s, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueryStageErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"retrieval", pipeline.ErrRetrieval, "could not search"},
		{"generation", pipeline.ErrGeneration, "could not generate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &stubService{err: tt.err})

			rec := doQuery(s, `{"query": "anything"}`)

			assert.Equal(t, http.StatusBadGateway, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body.Error, tt.message)
		})
	}
}

// blockingService waits for context cancellation and reports it, like a
// hung completion call would.
type blockingService struct{}

func (blockingService) Query(ctx context.Context, _ string, _ pipeline.Options) (pipeline.Result, error) {
	<-ctx.Done()
	return pipeline.Result{}, ctx.Err()
}

func TestHandleQueryTimeout(t *testing.T) {
	s, err := NewServer(blockingService{}, nil, Config{
		Port:         8087,
		QueryTimeout: 20 * time.Millisecond,
	}, pipeline.Options{})
	require.NoError(t, err)

	start := time.Now()
	rec := doQuery(s, `{"query": "anything"}`)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Less(t, time.Since(start), 2*time.Second)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "timed out")
}

func TestMergeOptionsDefaults(t *testing.T) {
	off := false
	service := &stubService{}
	s, err := NewServer(service, nil, Config{Port: 8087}, pipeline.Options{
		RetrievalCount:  50,
		MaxQueries:      3,
		FinalChunkCount: 8,
		UseReranking:    &off,
	})
	require.NoError(t, err)

	doQuery(s, `{"query": "q", "maxQueries": 7}`)

	assert.Equal(t, 50, service.gotOpts.RetrievalCount)
	assert.Equal(t, 7, service.gotOpts.MaxQueries)
	assert.Equal(t, 8, service.gotOpts.FinalChunkCount)
	require.NotNil(t, service.gotOpts.UseReranking)
	assert.False(t, *service.gotOpts.UseReranking)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &stubService{result: pipeline.Result{
		Metadata: pipeline.Metadata{Mode: "standard"},
	}})
	doQuery(s, `{"query": "warm up the counters"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "answerd_queries_total")
}
