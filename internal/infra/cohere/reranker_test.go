package cohere

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReranker_EnabledOnlyWithAPIKey(t *testing.T) {
	assert.True(t, NewReranker("key").Enabled())
	assert.False(t, NewReranker("").Enabled())
}

func TestReranker_RerankParsesResponse(t *testing.T) {
	var gotReq rerankRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.97},
				{"index": 0, "relevance_score": 0.41},
			},
		})
	}))
	defer server.Close()

	r := NewReranker("test-key", WithBaseURL(server.URL), WithModel("rerank-test"))

	results, err := r.Rerank(context.Background(), "query", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)

	assert.Equal(t, "rerank-test", gotReq.Model)
	assert.Equal(t, "query", gotReq.Query)
	assert.Equal(t, []string{"a", "b", "c"}, gotReq.Documents)
	assert.Equal(t, 2, gotReq.TopN)

	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Index)
	assert.Equal(t, 0.97, results[0].Score)
}

func TestReranker_RetriesOnRateLimit(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"index": 0, "relevance_score": 0.5}},
		})
	}))
	defer server.Close()

	r := NewReranker("test-key", WithBaseURL(server.URL))

	results, err := r.Rerank(context.Background(), "query", []string{"a"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	require.Len(t, results, 1)
}

func TestReranker_RetryAfterReplacesGenericBackoff(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"index": 0, "relevance_score": 0.5}},
		})
	}))
	defer server.Close()

	r := NewReranker("test-key", WithBaseURL(server.URL))

	// Retry-Afterに従った直後の再試行は一般のバックオフ(初回500ms)を待たない
	start := time.Now()
	_, err := r.Rerank(context.Background(), "query", []string{"a"}, 1)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestReranker_ClientErrorIsNotRetried(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	r := NewReranker("test-key", WithBaseURL(server.URL))

	_, err := r.Rerank(context.Background(), "query", []string{"a"}, 1)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestReranker_EmptyDocumentsIsNoop(t *testing.T) {
	r := NewReranker("test-key")

	results, err := r.Rerank(context.Background(), "query", nil, 5)
	require.NoError(t, err)
	assert.Nil(t, results)
}
