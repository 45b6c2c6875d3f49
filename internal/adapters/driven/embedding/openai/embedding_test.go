package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbeddingService_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc, err := NewEmbeddingService(Config{APIKey: "test-key"})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, 1536, svc.Dimensions())
}

func TestNewEmbeddingService_DimensionOverride(t *testing.T) {
	svc, err := NewEmbeddingService(Config{APIKey: "test-key", Dimensions: 256})
	require.NoError(t, err)

	assert.Equal(t, 256, svc.Dimensions())
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, []string{"first", "second"}, req.Input)

		// Out-of-order data entries: the adapter must reorder by index.
		respond(t, w, `{"data":[
			{"index":1,"embedding":[0.3,0.4]},
			{"index":0,"embedding":[0.1,0.2]}
		]}`)
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	embeddings, err := svc.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2}, embeddings[0])
	assert.Equal(t, []float32{0.3, 0.4}, embeddings[1])
}

func TestEmbeddingService_EmbedBatch_Empty(t *testing.T) {
	svc, err := NewEmbeddingService(Config{APIKey: "test-key"})
	require.NoError(t, err)

	embeddings, err := svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}

func TestEmbeddingService_EmbedBatch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		respond(t, w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "bad-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestEmbeddingService_EmbedBatch_MissingEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, `{"data":[{"index":0,"embedding":[0.1]}]}`)
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"first", "second"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing embedding")
}

func TestEmbeddingService_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, `{"data":[{"index":0,"embedding":[0.5,0.6,0.7]}]}`)
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	embedding, err := svc.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.6, 0.7}, embedding)
}

func TestEmbeddingService_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		respond(t, w, `{"data":[]}`)
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	assert.NoError(t, svc.Ping(context.Background()))
}

func TestEmbeddingService_Ping_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "bad-key", BaseURL: server.URL})
	require.NoError(t, err)

	err = svc.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func respond(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write([]byte(body))
	require.NoError(t, err)
}
