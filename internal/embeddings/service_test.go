package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	tests := []struct {
		name       string
		config     Config
		wantErr    bool
		errMessage string
	}{
		{
			name:   "valid TEI configuration",
			config: Config{BaseURL: "http://localhost:8080", Model: "BAAI/bge-small-en-v1.5"},
		},
		{
			name:   "valid OpenAI configuration",
			config: Config{BaseURL: "https://example.openai.azure.com", Model: "text-embedding-3-small", APIKey: "sk-test", Style: StyleOpenAI},
		},
		{
			name:       "empty base URL",
			config:     Config{Model: "text-embedding-3-small"},
			wantErr:    true,
			errMessage: "base URL required",
		},
		{
			name:       "unknown style",
			config:     Config{BaseURL: "http://localhost:8080", Style: "soap"},
			wantErr:    true,
			errMessage: "unknown style",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewService(tt.config)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMessage)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestService_EmbedDocuments_TEI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		inputs := req.Inputs.([]interface{})

		vectors := make([][]float32, len(inputs))
		for i := range vectors {
			vectors[i] = []float32{float32(i), 0.5}
		}
		json.NewEncoder(w).Encode(vectors)
	}))
	defer server.Close()

	service, err := NewService(Config{BaseURL: server.URL, Model: "BAAI/bge-small-en-v1.5"})
	require.NoError(t, err)

	vectors, err := service.EmbedDocuments(context.Background(), []string{"sensor fault", "pump stall"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0, 0.5}, vectors[0])
	assert.Equal(t, []float32{1, 0.5}, vectors[1])
}

func TestService_EmbedDocuments_OpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("api-key"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		// Out-of-order data entries must land at their declared index.
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 1, "embedding": []float32{1.0}},
				{"index": 0, "embedding": []float32{0.0}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	service, err := NewService(Config{
		BaseURL: server.URL,
		Model:   "text-embedding-3-small",
		APIKey:  "test-key",
		Style:   StyleOpenAI,
	})
	require.NoError(t, err)

	vectors, err := service.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.0}, vectors[0])
	assert.Equal(t, []float32{1.0}, vectors[1])
}

func TestService_EmbedQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([][]float32{{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	service, err := NewService(Config{BaseURL: server.URL})
	require.NoError(t, err)

	vector, err := service.EmbedQuery(context.Background(), "sensor fault")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func TestService_EmptyInput(t *testing.T) {
	service, err := NewService(Config{BaseURL: "http://localhost:8080"})
	require.NoError(t, err)

	_, err = service.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = service.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestService_RetryOnTransientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode([][]float32{{1.0}})
	}))
	defer server.Close()

	service, err := NewService(Config{BaseURL: server.URL})
	require.NoError(t, err)

	vector, err := service.EmbedQuery(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1.0}, vector)
	assert.Equal(t, int32(3), calls.Load())
}

func TestService_NoRetryOnAuthError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	service, err := NewService(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = service.EmbedQuery(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestService_VectorCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([][]float32{{1.0}})
	}))
	defer server.Close()

	service, err := NewService(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = service.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "got 1 vectors for 2 texts")
}

func TestIsRetryableStatus(t *testing.T) {
	assert.True(t, isRetryableStatus(http.StatusTooManyRequests))
	assert.True(t, isRetryableStatus(http.StatusInternalServerError))
	assert.True(t, isRetryableStatus(http.StatusBadGateway))
	assert.False(t, isRetryableStatus(http.StatusBadRequest))
	assert.False(t, isRetryableStatus(http.StatusUnauthorized))
	assert.False(t, isRetryableStatus(http.StatusNotFound))
}

func TestDimension(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"BAAI/bge-small-en-v1.5", 384},
		{"unknown-model", 1536},
	}

	for _, tt := range tests {
		service, err := NewService(Config{BaseURL: "http://localhost:8080", Model: tt.model})
		require.NoError(t, err)
		assert.Equal(t, tt.want, service.Dimension(), "model %s", tt.model)
	}
}
