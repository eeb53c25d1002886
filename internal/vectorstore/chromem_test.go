package vectorstore

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder maps each text to a deterministic unit vector so similarity
// ranking in tests is exact: identical text scores 1.0.
type stubEmbedder struct {
	vectors map[string][]float32
	failAll bool
}

func (s *stubEmbedder) embed(text string) []float32 {
	if v, ok := s.vectors[text]; ok {
		return v
	}
	// Fallback: a unit vector derived from the text length, distinct
	// enough for ranking assertions.
	angle := float64(len(text)%7) / 7 * math.Pi / 2
	return []float32{float32(math.Cos(angle)), float32(math.Sin(angle)), 0}
}

func (s *stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if s.failAll {
		return nil, fmt.Errorf("embedder down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.embed(t)
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if s.failAll {
		return nil, fmt.Errorf("embedder down")
	}
	return s.embed(text), nil
}

func newTestChromemStore(t *testing.T) (*ChromemStore, *stubEmbedder) {
	t.Helper()
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"sensor fault <NUM>": {1, 0, 0},
		"pump stall <NUM>":   {0, 1, 0},
		"close to sensor":    {0.99, 0.14, 0},
	}}
	store, err := NewChromemStore(ChromemConfig{
		Path:              t.TempDir(),
		DefaultCollection: "log_file_errors",
		VectorSize:        3,
	}, embedder, nil)
	require.NoError(t, err)
	return store, embedder
}

func TestChromemStore_AddAndSearch(t *testing.T) {
	store, _ := newTestChromemStore(t)
	ctx := context.Background()

	ids, err := store.AddDocuments(ctx, []Document{
		{
			ID:      "11111111-1111-1111-1111-111111111111",
			Content: "sensor fault <NUM>",
			Metadata: map[string]interface{}{
				"solution":   "recalibrate the sensor",
				"instrument": "TEMP_001",
			},
		},
		{
			ID:      "22222222-2222-2222-2222-222222222222",
			Content: "pump stall <NUM>",
			Metadata: map[string]interface{}{
				"solution":   "bleed the pump line",
				"instrument": "PUMP_02",
			},
		},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	results, err := store.Search(ctx, "close to sensor", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The sensor entry is the nearer neighbor.
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", results[0].ID)
	assert.Equal(t, "recalibrate the sensor", results[0].Metadata["solution"])
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestChromemStore_SearchClampsK(t *testing.T) {
	store, _ := newTestChromemStore(t)
	ctx := context.Background()

	_, err := store.AddDocuments(ctx, []Document{
		{ID: "11111111-1111-1111-1111-111111111111", Content: "sensor fault <NUM>"},
	})
	require.NoError(t, err)

	// k larger than the collection must not error.
	results, err := store.Search(ctx, "sensor fault <NUM>", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemStore_SearchMissingCollection(t *testing.T) {
	store, _ := newTestChromemStore(t)

	_, err := store.Search(context.Background(), "anything", 3)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestChromemStore_HasDocument(t *testing.T) {
	store, _ := newTestChromemStore(t)
	ctx := context.Background()

	// Missing collection reads as absent, not as an error.
	exists, err := store.HasDocument(ctx, "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.AddDocuments(ctx, []Document{
		{ID: "11111111-1111-1111-1111-111111111111", Content: "sensor fault <NUM>"},
	})
	require.NoError(t, err)

	exists, err = store.HasDocument(ctx, "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.HasDocument(ctx, "99999999-9999-9999-9999-999999999999")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestChromemStore_AddDocumentsEmpty(t *testing.T) {
	store, _ := newTestChromemStore(t)

	_, err := store.AddDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyDocuments)
}

func TestChromemStore_AddDocumentsEmbedderFailure(t *testing.T) {
	store, embedder := newTestChromemStore(t)
	embedder.failAll = true

	_, err := store.AddDocuments(context.Background(), []Document{
		{ID: "11111111-1111-1111-1111-111111111111", Content: "x"},
	})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestChromemStore_Collections(t *testing.T) {
	store, _ := newTestChromemStore(t)
	ctx := context.Background()

	exists, err := store.CollectionExists(ctx, "log_file_errors")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.CreateCollection(ctx, "log_file_errors", 3))

	exists, err = store.CollectionExists(ctx, "log_file_errors")
	require.NoError(t, err)
	assert.True(t, exists)

	// Recreating an existing collection is not an error.
	assert.NoError(t, store.CreateCollection(ctx, "log_file_errors", 3))

	err = store.CreateCollection(ctx, "Bad Name", 3)
	assert.ErrorIs(t, err, ErrInvalidCollectionName)

	err = store.CreateCollection(ctx, "ok_name", 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestChromemStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"sensor fault <NUM>": {1, 0, 0},
	}}
	cfg := ChromemConfig{Path: dir, DefaultCollection: "log_file_errors", VectorSize: 3}

	store, err := NewChromemStore(cfg, embedder, nil)
	require.NoError(t, err)
	_, err = store.AddDocuments(context.Background(), []Document{
		{ID: "11111111-1111-1111-1111-111111111111", Content: "sensor fault <NUM>"},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// A fresh store over the same path sees the stored document.
	reopened, err := NewChromemStore(cfg, embedder, nil)
	require.NoError(t, err)
	exists, err := reopened.HasDocument(context.Background(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNewChromemStore_RequiresEmbedder(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{Path: t.TempDir()}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
