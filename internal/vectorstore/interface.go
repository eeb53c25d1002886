// Package vectorstore provides vector storage for the error knowledge base.
//
// Two implementations exist behind the Store interface: an embedded
// chromem-go store (default, zero external services) and a Qdrant gRPC
// store for shared deployments. Both embed document text through the
// injected Embedder and rank search results by cosine similarity; the
// similarity metric is owned by the store, not by callers.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates a store connection failure.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Document is one knowledge record to store. ID is the deterministic
// signature UUID; Content is the normalized signature text that gets
// embedded; Metadata carries the solution and source details.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]interface{}
}

// SearchResult is one ranked match from a similarity query.
type SearchResult struct {
	ID       string
	Content  string
	Metadata map[string]interface{}
	Score    float32
}

// Store is the interface for knowledge-base storage operations.
// Implementations are used by a single sequential pipeline; no concurrent
// writer guarantee is made or required.
type Store interface {
	// AddDocuments embeds and upserts documents into the default collection.
	// Returns the stored point IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search embeds the query text and returns up to k results ordered by
	// similarity score (highest first).
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// HasDocument reports whether a point with the given ID exists in the
	// default collection. This is the existence check backing
	// check-before-insert deduplication.
	HasDocument(ctx context.Context, id string) (bool, error)

	// CreateCollection creates a collection for vectors of the given size.
	CreateCollection(ctx context.Context, collectionName string, vectorSize int) error

	// CollectionExists checks if a collection exists.
	CollectionExists(ctx context.Context, collectionName string) (bool, error)

	// Close closes the store connection and releases resources.
	Close() error
}

// collectionNamePattern validates collection names: lowercase letters,
// numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against naming rules.
// Rejects uppercase, special characters, path traversal and spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}
