// Package embeddings provides embedding generation via an HTTP endpoint.
//
// Two wire styles are supported: TEI (text-embeddings-inference style
// POST /embed returning bare vectors) and OpenAI-compatible
// (POST /embeddings with a {model, input} envelope), which covers the
// Azure OpenAI deployments instrument labs typically run.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/instrumentqa/internal/config"
	"golang.org/x/time/rate"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Wire styles.
const (
	StyleTEI    = "tei"
	StyleOpenAI = "openai"
)

// Retry policy for transient endpoint failures. Bounded so that a dead
// endpoint fails a chunk, not the whole run.
const (
	maxRetries     = 3
	initialBackoff = time.Second
	maxBackoff     = 10 * time.Second
)

// Config holds configuration for the embedding service.
type Config struct {
	// BaseURL is the base URL for the embedding API.
	BaseURL string

	// Model is the embedding model to use.
	Model string

	// APIKey authenticates requests. Optional for TEI.
	APIKey config.Secret

	// Style is StyleTEI or StyleOpenAI.
	Style string

	// RequestsPerSecond rate-limits outbound calls. Zero disables limiting.
	RequestsPerSecond float64

	// Timeout bounds one HTTP request. Zero selects 30s.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	switch c.Style {
	case StyleTEI, StyleOpenAI, "":
	default:
		return fmt.Errorf("%w: unknown style %q", ErrInvalidConfig, c.Style)
	}
	return nil
}

// Service generates embeddings over HTTP. Safe for concurrent use.
type Service struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	metrics *Metrics
}

// NewService creates a new embedding service with the given configuration.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if cfg.Style == "" {
		cfg.Style = StyleTEI
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Service{
		config:  cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		metrics: NewMetrics(),
	}, nil
}

// Dimension returns the embedding dimension for the configured model.
// Falls back to 1536 (text-embedding-3-small) if the model is unknown.
func (s *Service) Dimension() int {
	return detectDimension(s.config.Model)
}

// EmbedDocuments generates embeddings for multiple texts.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := s.embedWithRetry(ctx, texts)
	if err != nil {
		genErr = err
		return nil, genErr
	}
	if len(vectors) != len(texts) {
		genErr = fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
		return nil, genErr
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_query", time.Since(start), 1, genErr)
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := s.embedWithRetry(ctx, []string{text})
	if err != nil {
		genErr = err
		return nil, genErr
	}
	if len(vectors) == 0 {
		genErr = fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
		return nil, genErr
	}
	return vectors[0], nil
}

// embedWithRetry issues one embedding request with bounded exponential
// backoff on transient failures (429, 5xx, network errors).
func (s *Service) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
			}
		}

		vectors, retryable, err := s.doRequest(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if !retryable || attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	return nil, lastErr
}

// teiRequest is the request body for the TEI embed endpoint.
type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

// openAIRequest is the request body for OpenAI-compatible endpoints.
type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// openAIResponse is the response envelope of OpenAI-compatible endpoints.
type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// doRequest performs one HTTP round trip. The second return value reports
// whether the failure is worth retrying.
func (s *Service) doRequest(ctx context.Context, texts []string) ([][]float32, bool, error) {
	var (
		path string
		body []byte
		err  error
	)

	switch s.config.Style {
	case StyleOpenAI:
		path = "/embeddings"
		body, err = json.Marshal(openAIRequest{Model: s.config.Model, Input: texts})
	default:
		path = "/embed"
		body, err = json.Marshal(teiRequest{Inputs: texts, Truncate: true})
	}
	if err != nil {
		return nil, false, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.config.APIKey.IsSet() {
		// Azure expects api-key, OpenAI-compatible servers expect Bearer.
		// Setting both keeps one config working against either.
		httpReq.Header.Set("api-key", s.config.APIKey.Value())
		httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey.Value())
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, isRetryableStatus(resp.StatusCode),
			fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	switch s.config.Style {
	case StyleOpenAI:
		var envelope openAIResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return nil, false, fmt.Errorf("decoding response: %w", err)
		}
		vectors := make([][]float32, len(envelope.Data))
		for _, item := range envelope.Data {
			if item.Index < 0 || item.Index >= len(vectors) {
				return nil, false, fmt.Errorf("%w: out-of-range embedding index %d", ErrEmbeddingFailed, item.Index)
			}
			vectors[item.Index] = item.Embedding
		}
		return vectors, false, nil
	default:
		var vectors [][]float32
		if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
			return nil, false, fmt.Errorf("decoding response: %w", err)
		}
		return vectors, false, nil
	}
}

// isRetryableStatus reports whether an HTTP status is worth retrying.
// Rate limits and server errors are transient; auth and client errors
// will not improve on retry.
func isRetryableStatus(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status < 600
}

// detectDimension returns the embedding dimension for a model name.
func detectDimension(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "BAAI/bge-small-en-v1.5", "all-MiniLM-L6-v2":
		return 384
	case "BAAI/bge-base-en-v1.5":
		return 768
	case "BAAI/bge-large-en-v1.5":
		return 1024
	default:
		return 1536
	}
}
