// Package config provides configuration loading for instrumentqa.
//
// Configuration is layered: hardcoded defaults, then an optional YAML file
// (~/.config/instrumentqa/config.yaml), then environment variables.
// A missing or invalid required value is fatal at startup; the run never
// begins with a broken configuration.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates a missing or invalid configuration value.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete instrumentqa configuration.
type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Store      StoreConfig      `koanf:"store"`
	Qdrant     QdrantConfig     `koanf:"qdrant"`
	Chromem    ChromemConfig    `koanf:"chromem"`
	Analyzer   AnalyzerConfig   `koanf:"analyzer"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// EmbeddingsConfig holds the embedding endpoint settings.
type EmbeddingsConfig struct {
	// BaseURL is the base URL of the embedding API.
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// APIKey authenticates against the endpoint. Required for the
	// "openai" style; TEI deployments usually run without one.
	APIKey Secret `koanf:"api_key"`

	// Style selects the wire format: "tei" (POST /embed, bare vectors)
	// or "openai" (POST /embeddings, {model,input} envelope).
	Style string `koanf:"style"`

	// RequestsPerSecond rate-limits outbound embedding calls.
	// Zero disables the limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// Timeout bounds one embedding HTTP request.
	Timeout Duration `koanf:"timeout"`
}

// StoreConfig selects and names the vector store.
type StoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant".
	Provider string `koanf:"provider"`

	// Collection is the knowledge-base collection name.
	Collection string `koanf:"collection"`

	// VectorSize is the embedding dimensionality. Must match the model.
	VectorSize int `koanf:"vector_size"`
}

// QdrantConfig holds settings for the qdrant provider.
type QdrantConfig struct {
	Host string `koanf:"host"`

	// Port is the gRPC port (6334), not the HTTP REST port.
	Port   int    `koanf:"port"`
	APIKey Secret `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// ChromemConfig holds settings for the embedded chromem provider.
type ChromemConfig struct {
	// Path is the persistent storage directory.
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// AnalyzerConfig holds the pipeline tunables.
type AnalyzerConfig struct {
	// ChunkSize is the legacy-mode entry group size.
	ChunkSize int `koanf:"chunk_size"`

	// MinNumericLen is the minimum digit-run length the normalizer
	// replaces with a placeholder.
	MinNumericLen int `koanf:"min_numeric_len"`

	// TopK is the number of knowledge matches requested per chunk.
	TopK int `koanf:"top_k"`

	// MinScore drops matches below this similarity score.
	MinScore float64 `koanf:"min_score"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}
	if cfg.Embeddings.Style == "" {
		cfg.Embeddings.Style = "tei"
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = Duration(30 * time.Second)
	}

	if cfg.Store.Provider == "" {
		cfg.Store.Provider = "chromem"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "log_file_errors"
	}
	if cfg.Store.VectorSize == 0 {
		cfg.Store.VectorSize = 1536 // text-embedding-3-small dimensions
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}

	if cfg.Chromem.Path == "" {
		cfg.Chromem.Path = "~/.config/instrumentqa/knowledge"
	}

	if cfg.Analyzer.ChunkSize == 0 {
		cfg.Analyzer.ChunkSize = 7
	}
	if cfg.Analyzer.MinNumericLen == 0 {
		cfg.Analyzer.MinNumericLen = 4
	}
	if cfg.Analyzer.TopK == 0 {
		cfg.Analyzer.TopK = 3
	}
}

// Validate checks the configuration. Errors here abort startup.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: logging format must be json or console, got %q", ErrInvalidConfig, c.Logging.Format)
	}

	if c.Embeddings.BaseURL == "" {
		return fmt.Errorf("%w: embeddings base URL required", ErrInvalidConfig)
	}
	switch c.Embeddings.Style {
	case "tei":
	case "openai":
		if !c.Embeddings.APIKey.IsSet() {
			return fmt.Errorf("%w: embeddings api_key required for openai style", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: embeddings style must be tei or openai, got %q", ErrInvalidConfig, c.Embeddings.Style)
	}
	if c.Embeddings.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: embeddings requests_per_second cannot be negative", ErrInvalidConfig)
	}

	switch c.Store.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("%w: store provider must be chromem or qdrant, got %q", ErrInvalidConfig, c.Store.Provider)
	}
	if c.Store.Collection == "" {
		return fmt.Errorf("%w: store collection required", ErrInvalidConfig)
	}
	if c.Store.VectorSize <= 0 {
		return fmt.Errorf("%w: store vector_size must be positive", ErrInvalidConfig)
	}

	if c.Store.Provider == "qdrant" {
		if c.Qdrant.Host == "" {
			return fmt.Errorf("%w: qdrant host required", ErrInvalidConfig)
		}
		if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
			return fmt.Errorf("%w: invalid qdrant port: %d", ErrInvalidConfig, c.Qdrant.Port)
		}
	}

	if c.Analyzer.ChunkSize <= 0 {
		return fmt.Errorf("%w: analyzer chunk_size must be positive", ErrInvalidConfig)
	}
	if c.Analyzer.TopK <= 0 {
		return fmt.Errorf("%w: analyzer top_k must be positive", ErrInvalidConfig)
	}
	if c.Analyzer.MinScore < 0 || c.Analyzer.MinScore > 1 {
		return fmt.Errorf("%w: analyzer min_score must be in [0,1], got %v", ErrInvalidConfig, c.Analyzer.MinScore)
	}

	return nil
}
