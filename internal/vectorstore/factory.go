package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/instrumentqa/internal/config"
	"go.uber.org/zap"
)

// Provider names accepted by NewStore.
const (
	ProviderChromem = "chromem"
	ProviderQdrant  = "qdrant"
)

// NewStore creates a Store for the configured provider. The embedder is
// injected so both providers share one embedding service instance.
func NewStore(cfg *config.Config, embedder Embedder, logger *zap.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}

	switch cfg.Store.Provider {
	case ProviderChromem, "":
		return NewChromemStore(ChromemConfig{
			Path:              cfg.Chromem.Path,
			Compress:          cfg.Chromem.Compress,
			DefaultCollection: cfg.Store.Collection,
			VectorSize:        cfg.Store.VectorSize,
		}, embedder, logger)
	case ProviderQdrant:
		return NewQdrantStore(QdrantConfig{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			APIKey:         cfg.Qdrant.APIKey.Value(),
			UseTLS:         cfg.Qdrant.UseTLS,
			CollectionName: cfg.Store.Collection,
			VectorSize:     uint64(cfg.Store.VectorSize),
		}, embedder)
	default:
		return nil, fmt.Errorf("%w: unsupported store provider %q", ErrInvalidConfig, cfg.Store.Provider)
	}
}
