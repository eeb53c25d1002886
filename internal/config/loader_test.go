package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// A missing config file is fine; defaults apply.
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, "tei", cfg.Embeddings.Style)
	assert.Equal(t, Duration(30*time.Second), cfg.Embeddings.Timeout)
	assert.Equal(t, "chromem", cfg.Store.Provider)
	assert.Equal(t, "log_file_errors", cfg.Store.Collection)
	assert.Equal(t, 1536, cfg.Store.VectorSize)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, 7, cfg.Analyzer.ChunkSize)
	assert.Equal(t, 4, cfg.Analyzer.MinNumericLen)
	assert.Equal(t, 3, cfg.Analyzer.TopK)
	assert.Zero(t, cfg.Analyzer.MinScore)
}

func TestLoad_YAMLFile(t *testing.T) {
	content := `
logging:
  level: debug
  format: json
embeddings:
  base_url: https://embeds.example.com
  model: text-embedding-3-large
  api_key: secret-key-123
  style: openai
  timeout: 45s
store:
  provider: qdrant
  collection: custom_errors
  vector_size: 3072
analyzer:
  chunk_size: 10
  min_score: 0.75
`
	path := writeConfigFile(t, content, 0600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "https://embeds.example.com", cfg.Embeddings.BaseURL)
	assert.Equal(t, "text-embedding-3-large", cfg.Embeddings.Model)
	assert.Equal(t, "secret-key-123", cfg.Embeddings.APIKey.Value())
	assert.Equal(t, Duration(45*time.Second), cfg.Embeddings.Timeout)
	assert.Equal(t, "qdrant", cfg.Store.Provider)
	assert.Equal(t, "custom_errors", cfg.Store.Collection)
	assert.Equal(t, 3072, cfg.Store.VectorSize)
	assert.Equal(t, 10, cfg.Analyzer.ChunkSize)
	assert.Equal(t, 0.75, cfg.Analyzer.MinScore)

	// Unset fields still default.
	assert.Equal(t, 3, cfg.Analyzer.TopK)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "store:\n  provider: chromem\n", 0600)

	t.Setenv("STORE_PROVIDER", "qdrant")
	t.Setenv("QDRANT_HOST", "qdrant.lab.internal")
	t.Setenv("ANALYZER_CHUNK_SIZE", "12")
	t.Setenv("EMBEDDINGS_BASE_URL", "http://tei.lab.internal:8080")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qdrant", cfg.Store.Provider)
	assert.Equal(t, "qdrant.lab.internal", cfg.Qdrant.Host)
	assert.Equal(t, 12, cfg.Analyzer.ChunkSize)
	assert.Equal(t, "http://tei.lab.internal:8080", cfg.Embeddings.BaseURL)
}

func TestLoad_InsecurePermissions(t *testing.T) {
	path := writeConfigFile(t, "logging:\n  level: info\n", 0644)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoad_ReadOnlyPermissionAccepted(t *testing.T) {
	path := writeConfigFile(t, "logging:\n  level: info\n", 0400)

	_, err := Load(path)
	assert.NoError(t, err)
}

func TestLoad_FileTooLarge(t *testing.T) {
	big := fmt.Sprintf("# %s\n", string(make([]byte, maxConfigFileSize)))
	path := writeConfigFile(t, big, 0600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file too large")
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad logging format",
			content: "logging:\n  format: xml\n",
			wantErr: "logging format",
		},
		{
			name:    "openai style without api key",
			content: "embeddings:\n  style: openai\n",
			wantErr: "api_key required",
		},
		{
			name:    "unknown store provider",
			content: "store:\n  provider: faiss\n",
			wantErr: "store provider",
		},
		{
			name:    "min_score out of range",
			content: "analyzer:\n  min_score: 1.5\n",
			wantErr: "min_score",
		},
		{
			name:    "negative chunk size",
			content: "analyzer:\n  chunk_size: -2\n",
			wantErr: "chunk_size",
		},
		{
			name:    "bad qdrant port",
			content: "store:\n  provider: qdrant\nqdrant:\n  port: 99999\n",
			wantErr: "qdrant port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content, 0600)

			_, err := Load(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-super-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "sk-super-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("not-a-duration")))
	assert.Error(t, d.UnmarshalText([]byte("-5s")))
}

// writeConfigFile writes a temp config file with the given permissions.
func writeConfigFile(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	return path
}
