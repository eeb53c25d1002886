// Package suggest is the read path: it matches log chunks against the
// knowledge base and maps hits to solution suggestions.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/instrumentqa/internal/chunk"
	"github.com/fyrsmithlabs/instrumentqa/internal/logparse"
	"github.com/fyrsmithlabs/instrumentqa/internal/normalize"
	"github.com/fyrsmithlabs/instrumentqa/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("instrumentqa.suggest")

// DefaultTopK is the number of matches requested per chunk.
const DefaultTopK = 3

// Suggestion is one knowledge-base match for a chunk.
type Suggestion struct {
	// Solution is the stored remedy text.
	Solution string

	// Pattern is the raw error text the knowledge entry was built from.
	Pattern string

	// Instrument is the instrument the pattern was recorded on.
	Instrument string

	// Severity is the stored severity of the pattern.
	Severity string

	// Score is the similarity score in [0,1], higher is closer.
	Score float32
}

// ChunkResult pairs one analyzed chunk with its suggestions, or with the
// error that kept it from being matched.
type ChunkResult struct {
	Chunk       chunk.Chunk
	Suggestions []Suggestion
	Err         error
}

// RunSummary is the end-of-run accounting for one analyzed file.
type RunSummary struct {
	EntriesParsed    int
	LinesSkipped     int
	ChunksProcessed  int
	SuggestionsFound int
	EmbeddingErrors  int
	StoreErrors      int
}

// Report is the full outcome of analyzing one log file.
type Report struct {
	Path    string
	Format  logparse.Format
	Chunks  []ChunkResult
	Summary RunSummary
}

// Config holds the suggester tunables.
type Config struct {
	// TopK caps the suggestions returned per chunk. Zero selects DefaultTopK.
	TopK int

	// MinScore drops matches scoring below it. Zero keeps everything.
	MinScore float64
}

// Service matches chunks against the knowledge base.
type Service struct {
	store      vectorstore.Store
	normalizer *normalize.Normalizer
	chunker    chunk.Chunker
	config     Config
	logger     *zap.Logger
}

// NewService creates a suggestion service.
func NewService(store vectorstore.Store, normalizer *normalize.Normalizer, chunker chunk.Chunker, cfg Config, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if normalizer == nil {
		normalizer = normalize.New(0)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		normalizer: normalizer,
		chunker:    chunker,
		config:     cfg,
		logger:     logger,
	}, nil
}

// SuggestForChunk normalizes the chunk text and returns the knowledge-base
// matches above the score floor, best first, capped at TopK.
func (s *Service) SuggestForChunk(ctx context.Context, c chunk.Chunk) ([]Suggestion, error) {
	ctx, span := tracer.Start(ctx, "suggest.SuggestForChunk")
	defer span.End()

	span.SetAttributes(
		attribute.Int("entry_count", len(c.Entries)),
		attribute.String("max_severity", string(c.MaxSeverity)),
	)

	query := s.normalizer.Normalize(c.Text)
	if query == "" {
		return nil, nil
	}

	results, err := s.store.Search(ctx, query, s.config.TopK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching knowledge base: %w", err)
	}

	suggestions := make([]Suggestion, 0, len(results))
	for _, r := range results {
		if float64(r.Score) < s.config.MinScore {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Solution:   metadataString(r.Metadata, "solution"),
			Pattern:    metadataString(r.Metadata, "pattern"),
			Instrument: metadataString(r.Metadata, "instrument"),
			Severity:   metadataString(r.Metadata, "severity"),
			Score:      r.Score,
		})
	}

	span.SetAttributes(attribute.Int("suggestions", len(suggestions)))
	span.SetStatus(codes.Ok, "success")

	return suggestions, nil
}

// AnalyzeFile parses one log file, chunks it and matches every chunk.
// A failed chunk is recorded in its ChunkResult and counted; the rest of
// the file is still processed. Only parse-level failures abort.
func (s *Service) AnalyzeFile(ctx context.Context, path string) (*Report, error) {
	ctx, span := tracer.Start(ctx, "suggest.AnalyzeFile")
	defer span.End()

	span.SetAttributes(attribute.String("path", path))

	parsed, err := logparse.ParseFile(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	report := &Report{
		Path:   path,
		Format: logparse.FormatLegacy,
		Summary: RunSummary{
			EntriesParsed: len(parsed.Entries),
			LinesSkipped:  parsed.LinesSkipped,
		},
	}
	if parsed.HasULF {
		report.Format = logparse.FormatULF
	}

	chunks := s.chunker.Chunk(parsed)
	for _, c := range chunks {
		report.Summary.ChunksProcessed++

		suggestions, err := s.SuggestForChunk(ctx, c)
		if err != nil {
			if errors.Is(err, vectorstore.ErrEmbeddingFailed) {
				report.Summary.EmbeddingErrors++
			} else {
				report.Summary.StoreErrors++
			}
			s.logger.Warn("chunk matching failed",
				zap.Time("chunk_start", c.StartTime),
				zap.Strings("instruments", c.Instruments),
				zap.Error(err),
			)
			report.Chunks = append(report.Chunks, ChunkResult{Chunk: c, Err: err})
			continue
		}

		report.Summary.SuggestionsFound += len(suggestions)
		report.Chunks = append(report.Chunks, ChunkResult{Chunk: c, Suggestions: suggestions})
	}

	span.SetAttributes(
		attribute.Int("entries_parsed", report.Summary.EntriesParsed),
		attribute.Int("chunks_processed", report.Summary.ChunksProcessed),
		attribute.Int("suggestions_found", report.Summary.SuggestionsFound),
	)
	span.SetStatus(codes.Ok, "success")

	s.logger.Info("analyzed log file",
		zap.String("path", path),
		zap.String("format", string(report.Format)),
		zap.Int("entries", report.Summary.EntriesParsed),
		zap.Int("chunks", report.Summary.ChunksProcessed),
		zap.Int("suggestions", report.Summary.SuggestionsFound),
	)

	return report, nil
}

// AnalyzeDir analyzes every log file under dir recursively. Unreadable
// files abort the walk; failed chunks within a file do not.
func (s *Service) AnalyzeDir(ctx context.Context, dir string) ([]*Report, error) {
	ctx, span := tracer.Start(ctx, "suggest.AnalyzeDir")
	defer span.End()

	span.SetAttributes(attribute.String("dir", dir))

	var reports []*Report
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".log", ".txt":
		default:
			return nil
		}

		report, err := s.AnalyzeFile(ctx, path)
		if err != nil {
			return err
		}
		reports = append(reports, report)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	span.SetAttributes(attribute.Int("files_analyzed", len(reports)))
	span.SetStatus(codes.Ok, "success")
	return reports, nil
}

// metadataString extracts a string metadata value, tolerating both the
// string maps chromem returns and the typed payloads qdrant returns.
func metadataString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	v, ok := metadata[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
	return s
}
