// Package knowledge is the write path of the error knowledge base.
//
// An Entry pairs known error text with its remedy. Ingestion normalizes
// the error text into a signature, derives the deterministic point ID and
// inserts only signatures the store has not seen. Re-ingesting the same
// material is a no-op.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/instrumentqa/internal/logparse"
	"github.com/fyrsmithlabs/instrumentqa/internal/normalize"
	"github.com/fyrsmithlabs/instrumentqa/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("instrumentqa.knowledge")

// ErrNoSolution indicates a sample file without a solution sidecar.
var ErrNoSolution = errors.New("sample has no solution file")

// solutionExt is the sidecar extension holding a sample's remedy text.
const solutionExt = ".solution"

// Entry is one knowledge record to ingest.
type Entry struct {
	// Signature is the normalized form of Content. Computed during
	// ingestion when empty.
	Signature string

	// Content is the raw error text as it appeared in a log.
	Content string

	// Solution is the remedy to suggest when this pattern matches.
	Solution string

	// Instrument identifies the instrument the pattern was observed on.
	Instrument string

	// Severity is the highest severity seen for this pattern.
	Severity string

	// ErrorLevels lists the distinct level tokens present in the sample.
	ErrorLevels []string
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Inserted int
	Skipped  int
	Failed   int
}

// Service ingests knowledge entries into a vector store.
type Service struct {
	store      vectorstore.Store
	normalizer *normalize.Normalizer
	logger     *zap.Logger
}

// NewService creates a knowledge ingestion service.
func NewService(store vectorstore.Store, normalizer *normalize.Normalizer, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if normalizer == nil {
		normalizer = normalize.New(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, normalizer: normalizer, logger: logger}, nil
}

// Ingest inserts entries whose signatures are not yet in the store.
// Entries are processed sequentially; a failed entry is counted and does
// not stop the rest of the batch.
func (s *Service) Ingest(ctx context.Context, entries []Entry) (IngestResult, error) {
	ctx, span := tracer.Start(ctx, "knowledge.Ingest")
	defer span.End()

	span.SetAttributes(attribute.Int("entry_count", len(entries)))

	var result IngestResult
	for i := range entries {
		entry := &entries[i]
		if strings.TrimSpace(entry.Content) == "" {
			result.Failed++
			s.logger.Warn("skipping entry with empty content", zap.Int("index", i))
			continue
		}

		if entry.Signature == "" {
			entry.Signature = s.normalizer.Normalize(entry.Content)
		}
		id := normalize.SignatureID(entry.Signature)

		exists, err := s.store.HasDocument(ctx, id)
		if err != nil {
			result.Failed++
			s.logger.Warn("existence check failed",
				zap.String("id", id),
				zap.Error(err),
			)
			continue
		}
		if exists {
			result.Skipped++
			s.logger.Debug("signature already known",
				zap.String("id", id),
				zap.String("signature", entry.Signature),
			)
			continue
		}

		doc := vectorstore.Document{
			ID:      id,
			Content: entry.Signature,
			Metadata: map[string]interface{}{
				"signature":    entry.Signature,
				"pattern":      entry.Content,
				"solution":     entry.Solution,
				"instrument":   entry.Instrument,
				"severity":     entry.Severity,
				"error_levels": strings.Join(entry.ErrorLevels, ","),
			},
		}

		if _, err := s.store.AddDocuments(ctx, []vectorstore.Document{doc}); err != nil {
			result.Failed++
			span.RecordError(err)
			s.logger.Warn("insert failed",
				zap.String("id", id),
				zap.Error(err),
			)
			continue
		}

		result.Inserted++
		s.logger.Info("ingested knowledge entry",
			zap.String("id", id),
			zap.String("instrument", entry.Instrument),
			zap.String("severity", entry.Severity),
		)
	}

	span.SetAttributes(
		attribute.Int("inserted", result.Inserted),
		attribute.Int("skipped", result.Skipped),
		attribute.Int("failed", result.Failed),
	)
	span.SetStatus(codes.Ok, "success")

	return result, nil
}

// IngestSamplesDir ingests every annotated sample under dir. A sample is a
// .log file with a sibling .solution file carrying the remedy text
// (sensor_fault.log + sensor_fault.solution). Instrument, severity and
// level metadata are derived by parsing the sample's log lines.
func (s *Service) IngestSamplesDir(ctx context.Context, dir string) (IngestResult, error) {
	ctx, span := tracer.Start(ctx, "knowledge.IngestSamplesDir")
	defer span.End()

	span.SetAttributes(attribute.String("dir", dir))

	var entries []Entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".log" {
			return nil
		}

		entry, err := s.loadSample(path)
		if err != nil {
			if errors.Is(err, ErrNoSolution) {
				s.logger.Warn("sample has no solution sidecar, skipping",
					zap.String("path", path),
				)
				return nil
			}
			return fmt.Errorf("loading sample %s: %w", path, err)
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return IngestResult{}, fmt.Errorf("walking samples dir: %w", err)
	}

	if len(entries) == 0 {
		s.logger.Warn("no annotated samples found", zap.String("dir", dir))
		return IngestResult{}, nil
	}

	return s.Ingest(ctx, entries)
}

// loadSample builds an Entry from a .log file and its .solution sidecar.
func (s *Service) loadSample(logPath string) (Entry, error) {
	solutionPath := strings.TrimSuffix(logPath, filepath.Ext(logPath)) + solutionExt
	solution, err := os.ReadFile(solutionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, ErrNoSolution
		}
		return Entry{}, err
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		Content:  strings.TrimSpace(string(content)),
		Solution: strings.TrimSpace(string(solution)),
		Severity: string(logparse.SeverityUnknown),
	}

	// Best-effort metadata from whatever lines parse; an unparseable
	// sample still ingests with its raw content.
	result, err := logparse.ParseReader(strings.NewReader(string(content)))
	if err != nil {
		return Entry{}, err
	}
	maxSeverity := logparse.SeverityUnknown
	seenLevels := make(map[string]bool)
	for _, e := range result.Entries {
		if entry.Instrument == "" && e.InstrumentID != "" {
			entry.Instrument = e.InstrumentID
		}
		if e.Severity.Rank() > maxSeverity.Rank() {
			maxSeverity = e.Severity
		}
		if e.Level != "" && !seenLevels[e.Level] {
			seenLevels[e.Level] = true
			entry.ErrorLevels = append(entry.ErrorLevels, e.Level)
		}
	}
	entry.Severity = string(maxSeverity)

	return entry, nil
}
