// Package main implements the instrumentqa CLI for analyzing instrument
// log files against a vector knowledge base of known error patterns.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fyrsmithlabs/instrumentqa/internal/chunk"
	"github.com/fyrsmithlabs/instrumentqa/internal/config"
	"github.com/fyrsmithlabs/instrumentqa/internal/embeddings"
	"github.com/fyrsmithlabs/instrumentqa/internal/knowledge"
	"github.com/fyrsmithlabs/instrumentqa/internal/logging"
	"github.com/fyrsmithlabs/instrumentqa/internal/normalize"
	"github.com/fyrsmithlabs/instrumentqa/internal/suggest"
	"github.com/fyrsmithlabs/instrumentqa/internal/vectorstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// configPath is the optional config file override.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "instrumentqa",
	Short: "Instrument log QA against a vector knowledge base",
	Long: `instrumentqa parses instrument log files (legacy and ULF formats),
normalizes error text into stable signatures and matches them against a
vector knowledge base of known error patterns to suggest solutions.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/instrumentqa/config.yaml)")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(initIndexCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <logfile-or-dir>",
	Short: "Analyze log files and print solution suggestions",
	Long: `Analyze parses the log file, groups entries into chunks and matches
each chunk against the knowledge base. Given a directory, every .log and
.txt file under it is analyzed.

Examples:
  # Analyze a legacy-format log
  instrumentqa analyze run_2024-06-01.log

  # Analyze a whole run directory
  instrumentqa analyze ./runs/2024-06-01/

  # With an explicit config file
  instrumentqa analyze --config ./config.yaml instrument.log`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <samples-dir>",
	Short: "Ingest annotated error samples into the knowledge base",
	Long: `Ingest walks the directory for .log sample files with .solution
sidecars and inserts each new error signature into the knowledge base.
Already-known signatures are skipped.

Examples:
  instrumentqa ingest ./samples`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var initIndexCmd = &cobra.Command{
	Use:   "init-index",
	Short: "Create the knowledge-base collection",
	Long: `Create the configured collection in the vector store with the
configured vector size. Safe to run against an existing collection.`,
	Args: cobra.NoArgs,
	RunE: runInitIndex,
}

// app bundles the wired services shared by all commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  vectorstore.Store
}

// newApp loads configuration and wires the embedding service and store.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL:           cfg.Embeddings.BaseURL,
		Model:             cfg.Embeddings.Model,
		APIKey:            cfg.Embeddings.APIKey,
		Style:             cfg.Embeddings.Style,
		RequestsPerSecond: cfg.Embeddings.RequestsPerSecond,
		Timeout:           cfg.Embeddings.Timeout.Duration(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding service: %w", err)
	}

	store, err := vectorstore.NewStore(cfg, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	return &app{cfg: cfg, logger: logger, store: store}, nil
}

// close releases the app's resources.
func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := suggest.NewService(
		a.store,
		normalize.New(a.cfg.Analyzer.MinNumericLen),
		chunk.NewChunker(a.cfg.Analyzer.ChunkSize),
		suggest.Config{TopK: a.cfg.Analyzer.TopK, MinScore: a.cfg.Analyzer.MinScore},
		a.logger,
	)
	if err != nil {
		return err
	}

	ctx := context.Background()
	info, err := os.Stat(args[0])
	if err != nil {
		return err
	}

	if info.IsDir() {
		reports, err := svc.AnalyzeDir(ctx, args[0])
		if err != nil {
			return fmt.Errorf("analyzing %s: %w", args[0], err)
		}
		for i, report := range reports {
			if i > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			printReport(cmd, report)
		}
		return nil
	}

	report, err := svc.AnalyzeFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", args[0], err)
	}

	printReport(cmd, report)
	return nil
}

// printReport renders the analysis outcome to stdout.
func printReport(cmd *cobra.Command, report *suggest.Report) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Log file: %s (%s format)\n", report.Path, report.Format)

	for i, cr := range report.Chunks {
		fmt.Fprintf(out, "\nChunk %d/%d  %s .. %s  severity=%s  instruments=%v\n",
			i+1, len(report.Chunks),
			cr.Chunk.StartTime.UTC().Format("2006-01-02 15:04:05"),
			cr.Chunk.EndTime.UTC().Format("2006-01-02 15:04:05"),
			cr.Chunk.MaxSeverity, cr.Chunk.Instruments)

		if cr.Err != nil {
			fmt.Fprintf(out, "  matching failed: %v\n", cr.Err)
			continue
		}
		if len(cr.Suggestions) == 0 {
			fmt.Fprintln(out, "  no known error patterns matched")
			continue
		}
		for _, sg := range cr.Suggestions {
			fmt.Fprintf(out, "  [%.3f] %s (%s, %s)\n", sg.Score, sg.Pattern, sg.Instrument, sg.Severity)
			fmt.Fprintf(out, "          solution: %s\n", sg.Solution)
		}
	}

	s := report.Summary
	fmt.Fprintf(out, "\nSummary: %d entries parsed, %d lines skipped, %d chunks, %d suggestions",
		s.EntriesParsed, s.LinesSkipped, s.ChunksProcessed, s.SuggestionsFound)
	if s.EmbeddingErrors > 0 || s.StoreErrors > 0 {
		fmt.Fprintf(out, ", %d embedding errors, %d store errors", s.EmbeddingErrors, s.StoreErrors)
	}
	fmt.Fprintln(out)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := knowledge.NewService(a.store, normalize.New(a.cfg.Analyzer.MinNumericLen), a.logger)
	if err != nil {
		return err
	}

	result, err := svc.IngestSamplesDir(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("ingesting samples: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d, skipped %d already known, %d failed\n",
		result.Inserted, result.Skipped, result.Failed)
	if result.Failed > 0 {
		return fmt.Errorf("%d entries failed to ingest", result.Failed)
	}
	return nil
}

func runInitIndex(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	name := a.cfg.Store.Collection

	exists, err := a.store.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if exists {
		fmt.Fprintf(cmd.OutOrStdout(), "Collection %q already exists\n", name)
		return nil
	}

	if err := a.store.CreateCollection(ctx, name, a.cfg.Store.VectorSize); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created collection %q (vector size %d)\n", name, a.cfg.Store.VectorSize)
	return nil
}
