package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gutenlab/gutenberg-pipeline/internal/admin"
	"github.com/gutenlab/gutenberg-pipeline/internal/catalog"
	"github.com/gutenlab/gutenberg-pipeline/internal/config"
	"github.com/gutenlab/gutenberg-pipeline/internal/logging"
	"github.com/gutenlab/gutenberg-pipeline/internal/metrics"
	"github.com/gutenlab/gutenberg-pipeline/internal/pipeline"
	"github.com/gutenlab/gutenberg-pipeline/internal/rdf"
	"github.com/gutenlab/gutenberg-pipeline/internal/retryx"
	"github.com/gutenlab/gutenberg-pipeline/internal/storage/postgres"
	"github.com/gutenlab/gutenberg-pipeline/internal/text"
)

// newRunCmd creates the 'run' subcommand, which executes one full
// ingestion pass over the catalog.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs one full catalog ingestion pass",
		Long: `Downloads the RDF catalog archive (unless cached), extracts it, and
processes every book sequentially: parse metadata, fetch and clean the
plain text, upsert into Postgres. Per-book failures are logged and
skipped; only catalog fetch/extract failures abort the run.`,
		RunE: runIngestion,
	}
	return cmd
}

func runIngestion(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, closeAll, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeAll()

	if cfg.Server.Enabled {
		admin.New(cfg.Server.Port, logger).Start(ctx)
	}

	summary, err := p.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run pipeline: %w", err)
	}

	// Per-book failures are warnings, not a run failure; the summary and
	// the pipeline_runs row carry the counts.
	logger.Info("Ingestion complete",
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return nil
}

// buildPipeline wires the ingestion components from configuration.
func buildPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pipeline.Pipeline, func(), error) {
	pool, err := postgres.Connect(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.DB.EnsureSchema {
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	books, err := postgres.NewBookStoreWithPool(pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("init book store: %w", err)
	}
	runs, err := postgres.NewRunStoreWithPool(pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("init run store: %w", err)
	}

	backoff := time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond
	backoffMax := time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond

	source := catalog.NewSource(catalog.Config{
		FeedsURL: cfg.Catalog.FeedsURL,
		DataDir:  cfg.Catalog.DataDir,
		Limit:    cfg.Catalog.Limit,
		Timeout:  cfg.HTTPTimeout(),
	}, retryx.Default(), logger)

	texts, err := text.NewFetcher(text.FetcherConfig{
		BaseURL:   cfg.Text.BaseURL,
		CacheDir:  cfg.Text.CacheDir,
		UserAgent: cfg.Text.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
	}, retryx.New(cfg.HTTP.MaxRetries+1, backoff, backoffMax), logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("init text fetcher: %w", err)
	}

	p := pipeline.New(
		source,
		rdf.NewParser(),
		texts,
		text.Cleaner{},
		books,
		runs,
		logger,
	)
	return p, pool.Close, nil
}
