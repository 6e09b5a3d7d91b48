// Package pipeline sequences the catalog ingestion run: fetch and extract
// the catalog, then parse, fetch, clean and persist one book at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gutenlab/gutenberg-pipeline/internal/gutenberg"
	"github.com/gutenlab/gutenberg-pipeline/internal/metrics"
)

// State is the orchestrator's lifecycle phase.
type State string

// Pipeline states. Per-book errors never reach StateAborted; only catalog
// fetch/extract failures do.
const (
	StateNotStarted   State = "not_started"
	StateCatalogReady State = "catalog_ready"
	StateExtracting   State = "extracting"
	StatePerBookLoop  State = "per_book_loop"
	StateDone         State = "done"
	StateAborted      State = "aborted"
)

// Pipeline wires the ingestion components together. Processing is
// sequential by design; the only shared state across books is the book
// store's connection pool, used serially.
type Pipeline struct {
	catalog gutenberg.CatalogSource
	parser  gutenberg.Parser
	texts   gutenberg.TextSource
	cleaner gutenberg.Cleaner
	books   gutenberg.BookStore
	runs    gutenberg.RunStore
	logger  *zap.Logger

	state State
	now   func() time.Time
}

// New constructs a Pipeline. The run store may be nil when run
// bookkeeping is not wanted.
func New(
	catalog gutenberg.CatalogSource,
	parser gutenberg.Parser,
	texts gutenberg.TextSource,
	cleaner gutenberg.Cleaner,
	books gutenberg.BookStore,
	runs gutenberg.RunStore,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		catalog: catalog,
		parser:  parser,
		texts:   texts,
		cleaner: cleaner,
		books:   books,
		runs:    runs,
		logger:  logger,
		state:   StateNotStarted,
		now:     time.Now,
	}
}

// State reports the current lifecycle phase.
func (p *Pipeline) State() State {
	return p.state
}

// Run executes one full ingestion pass. Catalog failures abort with a
// non-nil error; per-book failures are logged, counted and skipped. The
// returned summary is valid in both cases.
func (p *Pipeline) Run(ctx context.Context) (gutenberg.RunSummary, error) {
	var summary gutenberg.RunSummary

	runID := uuid.New()
	startedAt := p.now().UTC()
	p.startRun(ctx, runID, startedAt)

	archive, err := p.catalog.EnsureArchive(ctx)
	if err != nil {
		return summary, p.abort(ctx, runID, summary, fmt.Errorf("ensure catalog archive: %w", err))
	}
	p.state = StateCatalogReady

	p.state = StateExtracting
	root, err := p.catalog.ExtractArchive(ctx, archive)
	if err != nil {
		return summary, p.abort(ctx, runID, summary, fmt.Errorf("extract catalog archive: %w", err))
	}

	docs, err := p.catalog.ListDocuments(root)
	if err != nil {
		return summary, p.abort(ctx, runID, summary, fmt.Errorf("list catalog documents: %w", err))
	}
	p.logger.Info("Catalog ready", zap.Int("documents", len(docs)))

	p.state = StatePerBookLoop
	canceled := false
	for _, doc := range docs {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		outcome := p.processBook(ctx, doc)
		summary.Add(outcome)
		p.logOutcome(doc, outcome)
	}

	status := gutenberg.RunDone
	if canceled {
		status = gutenberg.RunCanceled
	}
	p.state = StateDone
	p.completeRun(runID, status, summary)
	metrics.ObserveRun(string(status))

	p.logger.Info("Run finished",
		zap.String("run_id", runID.String()),
		zap.String("status", string(status)),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))

	if canceled {
		return summary, ctx.Err()
	}
	return summary, nil
}

// processBook runs the per-book stages and folds every failure into an
// Outcome; nothing here may abort the run.
func (p *Pipeline) processBook(ctx context.Context, doc string) gutenberg.Outcome {
	start := p.now()

	record, err := p.parser.ParseFile(doc)
	if err != nil {
		if errors.Is(err, gutenberg.ErrNoBookID) {
			return p.observe(gutenberg.Skipped(0, "no book id in document"), 0, start)
		}
		return p.observe(gutenberg.Failed(0, err), 0, start)
	}

	var text *string
	raw, err := p.texts.FetchText(ctx, record)
	switch {
	case err == nil:
		cleaned := p.cleaner.Clean(raw)
		text = &cleaned
	case errors.Is(err, gutenberg.ErrNoText):
		// The record is still worth keeping; many catalog entries have
		// no hosted plain text.
		text = nil
	default:
		return p.observe(gutenberg.Failed(record.ID, fmt.Errorf("fetch text: %w", err)), 0, start)
	}

	if err := p.books.UpsertBook(ctx, record, text); err != nil {
		return p.observe(gutenberg.Failed(record.ID, fmt.Errorf("persist book: %w", err)), 0, start)
	}

	textBytes := 0
	if text != nil {
		textBytes = len(*text)
	}
	return p.observe(gutenberg.Stored(record.ID), textBytes, start)
}

func (p *Pipeline) observe(o gutenberg.Outcome, textBytes int, start time.Time) gutenberg.Outcome {
	metrics.ObserveBook(string(o.Kind), textBytes, p.now().Sub(start))
	return o
}

func (p *Pipeline) logOutcome(doc string, o gutenberg.Outcome) {
	switch o.Kind {
	case gutenberg.OutcomeStored:
		p.logger.Debug("Book stored", zap.Int64("book_id", o.BookID))
	case gutenberg.OutcomeSkipped:
		p.logger.Warn("Book skipped",
			zap.Int64("book_id", o.BookID),
			zap.String("document", doc),
			zap.String("reason", o.Reason))
	case gutenberg.OutcomeFailed:
		p.logger.Error("Book failed",
			zap.Int64("book_id", o.BookID),
			zap.String("document", doc),
			zap.Error(o.Err))
	}
}

// abort finalizes a fatal catalog error: state, run row, metrics.
func (p *Pipeline) abort(ctx context.Context, runID uuid.UUID, summary gutenberg.RunSummary, err error) error {
	p.state = StateAborted
	p.completeRun(runID, gutenberg.RunAborted, summary)
	metrics.ObserveRun(string(gutenberg.RunAborted))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// startRun and completeRun treat bookkeeping failures as warnings: losing
// the run row must not affect ingestion.
func (p *Pipeline) startRun(ctx context.Context, runID uuid.UUID, startedAt time.Time) {
	if p.runs == nil {
		return
	}
	if err := p.runs.StartRun(ctx, runID, startedAt); err != nil {
		p.logger.Warn("Failed to record run start",
			zap.String("run_id", runID.String()),
			zap.Error(err))
	}
}

func (p *Pipeline) completeRun(runID uuid.UUID, status gutenberg.RunStatus, summary gutenberg.RunSummary) {
	if p.runs == nil {
		return
	}
	// Completion uses a fresh context so a canceled run still records its
	// final status.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.runs.CompleteRun(ctx, runID, p.now().UTC(), status, summary); err != nil {
		p.logger.Warn("Failed to record run completion",
			zap.String("run_id", runID.String()),
			zap.Error(err))
	}
}
