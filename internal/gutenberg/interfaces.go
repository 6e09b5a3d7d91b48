package gutenberg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors shared across components.
var (
	// ErrNoBookID marks an RDF document with no extractable numeric id.
	ErrNoBookID = errors.New("no book id in document")

	// ErrNoText marks a catalog entry with no hosted plain-text file.
	// Books hitting this are persisted without content.
	ErrNoText = errors.New("no text available")
)

// CatalogSource obtains the catalog archive and turns it into per-book
// RDF documents on local disk.
type CatalogSource interface {
	// EnsureArchive downloads the catalog archive unless a complete local
	// copy already exists. Returns the local archive path.
	EnsureArchive(ctx context.Context) (string, error)

	// ExtractArchive unpacks the archive and returns the directory holding
	// the per-book RDF files. Extraction is all-or-nothing.
	ExtractArchive(ctx context.Context, archivePath string) (string, error)

	// ListDocuments walks the extracted directory and returns RDF file
	// paths in ascending book-id order, honoring the configured limit.
	ListDocuments(root string) ([]string, error)
}

// Parser turns one RDF document into a BookRecord.
type Parser interface {
	ParseFile(path string) (BookRecord, error)
}

// TextSource fetches a book's plain text, cache-first. A missing remote
// file surfaces as ErrNoText.
type TextSource interface {
	FetchText(ctx context.Context, record BookRecord) (string, error)
}

// Cleaner strips Gutenberg boilerplate and normalizes whitespace.
type Cleaner interface {
	Clean(raw string) string
}

// BookStore upserts book rows keyed by Gutenberg id.
type BookStore interface {
	UpsertBook(ctx context.Context, record BookRecord, text *string) error
	Close()
}

// RunStore records pipeline run bookkeeping rows.
type RunStore interface {
	StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status RunStatus, summary RunSummary) error
}

// RetryPolicy decides whether and when a failed fetch is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}
