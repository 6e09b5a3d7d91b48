// Package gutenberg defines core types shared across the ingestion pipeline.
package gutenberg

import (
	"time"
)

// Author is one creator referenced by a catalog entry. Birth and death years
// are optional in the catalog and stay nil when absent.
type Author struct {
	ID        int64
	Name      string
	BirthYear *int
	DeathYear *int
}

// BookRecord is the normalized metadata extracted from one RDF document.
// Optional fields are pointers so that "absent" never collides with a real
// empty value downstream.
type BookRecord struct {
	ID         int64
	Title      *string
	Language   *string
	Issued     *time.Time
	Summary    *string
	Authors    []Author
	Categories []string

	// TextURL is the plain-text file advertised by the catalog entry.
	// Empty when the entry has no text/plain format.
	TextURL string
}

// BookText is the cleaned full text of a book, immutable once cleaned.
type BookText struct {
	BookID int64
	Body   string
}

// OutcomeKind classifies the result of processing one book.
type OutcomeKind string

// Per-book outcome values aggregated into the run summary.
const (
	OutcomeStored  OutcomeKind = "stored"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeFailed  OutcomeKind = "failed"
)

// Outcome is the per-book result: stored, skipped with a reason, or failed
// with an error. Exactly one of Reason/Err is meaningful for non-stored kinds.
type Outcome struct {
	BookID int64
	Kind   OutcomeKind
	Reason string
	Err    error
}

// Stored builds a success outcome.
func Stored(id int64) Outcome {
	return Outcome{BookID: id, Kind: OutcomeStored}
}

// Skipped builds a skip outcome with a human-readable reason.
func Skipped(id int64, reason string) Outcome {
	return Outcome{BookID: id, Kind: OutcomeSkipped, Reason: reason}
}

// Failed builds a failure outcome wrapping the per-book error.
func Failed(id int64, err error) Outcome {
	return Outcome{BookID: id, Kind: OutcomeFailed, Err: err}
}

// RunSummary counts per-book outcomes for the whole run.
type RunSummary struct {
	Processed int
	Skipped   int
	Failed    int
}

// Add folds one outcome into the summary.
func (s *RunSummary) Add(o Outcome) {
	switch o.Kind {
	case OutcomeStored:
		s.Processed++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}

// Total returns the number of catalog entries visited.
func (s RunSummary) Total() int {
	return s.Processed + s.Skipped + s.Failed
}

// RunStatus is the lifecycle state persisted for a pipeline run.
type RunStatus string

// Run status values stored in pipeline_runs.
const (
	RunRunning  RunStatus = "running"
	RunDone     RunStatus = "done"
	RunAborted  RunStatus = "aborted"
	RunCanceled RunStatus = "canceled"
)
