package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gutenlab/gutenberg-pipeline/internal/gutenberg"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func sampleRecord() gutenberg.BookRecord {
	issued := time.Date(2004, 5, 1, 0, 0, 0, 0, time.UTC)
	return gutenberg.BookRecord{
		ID:       12345,
		Title:    strPtr("Example Book"),
		Language: strPtr("en"),
		Issued:   &issued,
		Summary:  strPtr("A sample summary."),
		Authors: []gutenberg.Author{
			{ID: 65, Name: "Author Name", BirthYear: intPtr(1850), DeathYear: intPtr(1920)},
		},
		Categories: []string{"Science Fiction"},
		TextURL:    "https://www.gutenberg.org/ebooks/12345.txt.utf-8",
	}
}

func TestUpsertBookCommitsAllRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewBookStoreWithPool(mock, zap.NewNop())
	require.NoError(t, err)

	record := sampleRecord()
	text := strPtr("It was the best of times.\n")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO books").
		WithArgs(
			record.ID,
			record.Title,
			record.Language,
			record.Issued,
			record.Summary,
			&record.TextURL,
			text,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM book_authors").
		WithArgs(record.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO authors").
		WithArgs(int64(65), "Author Name", intPtr(1850), intPtr(1920)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO book_authors").
		WithArgs(record.ID, int64(65)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM book_categories").
		WithArgs(record.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("INSERT INTO categories").
		WithArgs("Science Fiction").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO book_categories").
		WithArgs(record.ID, int64(7)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, store.UpsertBook(context.Background(), record, text))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBookNilTextStoresNull(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewBookStoreWithPool(mock, zap.NewNop())
	require.NoError(t, err)

	record := gutenberg.BookRecord{ID: 99999, Title: strPtr("No Text Book")}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO books").
		WithArgs(
			record.ID,
			record.Title,
			(*string)(nil),
			(*time.Time)(nil),
			(*string)(nil),
			(*string)(nil),
			(*string)(nil),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM book_authors").
		WithArgs(record.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM book_categories").
		WithArgs(record.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, store.UpsertBook(context.Background(), record, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBookRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewBookStoreWithPool(mock, zap.NewNop())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO books").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.UpsertBook(context.Background(), sampleRecord(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBookRejectsMissingID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewBookStoreWithPool(mock, zap.NewNop())
	require.NoError(t, err)

	err = store.UpsertBook(context.Background(), gutenberg.BookRecord{}, nil)
	require.Error(t, err)
}

func TestNewBookStoreRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewBookStoreWithPool(nil, zap.NewNop())
	require.Error(t, err)
}
