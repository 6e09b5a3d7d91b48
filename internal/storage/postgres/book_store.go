package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gutenlab/gutenberg-pipeline/internal/gutenberg"
)

// BookStore implements gutenberg.BookStore over Postgres. All writes for
// one book happen in one transaction keyed by the Gutenberg id, so
// re-running the pipeline updates rows instead of duplicating them.
type BookStore struct {
	pool   Pool
	logger *zap.Logger
}

// NewBookStoreWithPool constructs a BookStore from an existing pool
// (pgxmock in tests, pgxpool in production).
func NewBookStoreWithPool(pool Pool, logger *zap.Logger) (*BookStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &BookStore{pool: pool, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *BookStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const upsertBookSQL = `
INSERT INTO books (id, title, language, release_date, summary, text_url, content, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (id) DO UPDATE SET
	title        = EXCLUDED.title,
	language     = EXCLUDED.language,
	release_date = EXCLUDED.release_date,
	summary      = EXCLUDED.summary,
	text_url     = EXCLUDED.text_url,
	content      = EXCLUDED.content,
	updated_at   = NOW()`

const upsertAuthorSQL = `
INSERT INTO authors (id, name, birth_year, death_year)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
	name       = EXCLUDED.name,
	birth_year = EXCLUDED.birth_year,
	death_year = EXCLUDED.death_year`

const upsertCategorySQL = `
INSERT INTO categories (name)
VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`

// UpsertBook writes the record and its author/category links. A nil text
// stores NULL content, distinguishing "no hosted text" from empty text.
func (s *BookStore) UpsertBook(ctx context.Context, record gutenberg.BookRecord, text *string) error {
	if record.ID <= 0 {
		return fmt.Errorf("book id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(ctx); rerr != nil && rerr != pgx.ErrTxClosed {
			s.logger.Warn("Rollback failed",
				zap.Int64("book_id", record.ID),
				zap.Error(rerr))
		}
	}()

	var textURL *string
	if record.TextURL != "" {
		textURL = &record.TextURL
	}
	if _, err := tx.Exec(ctx, upsertBookSQL,
		record.ID,
		record.Title,
		record.Language,
		record.Issued,
		record.Summary,
		textURL,
		text,
	); err != nil {
		return fmt.Errorf("upsert book %d: %w", record.ID, err)
	}

	if err := s.linkAuthors(ctx, tx, record); err != nil {
		return err
	}
	if err := s.linkCategories(ctx, tx, record); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit book %d: %w", record.ID, err)
	}
	return nil
}

// linkAuthors refreshes the book's author rows and join rows. Stale links
// from a previous catalog revision are removed inside the same tx.
func (s *BookStore) linkAuthors(ctx context.Context, tx pgx.Tx, record gutenberg.BookRecord) error {
	if _, err := tx.Exec(ctx, `DELETE FROM book_authors WHERE book_id = $1`, record.ID); err != nil {
		return fmt.Errorf("clear book authors %d: %w", record.ID, err)
	}
	for _, author := range record.Authors {
		if _, err := tx.Exec(ctx, upsertAuthorSQL,
			author.ID, author.Name, author.BirthYear, author.DeathYear); err != nil {
			return fmt.Errorf("upsert author %d: %w", author.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO book_authors (book_id, author_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			record.ID, author.ID); err != nil {
			return fmt.Errorf("link author %d to book %d: %w", author.ID, record.ID, err)
		}
	}
	return nil
}

func (s *BookStore) linkCategories(ctx context.Context, tx pgx.Tx, record gutenberg.BookRecord) error {
	if _, err := tx.Exec(ctx, `DELETE FROM book_categories WHERE book_id = $1`, record.ID); err != nil {
		return fmt.Errorf("clear book categories %d: %w", record.ID, err)
	}
	for _, name := range record.Categories {
		var categoryID int64
		if err := tx.QueryRow(ctx, upsertCategorySQL, name).Scan(&categoryID); err != nil {
			return fmt.Errorf("upsert category %q: %w", name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO book_categories (book_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			record.ID, categoryID); err != nil {
			return fmt.Errorf("link category %q to book %d: %w", name, record.ID, err)
		}
	}
	return nil
}
