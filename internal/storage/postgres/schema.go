package postgres

import (
	"context"
	"fmt"
)

// schemaSQL creates the normalized book tables. Idempotent; real schema
// migrations are out of scope and handled externally when needed.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS books (
	id           BIGINT PRIMARY KEY,
	title        TEXT,
	language     VARCHAR(10),
	release_date DATE,
	summary      TEXT,
	text_url     TEXT,
	content      TEXT,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS authors (
	id         BIGINT PRIMARY KEY,
	name       TEXT NOT NULL,
	birth_year INT,
	death_year INT
);

CREATE TABLE IF NOT EXISTS categories (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS book_authors (
	book_id   BIGINT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	author_id BIGINT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
	PRIMARY KEY (book_id, author_id)
);

CREATE TABLE IF NOT EXISTS book_categories (
	book_id     BIGINT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	category_id BIGINT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	PRIMARY KEY (book_id, category_id)
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id          UUID PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status      TEXT NOT NULL,
	processed   INT NOT NULL DEFAULT 0,
	skipped     INT NOT NULL DEFAULT 0,
	failed      INT NOT NULL DEFAULT 0
);
`

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
