// Package postgres provides the Postgres-backed article store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pressfeed/ingestor/internal/store"
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements store.Store on top of a pgx connection pool.
type Store struct {
	pool db
	now  func() time.Time
}

// New connects to Postgres, verifies the connection and bootstraps the
// articles schema. It fails fast so a broken DSN surfaces at startup.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{pool: pool, now: func() time.Time { return time.Now().UTC() }}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool db) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// ensureSchema creates the articles table and its indexes. The two unique
// indexes are load-bearing: they are what turns a racing double-insert into
// an ErrDuplicate instead of a second record.
func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS articles (
	article_id    TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	url_original  TEXT NOT NULL DEFAULT '',
	url_hash      TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL,
	category      TEXT NOT NULL,
	priority      TEXT NOT NULL,
	status        TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	scrape_status TEXT NOT NULL DEFAULT '',
	scrape_error  TEXT NOT NULL DEFAULT '',
	scraped_at    TIMESTAMPTZ,
	domain        TEXT NOT NULL DEFAULT '',
	published_at  TEXT NOT NULL DEFAULT '',
	enriched      BOOLEAN NOT NULL DEFAULT FALSE,
	user_id       TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_articles_url ON articles (url);
CREATE INDEX IF NOT EXISTS idx_articles_url_hash ON articles (url_hash);
CREATE INDEX IF NOT EXISTS idx_articles_user_status ON articles (user_id, status);
CREATE INDEX IF NOT EXISTS idx_articles_status ON articles (status);
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure articles schema: %w", err)
	}
	return nil
}

const articleColumns = `article_id, url, url_original, url_hash, source, category, priority,
	status, title, content, scrape_status, scrape_error, scraped_at,
	domain, published_at, enriched, user_id, created_at, updated_at`

// Get returns the record by article_id, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, articleID string) (*store.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE article_id = $1`, articleColumns)
	return s.scanOne(s.pool.QueryRow(ctx, query, articleID))
}

// FindByURLHash returns the record matching the URL fingerprint.
func (s *Store) FindByURLHash(ctx context.Context, urlHash string) (*store.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE url_hash = $1 LIMIT 1`, articleColumns)
	return s.scanOne(s.pool.QueryRow(ctx, query, urlHash))
}

func (s *Store) scanOne(row pgx.Row) (*store.Article, error) {
	var a store.Article
	err := row.Scan(
		&a.ArticleID, &a.URL, &a.URLOriginal, &a.URLHash, &a.Source, &a.Category, &a.Priority,
		&a.Status, &a.Title, &a.Content, &a.ScrapeStatus, &a.ScrapeError, &a.ScrapedAt,
		&a.Domain, &a.PublishedAt, &a.Enriched, &a.UserID, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan article: %w", err)
	}
	return &a, nil
}

// Insert creates a new record. A unique violation on article_id or url is
// reported as store.ErrDuplicate; the existing record is left untouched.
func (s *Store) Insert(ctx context.Context, a *store.Article) error {
	if err := a.Validate(); err != nil {
		return err
	}
	now := s.now()
	a.CreatedAt = now
	a.UpdatedAt = now

	const query = `
INSERT INTO articles (
	article_id, url, url_original, url_hash, source, category, priority,
	status, title, content, scrape_status, scrape_error, scraped_at,
	domain, published_at, enriched, user_id, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
)`
	_, err := s.pool.Exec(ctx, query,
		a.ArticleID, a.URL, a.URLOriginal, a.URLHash, a.Source, a.Category, a.Priority,
		a.Status, a.Title, a.Content, a.ScrapeStatus, a.ScrapeError, a.ScrapedAt,
		a.Domain, a.PublishedAt, a.Enriched, a.UserID, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert article %s: %w", a.ArticleID, err)
	}
	return nil
}

// Update rewrites the scrape outcome fields by article_id and refreshes
// updated_at. Returns false when no record matched.
func (s *Store) Update(ctx context.Context, a *store.Article) (bool, error) {
	a.UpdatedAt = s.now()

	const query = `
UPDATE articles SET
	status = $2, title = $3, content = $4,
	scrape_status = $5, scrape_error = $6, scraped_at = $7,
	updated_at = $8
WHERE article_id = $1`
	tag, err := s.pool.Exec(ctx, query,
		a.ArticleID, a.Status, a.Title, a.Content,
		a.ScrapeStatus, a.ScrapeError, a.ScrapedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update article %s: %w", a.ArticleID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateStatus advances just the status field.
func (s *Store) UpdateStatus(ctx context.Context, articleID string, status store.Status) (bool, error) {
	const query = `UPDATE articles SET status = $2, updated_at = $3 WHERE article_id = $1`
	tag, err := s.pool.Exec(ctx, query, articleID, status, s.now())
	if err != nil {
		return false, fmt.Errorf("update article status %s: %w", articleID, err)
	}
	return tag.RowsAffected() > 0, nil
}
