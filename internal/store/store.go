// Package store defines the durable article record and the persistence
// contract consumed by the pipeline. The store's uniqueness constraints on
// article_id and url are the sole mechanism preventing two racing workers
// from producing two records for the same logical article.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pressfeed/ingestor/internal/task"
)

// Status is the article record lifecycle state.
type Status string

// Article lifecycle states. A record that reached a terminal state is never
// re-scraped unless explicitly forced.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Sentinel errors returned by Store implementations.
var (
	// ErrDuplicate signals a uniqueness violation on article_id or url.
	ErrDuplicate = errors.New("store: duplicate article")
	// ErrNotFound signals a missing record on point lookups.
	ErrNotFound = errors.New("store: article not found")
)

// Article is the durable record for one logical article. ArticleID and URL
// are each globally unique; every record belongs to exactly one UserID.
type Article struct {
	ArticleID   string
	URL         string
	URLOriginal string
	URLHash     string
	Source      string
	Category    string
	Priority    task.Priority
	Status      Status
	Title       string
	Content     string

	ScrapeStatus string
	ScrapeError  string
	ScrapedAt    *time.Time

	Domain      string
	PublishedAt string
	Enriched    bool
	UserID      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the mandatory fields required on insert.
func (a *Article) Validate() error {
	switch {
	case a.ArticleID == "":
		return fmt.Errorf("article missing article_id")
	case a.URL == "":
		return fmt.Errorf("article %s: missing url", a.ArticleID)
	case a.Source == "":
		return fmt.Errorf("article %s: missing source", a.ArticleID)
	case a.Category == "":
		return fmt.Errorf("article %s: missing category", a.ArticleID)
	case a.Priority == "":
		return fmt.Errorf("article %s: missing priority", a.ArticleID)
	}
	return nil
}

// Store is the persistence contract for article records.
type Store interface {
	// Get returns the record by article_id, or ErrNotFound.
	Get(ctx context.Context, articleID string) (*Article, error)

	// FindByURLHash returns the record matching the URL fingerprint, or
	// ErrNotFound. Used by the cache-aside layer's durable lookup.
	FindByURLHash(ctx context.Context, urlHash string) (*Article, error)

	// Insert creates a new record, stamping created_at and updated_at.
	// Returns ErrDuplicate when article_id or url already exists; the
	// existing record is never overwritten.
	Insert(ctx context.Context, a *Article) error

	// Update rewrites the scrape outcome fields of an existing record by
	// article_id, always refreshing updated_at. Reports whether a record
	// was actually modified.
	Update(ctx context.Context, a *Article) (bool, error)

	// UpdateStatus advances just the status field, refreshing updated_at.
	UpdateStatus(ctx context.Context, articleID string, status Status) (bool, error)
}
