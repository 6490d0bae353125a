// Package memory provides an in-memory article store for local development
// and tests. It honors the same uniqueness semantics as the Postgres store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pressfeed/ingestor/internal/store"
)

// Store is a mutex-guarded in-memory store.Store implementation.
type Store struct {
	mu    sync.Mutex
	byID  map[string]*store.Article
	byURL map[string]string // url -> article_id
	now   func() time.Time
}

// New constructs an empty store.
func New() *Store {
	return &Store{
		byID:  make(map[string]*store.Article),
		byURL: make(map[string]string),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Get returns a copy of the record by article_id.
func (s *Store) Get(_ context.Context, articleID string) (*store.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[articleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// FindByURLHash scans for a record with the given fingerprint.
func (s *Store) FindByURLHash(_ context.Context, urlHash string) (*store.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.URLHash == urlHash {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// Insert stores a new record, rejecting duplicates on article_id or url.
func (s *Store) Insert(_ context.Context, a *store.Article) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ArticleID]; ok {
		return store.ErrDuplicate
	}
	if _, ok := s.byURL[a.URL]; ok {
		return store.ErrDuplicate
	}
	now := s.now()
	a.CreatedAt = now
	a.UpdatedAt = now
	cp := *a
	s.byID[a.ArticleID] = &cp
	s.byURL[a.URL] = a.ArticleID
	return nil
}

// Update rewrites the scrape outcome fields of an existing record.
func (s *Store) Update(_ context.Context, a *store.Article) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[a.ArticleID]
	if !ok {
		return false, nil
	}
	existing.Status = a.Status
	existing.Title = a.Title
	existing.Content = a.Content
	existing.ScrapeStatus = a.ScrapeStatus
	existing.ScrapeError = a.ScrapeError
	existing.ScrapedAt = a.ScrapedAt
	existing.UpdatedAt = s.now()
	a.UpdatedAt = existing.UpdatedAt
	return true, nil
}

// UpdateStatus advances just the status field.
func (s *Store) UpdateStatus(_ context.Context, articleID string, status store.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[articleID]
	if !ok {
		return false, nil
	}
	existing.Status = status
	existing.UpdatedAt = s.now()
	return true, nil
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
