package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressfeed/ingestor/internal/store"
	"github.com/pressfeed/ingestor/internal/task"
)

func newTestStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewWithPool(mock)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return s, mock
}

// anyInsertArgs matches the 19 insert parameters without inspecting them;
// pgxmock/v3 requires WithArgs even when the values are irrelevant.
func anyInsertArgs() []interface{} {
	args := make([]interface{}, 19)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func sampleArticle() *store.Article {
	return &store.Article{
		ArticleID: "art-1",
		URL:       "https://example.com/story",
		URLHash:   "hash-1",
		Source:    "example",
		Category:  "tech",
		Priority:  task.PriorityHigh,
		Status:    store.StatusCompleted,
		Title:     "Story",
		Content:   "Body",
		UserID:    "user-1",
	}
}

func TestInsertStampsTimestamps(t *testing.T) {
	t.Parallel()

	s, mock := newTestStore(t)
	a := sampleArticle()
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("INSERT INTO articles").
		WithArgs(
			a.ArticleID, a.URL, a.URLOriginal, a.URLHash, a.Source, a.Category, a.Priority,
			a.Status, a.Title, a.Content, a.ScrapeStatus, a.ScrapeError, a.ScrapedAt,
			a.Domain, a.PublishedAt, a.Enriched, a.UserID, now, now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Insert(context.Background(), a))
	assert.Equal(t, now, a.CreatedAt)
	assert.Equal(t, now, a.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMapsUniqueViolationToErrDuplicate(t *testing.T) {
	t.Parallel()

	s, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO articles").
		WithArgs(anyInsertArgs()...).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "idx_articles_url"})

	err := s.Insert(context.Background(), sampleArticle())
	assert.ErrorIs(t, err, store.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRejectsMissingRequiredFields(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	a := sampleArticle()
	a.Source = ""
	assert.Error(t, s.Insert(context.Background(), a))
}

func TestUpdateReportsModified(t *testing.T) {
	t.Parallel()

	s, mock := newTestStore(t)
	a := sampleArticle()

	mock.ExpectExec("UPDATE articles SET").
		WithArgs(
			a.ArticleID, a.Status, a.Title, a.Content,
			a.ScrapeStatus, a.ScrapeError, a.ScrapedAt,
			time.Unix(1700000000, 0).UTC(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	modified, err := s.Update(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, modified)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusOnMissingRecord(t *testing.T) {
	t.Parallel()

	s, mock := newTestStore(t)

	mock.ExpectExec("UPDATE articles SET status").
		WithArgs("ghost", store.StatusCompleted, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	modified, err := s.UpdateStatus(context.Background(), "ghost", store.StatusCompleted)
	require.NoError(t, err)
	assert.False(t, modified)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newTestStore(t)

	mock.ExpectQuery("SELECT (.+) FROM articles WHERE article_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByURLHashScansRecord(t *testing.T) {
	t.Parallel()

	s, mock := newTestStore(t)
	now := time.Unix(1700000000, 0).UTC()

	rows := pgxmock.NewRows([]string{
		"article_id", "url", "url_original", "url_hash", "source", "category", "priority",
		"status", "title", "content", "scrape_status", "scrape_error", "scraped_at",
		"domain", "published_at", "enriched", "user_id", "created_at", "updated_at",
	}).AddRow(
		"art-1", "https://example.com/story", "", "hash-1", "example", "tech", task.PriorityHigh,
		store.StatusCompleted, "Story", "Body", "success", "", (*time.Time)(nil),
		"example.com", "", true, "user-1", now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM articles WHERE url_hash").
		WithArgs("hash-1").
		WillReturnRows(rows)

	got, err := s.FindByURLHash(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "art-1", got.ArticleID)
	assert.Equal(t, store.StatusCompleted, got.Status)
	assert.True(t, got.Enriched)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWrapsOtherErrors(t *testing.T) {
	t.Parallel()

	s, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO articles").
		WithArgs(anyInsertArgs()...).
		WillReturnError(errors.New("connection reset"))

	err := s.Insert(context.Background(), sampleArticle())
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrDuplicate)
}
