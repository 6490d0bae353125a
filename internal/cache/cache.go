// Package cache implements the cache-aside layer that decides whether a URL
// needs fetching. It consults a fast volatile Redis cache first, then the
// durable store, backfilling the volatile cache on a durable hit.
//
// The cache is an optimization, never a dependency: every cache failure is
// swallowed and logged, and two workers racing past a cache miss onto the
// same URL is tolerated. Correctness is restored at persistence time by the
// store's uniqueness constraints, not by the cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pressfeed/ingestor/internal/store"
	"github.com/pressfeed/ingestor/internal/urlnorm"
)

// Source identifies where a cache decision was resolved.
type Source string

// Decision sources.
const (
	SourceNone     Source = "none"
	SourceVolatile Source = "redis"
	SourceDurable  Source = "store"
)

// Entry is the volatile-cache projection of an article record. Body content
// is deliberately excluded to bound cache memory.
type Entry struct {
	ArticleID    string `json:"article_id"`
	URL          string `json:"url"`
	URLHash      string `json:"url_hash"`
	Title        string `json:"title"`
	Source       string `json:"source"`
	Category     string `json:"category"`
	Status       string `json:"status"`
	ScrapeStatus string `json:"scrape_status"`
	CachedAt     string `json:"cached_at"`
}

// Decision is the outcome of a scrape-or-skip check.
type Decision struct {
	ShouldFetch bool
	Source      Source
	Entry       *Entry
}

// commands is the slice of the Redis client the cache uses. The concrete
// *redis.Client satisfies it; tests substitute a fake.
type commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// ArticleCache is the cache-aside layer. Safe for concurrent use.
type ArticleCache struct {
	rdb     commands
	store   store.Store
	ttl     time.Duration
	prefix  string
	enabled bool
	logger  *zap.Logger
	now     func() time.Time
}

// Config controls cache behavior.
type Config struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// New builds the cache-aside layer over a Redis client and the durable store.
func New(rdb commands, st store.Store, cfg Config, logger *zap.Logger) *ArticleCache {
	return &ArticleCache{
		rdb:     rdb,
		store:   st,
		ttl:     cfg.TTL,
		prefix:  cfg.Prefix,
		enabled: cfg.Enabled,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Key derives the volatile cache key for a URL.
func (c *ArticleCache) Key(url string) string {
	return c.prefix + urlnorm.HashKey(url)
}

// Decide determines whether the URL must be fetched. Force always fetches.
// Volatile hits and durable hits short-circuit; a durable hit additionally
// backfills the volatile cache for future lookups.
func (c *ArticleCache) Decide(ctx context.Context, url, fingerprint string, force bool) Decision {
	if force || !c.enabled {
		return Decision{ShouldFetch: true, Source: SourceNone}
	}

	if entry := c.checkVolatile(ctx, url); entry != nil {
		c.logger.Debug("cache hit (redis)", zap.String("url", url))
		return Decision{ShouldFetch: false, Source: SourceVolatile, Entry: entry}
	}

	article, err := c.store.FindByURLHash(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("durable cache check failed", zap.String("url", url), zap.Error(err))
		}
		return Decision{ShouldFetch: true, Source: SourceNone}
	}

	c.logger.Debug("cache hit (store)", zap.String("url", url))
	c.Put(ctx, url, article)
	return Decision{ShouldFetch: false, Source: SourceDurable, Entry: c.project(article)}
}

// Put stores the trimmed projection of an article under the hashed key with
// the configured TTL. Failures are logged and swallowed.
func (c *ArticleCache) Put(ctx context.Context, url string, a *store.Article) {
	if !c.enabled {
		return
	}
	data, err := json.Marshal(c.project(a))
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("url", url), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, c.Key(url), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("url", url), zap.Error(err))
	}
}

// CheckVolatile exposes the raw volatile lookup. The consumer uses it on a
// cached-skip to recover the title when inserting a record from cache data.
func (c *ArticleCache) CheckVolatile(ctx context.Context, url string) *Entry {
	if !c.enabled {
		return nil
	}
	return c.checkVolatile(ctx, url)
}

func (c *ArticleCache) checkVolatile(ctx context.Context, url string) *Entry {
	data, err := c.rdb.Get(ctx, c.Key(url)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", zap.String("url", url), zap.Error(err))
		}
		return nil
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("cache decode failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	return &entry
}

func (c *ArticleCache) project(a *store.Article) *Entry {
	return &Entry{
		ArticleID:    a.ArticleID,
		URL:          a.URL,
		URLHash:      a.URLHash,
		Title:        a.Title,
		Source:       a.Source,
		Category:     a.Category,
		Status:       string(a.Status),
		ScrapeStatus: a.ScrapeStatus,
		CachedAt:     c.now().Format(time.RFC3339),
	}
}
