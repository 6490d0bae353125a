// Package consumer drives the ingestion run loop: it drains the priority
// queues, fans tasks out over a bounded worker pool and aggregates run
// statistics under a single lock.
package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pressfeed/ingestor/internal/cache"
	"github.com/pressfeed/ingestor/internal/metrics"
	"github.com/pressfeed/ingestor/internal/queue"
	"github.com/pressfeed/ingestor/internal/scraper"
	"github.com/pressfeed/ingestor/internal/store"
	"github.com/pressfeed/ingestor/internal/task"
)

// Fetcher is the slice of the scraper the consumer needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) scraper.Result
}

// Cache is the slice of the cache-aside layer the consumer needs.
type Cache interface {
	Decide(ctx context.Context, url, fingerprint string, force bool) cache.Decision
	Put(ctx context.Context, url string, a *store.Article)
	CheckVolatile(ctx context.Context, url string) *cache.Entry
}

// Outcome classifies how one task was resolved. The outcomes are mutually
// exclusive; every task maps to exactly one.
type Outcome string

// Per-task outcomes.
const (
	// OutcomeSuccess: scraped, stored and cached.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailed: fetch or persistence error.
	OutcomeFailed Outcome = "failed"
	// OutcomeDuplicate: the record already reached a terminal state.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeCached: served from cache, store finalized without a fetch.
	OutcomeCached Outcome = "cached"
)

// Stats are the run counters. Cached skips also count as successful, so
// Processed == Successful + Failed + Duplicates holds for every run.
type Stats struct {
	Processed      int `json:"processed"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
	Duplicates     int `json:"duplicates"`
	Cached         int `json:"cached"`
	ConcurrentPeak int `json:"concurrent_peak"`
}

// Config controls the consumer.
type Config struct {
	// Queues in strict priority order, highest first.
	Queues []string
	// Workers bounds the pool size (default 10).
	Workers int
	// PopTimeout bounds each blocking pop (default 1s).
	PopTimeout time.Duration
	// IdleSleep is the pause after an empty drain in continuous mode.
	IdleSleep time.Duration
	// Force re-scrapes even on cache hits.
	Force bool
}

// RunOptions select the scheduling mode for one run.
type RunOptions struct {
	// Continuous loops forever instead of stopping on queue exhaustion.
	Continuous bool
	// MaxItems bounds the number of tasks drawn (0 = unlimited).
	MaxItems int
}

// Consumer is the queue consumer. Construct with New, then call Run.
type Consumer struct {
	broker  queue.Broker
	store   store.Store
	cache   Cache
	fetcher Fetcher
	cfg     Config
	logger  *zap.Logger

	mu    sync.Mutex
	stats Stats

	now   func() time.Time
	sleep func(time.Duration)
}

// New wires a Consumer. Workers defaults to 10, PopTimeout and IdleSleep
// to one second.
func New(broker queue.Broker, st store.Store, c Cache, f Fetcher, cfg Config, logger *zap.Logger) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = time.Second
	}
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = time.Second
	}
	return &Consumer{
		broker:  broker,
		store:   st,
		cache:   c,
		fetcher: f,
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		sleep:   time.Sleep,
	}
}

// Run executes the consume loop until the context is canceled, the queues
// are exhausted (bounded mode) or MaxItems is reached. Cancellation stops
// the drain loop but lets the in-flight batch finish; final statistics are
// always flushed to the log before returning.
func (c *Consumer) Run(ctx context.Context, opts RunOptions) Stats {
	runID := uuid.NewString()
	batchSize := 2 * c.cfg.Workers
	c.logger.Info("consumer started",
		zap.String("run_id", runID),
		zap.Int("workers", c.cfg.Workers),
		zap.Int("batch_size", batchSize),
		zap.Strings("queues", c.cfg.Queues),
		zap.Bool("continuous", opts.Continuous))

	drawn := 0
	for ctx.Err() == nil {
		if opts.MaxItems > 0 && drawn >= opts.MaxItems {
			c.logger.Info("reached max items", zap.Int("max_items", opts.MaxItems))
			break
		}

		batch := c.drainBatch(ctx, batchSize, opts.MaxItems, &drawn)
		if len(batch) == 0 {
			if ctx.Err() != nil {
				break
			}
			if !opts.Continuous {
				c.logger.Info("queues exhausted, stopping")
				break
			}
			c.sleep(c.cfg.IdleSleep)
			continue
		}

		c.notePeak(min(len(batch), c.cfg.Workers))
		c.dispatch(batch)

		snap := c.Snapshot()
		c.logger.Info("batch complete",
			zap.Int("batch", len(batch)),
			zap.Int("processed", snap.Processed),
			zap.Int("successful", snap.Successful),
			zap.Int("failed", snap.Failed))
	}

	final := c.Snapshot()
	c.logStats(runID, final)
	return final
}

// drainBatch pops up to batchSize tasks, stopping early on an empty pop so a
// partially filled batch still dispatches promptly.
func (c *Consumer) drainBatch(ctx context.Context, batchSize, maxItems int, drawn *int) []*task.Task {
	var batch []*task.Task
	for len(batch) < batchSize {
		if maxItems > 0 && *drawn >= maxItems {
			break
		}
		t, err := c.broker.PopPriority(ctx, c.cfg.Queues, c.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			// A malformed payload or broker hiccup must not kill the run.
			c.logger.Error("pop failed", zap.Error(err))
			break
		}
		if t == nil {
			break
		}
		batch = append(batch, t)
		*drawn++
	}
	return batch
}

// dispatch fans the batch out over the worker pool and waits for completion.
// Workers run on a background context so an interrupt never aborts a fetch
// mid-flight; the signal only stops the drain loop from drawing more work.
func (c *Consumer) dispatch(batch []*task.Task) {
	sem := make(chan struct{}, c.cfg.Workers)
	var wg sync.WaitGroup
	for _, t := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(t *task.Task) {
			defer wg.Done()
			defer func() { <-sem }()
			metrics.WorkerStarted()
			defer metrics.WorkerFinished()
			outcome := c.processTask(context.Background(), t)
			c.record(outcome)
			c.logger.Debug("task finished",
				zap.String("article_id", t.ArticleID),
				zap.String("outcome", string(outcome)))
		}(t)
	}
	wg.Wait()
}

// processTask resolves one task to exactly one outcome. Any panic or error
// inside it is contained here; sibling tasks and the run loop are never
// affected.
func (c *Consumer) processTask(ctx context.Context, t *task.Task) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("task panicked",
				zap.String("article_id", t.ArticleID), zap.Any("panic", r))
			outcome = OutcomeFailed
		}
	}()

	decision := c.cache.Decide(ctx, t.URL, t.URLHash, c.cfg.Force)
	metrics.CacheDecision(string(decision.Source))
	if !decision.ShouldFetch {
		return c.finalizeFromCache(ctx, t, decision)
	}

	existing, err := c.store.Get(ctx, t.ArticleID)
	switch {
	case err == nil:
		if existing.Status.Terminal() {
			c.logger.Info("article already processed",
				zap.String("article_id", t.ArticleID), zap.String("status", string(existing.Status)))
			return OutcomeDuplicate
		}
		// Pending or processing: re-fetch and update in place.
	case errors.Is(err, store.ErrNotFound):
		existing = nil
	default:
		c.logger.Warn("store lookup failed, treating as new",
			zap.String("article_id", t.ArticleID), zap.Error(err))
		existing = nil
	}

	start := c.now()
	res := c.fetcher.Fetch(ctx, t.URL)
	metrics.ScrapeObserved(string(res.Status), c.now().Sub(start))

	article := c.articleFromTask(t)
	article.Title = res.Title
	article.Content = res.Content
	article.ScrapeStatus = string(res.Status)
	article.ScrapeError = res.Error
	scrapedAt := c.now()
	article.ScrapedAt = &scrapedAt
	if res.Status == scraper.StatusSuccess {
		article.Status = store.StatusCompleted
	} else {
		// A partial scrape (no title) is recorded as failed: a usable
		// article requires a title.
		article.Status = store.StatusFailed
	}

	if existing != nil {
		modified, err := c.store.Update(ctx, article)
		if err != nil {
			c.logger.Error("update failed", zap.String("article_id", t.ArticleID), zap.Error(err))
			return OutcomeFailed
		}
		if !modified {
			c.logger.Warn("no article to update", zap.String("article_id", t.ArticleID))
			return OutcomeFailed
		}
	} else {
		if err := c.store.Insert(ctx, article); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				// A racing worker persisted this article first.
				c.logger.Info("duplicate insert", zap.String("article_id", t.ArticleID))
				return OutcomeDuplicate
			}
			c.logger.Error("insert failed", zap.String("article_id", t.ArticleID), zap.Error(err))
			return OutcomeFailed
		}
	}

	c.cache.Put(ctx, t.URL, article)

	if res.Status == scraper.StatusSuccess {
		return OutcomeSuccess
	}
	c.logger.Warn("article stored with scrape errors",
		zap.String("article_id", t.ArticleID), zap.String("error", res.Error))
	return OutcomeFailed
}

// finalizeFromCache completes a task without fetching: an existing record is
// marked completed, a missing one is inserted from the cached projection.
func (c *Consumer) finalizeFromCache(ctx context.Context, t *task.Task, decision cache.Decision) Outcome {
	c.logger.Info("cache hit, skipping scrape",
		zap.String("article_id", t.ArticleID), zap.String("source", string(decision.Source)))

	if _, err := c.store.Get(ctx, t.ArticleID); err == nil {
		if _, err := c.store.UpdateStatus(ctx, t.ArticleID, store.StatusCompleted); err != nil {
			c.logger.Warn("cached status update failed",
				zap.String("article_id", t.ArticleID), zap.Error(err))
		}
		return OutcomeCached
	}

	article := c.articleFromTask(t)
	article.Status = store.StatusCompleted
	entry := decision.Entry
	if entry == nil {
		entry = c.cache.CheckVolatile(ctx, t.URL)
	}
	if entry != nil {
		article.Title = entry.Title
		article.ScrapeStatus = entry.ScrapeStatus
	}
	if err := c.store.Insert(ctx, article); err != nil && !errors.Is(err, store.ErrDuplicate) {
		c.logger.Warn("insert from cache failed",
			zap.String("article_id", t.ArticleID), zap.Error(err))
	}
	return OutcomeCached
}

func (c *Consumer) articleFromTask(t *task.Task) *store.Article {
	return &store.Article{
		ArticleID:   t.ArticleID,
		URL:         t.URL,
		URLOriginal: t.URLOriginal,
		URLHash:     t.URLHash,
		Source:      t.Source,
		Category:    t.Category,
		Priority:    t.Priority,
		Domain:      t.Domain,
		PublishedAt: t.PublishedAt,
		Enriched:    t.Enriched,
		UserID:      t.UserID,
	}
}

// record classifies one finished task into the run counters. The lock is
// held only for the increment, never across I/O.
func (c *Consumer) record(outcome Outcome) {
	c.mu.Lock()
	c.stats.Processed++
	switch outcome {
	case OutcomeSuccess:
		c.stats.Successful++
	case OutcomeCached:
		c.stats.Cached++
		c.stats.Successful++
	case OutcomeDuplicate:
		c.stats.Duplicates++
	case OutcomeFailed:
		c.stats.Failed++
	}
	c.mu.Unlock()
	metrics.TaskProcessed(string(outcome))
}

func (c *Consumer) notePeak(workers int) {
	c.mu.Lock()
	if workers > c.stats.ConcurrentPeak {
		c.stats.ConcurrentPeak = workers
	}
	c.mu.Unlock()
}

// Snapshot returns a copy of the current run statistics.
func (c *Consumer) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Consumer) logStats(runID string, s Stats) {
	c.logger.Info("consumer statistics",
		zap.String("run_id", runID),
		zap.Int("processed", s.Processed),
		zap.Int("successful", s.Successful),
		zap.Int("failed", s.Failed),
		zap.Int("duplicates", s.Duplicates),
		zap.Int("cached", s.Cached),
		zap.Int("concurrent_peak", s.ConcurrentPeak))
}
