// Package app initializes and holds long-lived application services, acting
// as a dependency injection container. Clients are constructed once at
// startup, injected into the consumer and held for its lifetime; there is no
// global client registry.
package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pressfeed/ingestor/internal/cache"
	"github.com/pressfeed/ingestor/internal/logging"
	"github.com/pressfeed/ingestor/internal/metrics"
	"github.com/pressfeed/ingestor/internal/queue"
	redisqueue "github.com/pressfeed/ingestor/internal/queue/redis"
	"github.com/pressfeed/ingestor/internal/scraper"
	"github.com/pressfeed/ingestor/internal/store"
	"github.com/pressfeed/ingestor/internal/store/postgres"
)

// App holds the shared, long-lived services: the Redis client (broker and
// volatile cache), the Postgres store, the cache-aside layer and the scraper.
type App struct {
	logger  *zap.Logger
	rdb     *goredis.Client
	broker  queue.Broker
	store   *postgres.Store
	cache   *cache.ArticleCache
	scraper *scraper.Scraper
	queues  []string
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Broker returns the queue broker.
func (a *App) Broker() queue.Broker { return a.broker }

// Store returns the durable article store.
func (a *App) Store() store.Store { return a.store }

// Cache returns the cache-aside layer.
func (a *App) Cache() *cache.ArticleCache { return a.cache }

// Scraper returns the fetch orchestrator.
func (a *App) Scraper() *scraper.Scraper { return a.scraper }

// Queues returns the queue names in strict priority order, highest first.
func (a *App) Queues() []string { return a.queues }

// New constructs every service from the loaded configuration, failing fast
// when the broker or store is unreachable so misconfiguration surfaces as a
// non-zero exit before any task is consumed.
func New(ctx context.Context) (*App, error) {
	l := logging.L
	l.Info("initializing services")
	metrics.Init()

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     viper.GetString("redis.addr"),
		DB:       viper.GetInt("redis.db"),
		Password: viper.GetString("redis.password"),
	})
	broker, err := redisqueue.New(ctx, rdb, l)
	if err != nil {
		return nil, fmt.Errorf("initialize broker: %w", err)
	}
	l.Info("connected to redis", zap.String("addr", viper.GetString("redis.addr")))

	st, err := postgres.New(ctx, postgres.Config{
		DSN:      viper.GetString("database.dsn"),
		MaxConns: int32(viper.GetInt("database.max_conns")),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}
	l.Info("connected to postgres")

	articleCache := cache.New(rdb, st, cache.Config{
		Enabled: viper.GetBool("cache.enabled"),
		TTL:     viper.GetDuration("cache.ttl"),
		Prefix:  viper.GetString("cache.prefix"),
	}, l)

	sc := scraper.New(scraper.Config{
		UserAgent:   viper.GetString("scraper.user_agent"),
		Timeout:     viper.GetDuration("scraper.timeout"),
		MaxAttempts: viper.GetInt("scraper.max_attempts"),
	}, l)

	return &App{
		logger:  l,
		rdb:     rdb,
		broker:  broker,
		store:   st,
		cache:   articleCache,
		scraper: sc,
		queues: []string{
			viper.GetString("queue.high"),
			viper.GetString("queue.medium"),
			viper.GetString("queue.low"),
		},
	}, nil
}

// Close shuts the services down and flushes the logger.
func (a *App) Close() {
	a.logger.Info("shutting down services")
	if a.store != nil {
		a.store.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("close redis client", zap.Error(err))
		}
	}
	if err := a.logger.Sync(); err != nil {
		// Best effort; stderr may already be gone on shutdown.
		_ = err
	}
}

// PopTimeout returns the configured blocking-pop timeout.
func (a *App) PopTimeout() time.Duration {
	return viper.GetDuration("queue.pop_timeout")
}
