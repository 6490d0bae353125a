// Package redis implements the queue broker on Redis lists. Priority is
// expressed through BLPOP's key ordering: Redis serves the first non-empty
// key in the order given, so any pending high-priority task is delivered
// before a lower queue is even considered.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pressfeed/ingestor/internal/task"
)

// Broker is a Redis-list-backed queue broker.
type Broker struct {
	client *redis.Client
	logger *zap.Logger
}

// New wraps an existing Redis client. The client is pinged so that an
// unreachable broker fails at startup rather than on the first pop.
func New(ctx context.Context, client *redis.Client, logger *zap.Logger) (*Broker, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Broker{client: client, logger: logger}, nil
}

// Push appends a task to the tail of the named queue.
func (b *Broker) Push(ctx context.Context, queueName string, t *task.Task) error {
	data, err := t.Encode()
	if err != nil {
		return err
	}
	if err := b.client.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", queueName, err)
	}
	b.logger.Debug("pushed task", zap.String("queue", queueName), zap.String("article_id", t.ArticleID))
	return nil
}

// PopPriority blocks on BLPOP across the ordered queue names. A timeout with
// no task is not an error: it returns (nil, nil).
func (b *Broker) PopPriority(ctx context.Context, queueNames []string, timeout time.Duration) (*task.Task, error) {
	res, err := b.client.BLPop(ctx, timeout, queueNames...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("blpop: %w", err)
	}
	// BLPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("blpop: unexpected reply of %d elements", len(res))
	}
	t, err := task.Parse([]byte(res[1]))
	if err != nil {
		return nil, fmt.Errorf("queue %s: %w", res[0], err)
	}
	b.logger.Debug("popped task", zap.String("queue", res[0]), zap.String("article_id", t.ArticleID))
	return t, nil
}

// Length reports the pending task count of one queue.
func (b *Broker) Length(ctx context.Context, queueName string) (int64, error) {
	n, err := b.client.LLen(ctx, queueName).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", queueName, err)
	}
	return n, nil
}
