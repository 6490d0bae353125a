// Package memory provides an in-memory queue broker for local development
// and tests. It reproduces the broker's strict priority-pop semantics.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pressfeed/ingestor/internal/task"
)

// Broker is a mutex-guarded in-memory queue broker.
type Broker struct {
	mu     sync.Mutex
	queues map[string][]*task.Task
}

// New constructs an empty broker.
func New() *Broker {
	return &Broker{queues: make(map[string][]*task.Task)}
}

// Push appends a task to the named queue.
func (b *Broker) Push(_ context.Context, queueName string, t *task.Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[queueName] = append(b.queues[queueName], t)
	return nil
}

// PopPriority pops the head of the first non-empty queue in order. Unlike the
// Redis broker it does not block: an empty set of queues returns immediately,
// which keeps consumer tests fast while preserving priority semantics.
func (b *Broker) PopPriority(ctx context.Context, queueNames []string, _ time.Duration) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range queueNames {
		q := b.queues[name]
		if len(q) == 0 {
			continue
		}
		t := q[0]
		b.queues[name] = q[1:]
		return t, nil
	}
	return nil, nil
}

// Length reports the pending task count of one queue.
func (b *Broker) Length(_ context.Context, queueName string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.queues[queueName])), nil
}
