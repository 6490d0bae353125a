// Package queue defines the broker contract for the priority task queues.
// This abstraction keeps the consumer independent of the concrete broker;
// the production implementation is Redis lists, tests use the in-memory one.
package queue

import (
	"context"
	"time"

	"github.com/pressfeed/ingestor/internal/task"
)

// Broker is the consumed slice of the queue broker: blocking priority pop,
// push and length. Delivery is at-least-once; duplicates across deliveries
// are possible and the pipeline must tolerate them.
type Broker interface {
	// Push appends a task to the named queue (FIFO within a queue).
	Push(ctx context.Context, queueName string, t *task.Task) error

	// PopPriority pops the next task across the ordered queue list, earlier
	// names first. It blocks up to timeout and returns (nil, nil) when every
	// queue stayed empty.
	PopPriority(ctx context.Context, queueNames []string, timeout time.Duration) (*task.Task, error)

	// Length reports the number of pending tasks in one queue.
	Length(ctx context.Context, queueName string) (int64, error)
}
