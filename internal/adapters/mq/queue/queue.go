// Package queue provides the bounded command queue behind one write lane.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/courtside/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Result is what applying a Command produced.
type Result struct {
	Value any
	Err   error
}

// Command is one mutation of a user's list waiting for its lane.
type Command struct {
	Ctx        context.Context
	UserID     string
	Op         string
	Apply      func(ctx context.Context) (any, error)
	Reply      chan Result // buffered; the worker never blocks on it
	EnqueuedAt time.Time
}

// NewCommand builds a command with a ready reply channel.
func NewCommand(ctx context.Context, userID, op string, apply func(ctx context.Context) (any, error)) Command {
	return Command{
		Ctx:        ctx,
		UserID:     userID,
		Op:         op,
		Apply:      apply,
		Reply:      make(chan Result, 1),
		EnqueuedAt: time.Now(),
	}
}

// Queue is a FIFO of commands.
type Queue interface {
	Enqueue(ctx context.Context, c Command) error
	Dequeue(ctx context.Context) <-chan Command
	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue is a channel-backed Queue that rejects instead of blocking
// when full.
type InMemoryQueue struct {
	commands chan Command
	capacity int
	name     string

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		name:     "lane",
	}
	for _, opt := range opts {
		opt(q)
	}
	q.commands = make(chan Command, q.capacity)
	metrics.UpdateLaneDepth(q.name, 0)
	return q
}

// Enqueue adds c without blocking. It returns ErrFull when the queue is at
// capacity and ErrClosed after Close.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Command) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordLaneRejected()
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case q.commands <- c:
		metrics.UpdateLaneDepth(q.name, len(q.commands))
		return nil
	default:
		metrics.RecordLaneRejected()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue. It is closed by Close once
// drained.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Command {
	return q.commands
}

// Len returns the number of waiting commands.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	n := len(q.commands)
	metrics.UpdateLaneDepth(q.name, n)
	return n
}

// Close stops accepting commands. Queued commands stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.commands)
	}
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
