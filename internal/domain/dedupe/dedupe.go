// Package dedupe tracks idempotency keys of ranking confirmations so a
// retried request replays its first answer instead of failing.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
)

// Deduper records seen keys and the result they produced.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so a failed request can be retried.
	Unrecord(ctx context.Context, key string)

	// Remember attaches the result of a completed request to a recorded key.
	Remember(ctx context.Context, key string, result any)

	// Recall returns the result remembered for key, if any.
	Recall(ctx context.Context, key string) (any, bool)

	Size() int64
}

type entry struct {
	seq    uint64
	result any
	done   bool
}

type slot struct {
	key string
	seq uint64
}

// inMemoryDeduper keeps keys in a map and their insertion order in a deque.
// Eviction is FIFO. Slots left behind by Unrecord are skipped via seq.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   deque.Deque[slot]
	seq     uint64
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10000,
		seen:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize && d.order.Len() > 0 {
			d.evictOldest()
		}
	}
	d.seq++
	d.seen[key] = &entry{seq: d.seq}
	if d.maxSize > 0 {
		d.order.PushBack(slot{key: key, seq: d.seq})
	}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		delete(d.seen, key)
		d.size.Add(-1)
	}
	// drop stale slots eagerly when they reach the front
	for d.order.Len() > 0 {
		front := d.order.Front()
		if e, ok := d.seen[front.key]; ok && e.seq == front.seq {
			break
		}
		d.order.PopFront()
	}
}

func (d *inMemoryDeduper) Remember(_ context.Context, key string, result any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.seen[key]; ok {
		e.result = result
		e.done = true
	}
}

func (d *inMemoryDeduper) Recall(_ context.Context, key string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.seen[key]
	if !ok || !e.done {
		return nil, false
	}
	return e.result, true
}

// evictOldest removes the oldest live key. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	for d.order.Len() > 0 {
		s := d.order.PopFront()
		if e, ok := d.seen[s.key]; ok && e.seq == s.seq {
			delete(d.seen, s.key)
			d.size.Add(-1)
			return
		}
	}
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
