// Package dedupe remembers the outcome of requests carrying an
// idempotency key, so a retried request replays the first answer instead
// of mutating a board twice.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 10_000

// Deduper maps idempotency keys to the result of their first request.
type Deduper[V any] interface {
	// Lookup returns the result stored for key.
	Lookup(ctx context.Context, key string) (V, bool)

	// Record stores v for key unless key is already known. It reports
	// whether key was already present.
	Record(ctx context.Context, key string, v V) bool

	// Forget removes key so the request can be retried.
	Forget(ctx context.Context, key string)

	Size() int64
}

// inMemoryDeduper keeps up to maxSize keys and evicts the oldest first.
// A maxSize <= 0 keeps every key.
type inMemoryDeduper[V any] struct {
	mu      sync.Mutex
	seen    map[string]V
	order   []string // insertion order, oldest first; may hold forgotten keys
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper[V any](opts ...Option) Deduper[V] {
	cfg := config{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &inMemoryDeduper[V]{
		seen:    make(map[string]V),
		maxSize: cfg.maxSize,
	}
}

func (d *inMemoryDeduper[V]) Lookup(_ context.Context, key string) (V, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.seen[key]
	return v, ok
}

func (d *inMemoryDeduper[V]) Record(_ context.Context, key string, v V) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize {
			d.evictOldest()
		}
	}
	d.seen[key] = v
	d.order = append(d.order, key)
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper[V]) Forget(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		delete(d.seen, key)
		d.size.Add(-1)
	}
	if len(d.order) > 2*len(d.seen)+16 {
		d.compact()
	}
}

// evictOldest drops the oldest live key. Must be called with d.mu held.
func (d *inMemoryDeduper[V]) evictOldest() {
	for len(d.order) > 0 {
		key := d.order[0]
		d.order = d.order[1:]
		if _, ok := d.seen[key]; ok {
			delete(d.seen, key)
			d.size.Add(-1)
			return
		}
	}
}

// compact drops forgotten keys from the order slice. Must be called with
// d.mu held.
func (d *inMemoryDeduper[V]) compact() {
	live := make([]string, 0, len(d.seen))
	for _, key := range d.order {
		if _, ok := d.seen[key]; ok {
			live = append(live, key)
		}
	}
	d.order = live
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper[V]) Size() int64 {
	return d.size.Load()
}
