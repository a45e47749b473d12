// Package cache holds a single computed value for a fixed time-to-live.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTTL of the envelope enumeration.
const DefaultTTL = 5 * time.Minute

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Entry is replaced wholesale on every successful refresh.
type Entry[T any] struct {
	Payload    T
	ComputedAt time.Time
}

// Cache is a single slot memo. Readers share the read lock; a refresh computes
// outside any lock and only takes the write lock to store the result.
//
// Concurrent misses are not coalesced: each of them computes. Every refresh is
// numbered when it starts and a result never replaces one from a later refresh,
// so a slow pass pinned to an older block cannot overwrite a newer entry.
type Cache[T any] struct {
	lock   sync.RWMutex
	entry  *Entry[T]
	stored uint64
	passes atomic.Uint64
	ttl    time.Duration
	clock  Clock
}

type Option func(*options)

type options struct {
	clock Clock
}

func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func New[T any](ttl time.Duration, opts ...Option) *Cache[T] {
	o := options{clock: systemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[T]{ttl: ttl, clock: o.clock}
}

func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// Peek returns the current entry and whether it is still fresh.
func (c *Cache[T]) Peek() (Entry[T], bool, bool) {
	c.lock.RLock()
	entry := c.entry
	c.lock.RUnlock()
	if entry == nil {
		return Entry[T]{}, false, false
	}
	return *entry, true, c.clock.Now().Sub(entry.ComputedAt) < c.ttl
}

// Get returns the fresh entry if there is one, otherwise it calls compute and
// stores its result. hit reports whether compute was skipped. When compute fails
// the previous entry stays in place and the error is returned.
func (c *Cache[T]) Get(ctx context.Context, compute func(context.Context) (T, error)) (entry Entry[T], hit bool, err error) {
	if entry, ok, fresh := c.Peek(); ok && fresh {
		return entry, true, nil
	}
	pass := c.passes.Add(1)
	payload, err := compute(ctx)
	if err != nil {
		return Entry[T]{}, false, err
	}
	entry = Entry[T]{Payload: payload, ComputedAt: c.clock.Now()}
	c.lock.Lock()
	if pass > c.stored {
		c.entry = &entry
		c.stored = pass
	}
	c.lock.Unlock()
	return entry, false, nil
}
