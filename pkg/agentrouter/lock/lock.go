// Package lock serializes operations on one workflow id.
//
// Keyed gives in-process mutual exclusion. A Locker extends it across
// router processes that share a checkpoint store.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL bounds how long a distributed lock survives a crashed holder.
// Lockers keep a live holder's lock from expiring.
const DefaultTTL = 30 * time.Second

// UnlockFunc releases a lock obtained from a Locker.
type UnlockFunc func(ctx context.Context) error

// Locker acquires a lock shared between processes. The lock stays held
// until the UnlockFunc is called; ttl only applies once the holder stops
// refreshing it.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// Keyed hands out one mutex per key and drops it once nobody holds or
// waits for it.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry

	locker Locker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Keyed.
type Option func(*Keyed)

// WithLocker also takes a distributed lock while the local one is held.
func WithLocker(l Locker) Option {
	return func(k *Keyed) { k.locker = l }
}

// WithTTL sets the distributed lock TTL. Default DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(k *Keyed) { k.ttl = ttl }
}

// WithLogger sets the logger used for release failures.
func WithLogger(l *slog.Logger) Option {
	return func(k *Keyed) { k.logger = l }
}

// NewKeyed creates a Keyed.
func NewKeyed(opts ...Option) *Keyed {
	k := &Keyed{
		entries: make(map[string]*entry),
		ttl:     DefaultTTL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Keyed) acquire(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(k.entries, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Do runs fn while holding the lock for key.
func (k *Keyed) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	e := k.acquire(key)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		k.release(key)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	if k.locker != nil {
		unlock, err := k.locker.Lock(ctx, key, k.ttl)
		if err != nil {
			return fmt.Errorf("acquire distributed lock for %s: %w", key, err)
		}
		defer func() {
			// The run may have been cancelled; release regardless.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				k.logger.Warn("failed to release distributed lock, it will expire",
					slog.String("workflow_id", key),
					slog.Any("err", err),
				)
			}
		}()
	}

	return fn(ctx)
}
