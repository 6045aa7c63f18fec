// Package lock provides per-key mutual exclusion for billing operations that
// must not interleave for the same creator: Redis-backed (redsync) across
// instances, or in-process for a single instance.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	rsgoredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredis "github.com/redis/go-redis/v9"
)

// ErrLocked is returned by TryLock when another holder has the key.
var ErrLocked = errors.New("lock: key is held")

// Unlock releases a held key.
type Unlock func()

// Local is an in-process keyed mutex. The zero value is not usable; use NewLocal.
type Local struct {
	mu   sync.Mutex
	keys map[string]chan struct{}
}

// NewLocal returns an empty keyed mutex.
func NewLocal() *Local {
	return &Local{keys: make(map[string]chan struct{})}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.keys[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.keys[key] = ch
	}
	return ch
}

// Lock blocks until the key is acquired or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryLock acquires the key only if it is free.
func (l *Local) TryLock(_ context.Context, key string) (Unlock, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	default:
		return nil, ErrLocked
	}
}

// Redis is a distributed keyed mutex on redsync. A held key is extended in
// the background every third of its expiry until it is unlocked, so a
// long-running holder keeps it while a crashed one loses it after expiry.
type Redis struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

// NewRedis builds a distributed locker. expiry bounds how long a crashed
// holder can keep a key.
func NewRedis(c goredis.UniversalClient, expiry time.Duration) *Redis {
	return &Redis{rs: redsync.New(rsgoredis.NewPool(c)), expiry: expiry}
}

// Lock retries until the key is acquired, ctx is done, or redsync gives up.
func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	m := r.rs.NewMutex("lock:"+key,
		redsync.WithExpiry(r.expiry),
		redsync.WithTries(64),
		redsync.WithRetryDelay(50*time.Millisecond),
	)
	if err := m.LockContext(ctx); err != nil {
		return nil, acquireError(key, err)
	}
	return r.hold(m), nil
}

// TryLock makes a single acquisition attempt. Contention yields ErrLocked;
// Redis failures are returned as they are.
func (r *Redis) TryLock(ctx context.Context, key string) (Unlock, error) {
	m := r.rs.NewMutex("lock:"+key,
		redsync.WithExpiry(r.expiry),
		redsync.WithTries(1),
	)
	if err := m.LockContext(ctx); err != nil {
		return nil, acquireError(key, err)
	}
	return r.hold(m), nil
}

func acquireError(key string, err error) error {
	var taken *redsync.ErrTaken
	if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
		return fmt.Errorf("%w: %s", ErrLocked, key)
	}
	return fmt.Errorf("lock %s: %w", key, err)
}

// hold keeps m alive until the returned Unlock runs.
func (r *Redis) hold(m *redsync.Mutex) Unlock {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(r.expiry / 3)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				ctx, cancel := context.WithTimeout(context.Background(), r.expiry/3)
				ok, _ := m.ExtendContext(ctx)
				cancel()
				if !ok {
					// Lost the key; the next holder owns it now.
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, _ = m.UnlockContext(ctx)
		})
	}
}
