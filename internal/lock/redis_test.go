package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newRedisLocker(t *testing.T, expiry time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return NewRedis(rc, expiry), mr
}

func TestRedisTryLock(t *testing.T) {
	r, _ := newRedisLocker(t, 30*time.Second)
	ctx := context.Background()

	unlock, err := r.TryLock(ctx, "reconcile")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.TryLock(ctx, "reconcile"); !errors.Is(err, ErrLocked) {
		t.Errorf("second TryLock err = %v, want ErrLocked", err)
	}
	unlock()
	unlock() // idempotent

	u, err := r.TryLock(ctx, "reconcile")
	if err != nil {
		t.Fatalf("after unlock: %v", err)
	}
	u()
}

func TestRedisHeldKeyOutlivesExpiry(t *testing.T) {
	const expiry = 300 * time.Millisecond
	r, mr := newRedisLocker(t, expiry)
	ctx := context.Background()

	unlock, err := r.TryLock(ctx, "reconcile")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	// miniredis only ages keys on FastForward. Age the key most of the way,
	// let the holder refresh it, then age it past the original expiry.
	mr.FastForward(200 * time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	mr.FastForward(200 * time.Millisecond)

	if _, err := r.TryLock(ctx, "reconcile"); !errors.Is(err, ErrLocked) {
		t.Fatalf("second run acquired a held key: err = %v", err)
	}
}

func TestRedisUnlockReleasesKey(t *testing.T) {
	r, mr := newRedisLocker(t, 30*time.Second)

	unlock, err := r.Lock(context.Background(), "payout:c1")
	if err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("lock:payout:c1") {
		t.Fatal("held key missing in redis")
	}
	unlock()
	if mr.Exists("lock:payout:c1") {
		t.Error("key still present after unlock")
	}
}

func TestRedisOutageIsNotContention(t *testing.T) {
	r, mr := newRedisLocker(t, 30*time.Second)
	mr.SetError("ERR server unavailable")

	_, err := r.TryLock(context.Background(), "reconcile")
	if err == nil {
		t.Fatal("expected error while Redis fails")
	}
	if errors.Is(err, ErrLocked) {
		t.Errorf("outage reported as contention: %v", err)
	}
}
