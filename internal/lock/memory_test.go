package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryLockerMutualExclusion(t *testing.T) {
	t.Parallel()

	locker := NewMemoryLocker()
	ctx := context.Background()
	key := ReturnKey("order-1")

	var (
		mu      sync.Mutex
		holders int
		maxSeen int
		wg      sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := locker.Acquire(ctx, key, time.Second)
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			defer release()

			mu.Lock()
			holders++
			if holders > maxSeen {
				maxSeen = holders
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("saw %d concurrent holders, want 1", maxSeen)
	}
}

func TestMemoryLockerIndependentKeys(t *testing.T) {
	t.Parallel()

	locker := NewMemoryLocker()
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, ReturnKey("order-a"), time.Second)
	if err != nil {
		t.Fatalf("Acquire(order-a) error = %v", err)
	}
	defer releaseA()

	// A held lock on another order must not block this acquisition.
	acquireCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	releaseB, err := locker.Acquire(acquireCtx, ReturnKey("order-b"), time.Second)
	if err != nil {
		t.Fatalf("Acquire(order-b) error = %v", err)
	}
	releaseB()
}

func TestMemoryLockerContextCancel(t *testing.T) {
	t.Parallel()

	locker := NewMemoryLocker()
	key := ReturnKey("order-1")

	release, err := locker.Acquire(context.Background(), key, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(ctx, key, time.Second); err == nil {
		t.Fatal("expected context error while lock is held")
	}
}

func TestMemoryLockerReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	locker := NewMemoryLocker()
	key := ReturnKey("order-1")

	release, err := locker.Acquire(context.Background(), key, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	release()
	release()

	// Lock must be acquirable again after double release.
	again, err := locker.Acquire(context.Background(), key, time.Second)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	again()
}
