package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetDeduplicatesConcurrentReads(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	cache := NewCache(CacheOptions{
		TTL: time.Minute,
		Fetch: func(ctx context.Context) (*Session, error) {
			calls.Add(1)
			<-release
			return &Session{ID: "u1", Role: RoleUser, Credit: 5}, nil
		},
	})

	const readers = 8
	var wg sync.WaitGroup
	results := make([]*Session, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = cache.Get(context.Background())
		}(i)
	}
	// Let every reader join the flight before it resolves.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 network call for %d readers, got %d", readers, got)
	}
	for i, s := range results {
		if s == nil || s.ID != "u1" {
			t.Fatalf("reader %d got %+v", i, s)
		}
	}
}

func TestGetServesFromCacheWithinTTL(t *testing.T) {
	var calls atomic.Int32
	cache := NewCache(CacheOptions{
		TTL: time.Minute,
		Fetch: func(ctx context.Context) (*Session, error) {
			calls.Add(1)
			return &Session{ID: "u1", Role: RoleUser}, nil
		},
	})

	for i := 0; i < 5; i++ {
		if _, err := cache.Get(context.Background()); err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 call for repeated fresh reads, got %d", got)
	}
}

func TestInvalidateForcesExactlyOneNewCall(t *testing.T) {
	var calls atomic.Int32
	cache := NewCache(CacheOptions{
		TTL: time.Minute,
		Fetch: func(ctx context.Context) (*Session, error) {
			calls.Add(1)
			return &Session{ID: "u1", Role: RoleUser}, nil
		},
	})

	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	cache.Invalidate()
	if _, st := cache.Peek(); st != StatePending {
		t.Fatalf("state after invalidation = %v, want pending", st)
	}
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected exactly 2 calls after invalidate-then-read, got %d", got)
	}
}

func TestSupersededFetchDoesNotOverwriteNewerEpoch(t *testing.T) {
	var calls atomic.Int32
	slowStarted := make(chan struct{})
	slowRelease := make(chan struct{})
	cache := NewCache(CacheOptions{
		TTL: time.Minute,
		Fetch: func(ctx context.Context) (*Session, error) {
			n := calls.Add(1)
			if n == 1 {
				close(slowStarted)
				<-slowRelease
				return &Session{ID: "stale", Role: RoleUser}, nil
			}
			return &Session{ID: "fresh", Role: RoleUser}, nil
		},
	})

	staleResult := make(chan *Session, 1)
	go func() {
		s, _ := cache.Get(context.Background())
		staleResult <- s
	}()
	<-slowStarted

	// Invalidation arrives while the first fetch is still in flight.
	cache.Invalidate()
	fresh, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if fresh == nil || fresh.ID != "fresh" {
		t.Fatalf("post-invalidation read = %+v, want fresh", fresh)
	}

	// Now let the stale flight land. It must not overwrite the newer value,
	// and its caller must observe the post-invalidation state.
	close(slowRelease)
	if s := <-staleResult; s == nil || s.ID != "fresh" {
		t.Fatalf("superseded reader got %+v, want fresh", s)
	}
	if v, st := cache.Peek(); st != StateReady || v == nil || v.ID != "fresh" {
		t.Fatalf("cache holds %v/%+v, want ready/fresh", st, v)
	}
}

func TestFetchFailureDegradesToAbsent(t *testing.T) {
	cache := NewCache(CacheOptions{
		TTL: time.Minute,
		Fetch: func(ctx context.Context) (*Session, error) {
			return nil, errors.New("connection refused")
		},
	})

	s, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if s != nil {
		t.Fatalf("expected absent session, got %+v", s)
	}
	if _, st := cache.Peek(); st != StateAbsent {
		t.Fatalf("state = %v, want absent", st)
	}
}

func TestClearAdvancesEpochAndDropsValue(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	cache := NewCache(CacheOptions{
		TTL: time.Minute,
		Fetch: func(ctx context.Context) (*Session, error) {
			once.Do(func() { close(started) })
			<-release
			return &Session{ID: "resurrected", Role: RoleUser}, nil
		},
	})

	done := make(chan *Session, 1)
	go func() {
		s, _ := cache.Get(context.Background())
		done <- s
	}()
	<-started

	// Logout completes while the read is still in flight.
	cache.Clear()
	close(release)

	if s := <-done; s != nil {
		t.Fatalf("read across logout returned %+v, want nil", s)
	}
	if v, st := cache.Peek(); st != StateAbsent || v != nil {
		t.Fatalf("cache holds %v/%+v after clear, want absent/nil", st, v)
	}
}

func TestGetHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cache := NewCache(CacheOptions{
		TTL: time.Minute,
		Fetch: func(ctx context.Context) (*Session, error) {
			t.Fatalf("fetch should not run for canceled context")
			return nil, nil
		},
	})
	if _, err := cache.Get(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
