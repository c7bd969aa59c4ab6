package session

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"snappdf/internal/infra"
)

// State describes what the cache currently knows about the session.
type State int

const (
	// StatePending means no read has resolved yet for the current epoch.
	StatePending State = iota
	// StateReady means a session is present.
	StateReady
	// StateAbsent means the viewer is not logged in. A failed fetch also
	// lands here: callers cannot distinguish "not logged in" from "server
	// unreachable".
	StateAbsent
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateAbsent:
		return "absent"
	}
	return "unknown"
}

// FetchFunc resolves the current session from the backend.
type FetchFunc func(ctx context.Context) (*Session, error)

// Cache is the shared read-through cache for the viewer session. Concurrent
// readers are deduplicated into one network call per invalidation epoch, and
// a fetch started before an invalidation is discarded when it lands.
type Cache struct {
	fetch  FetchFunc
	ttl    time.Duration
	logger infra.Logger

	group singleflight.Group

	mu        sync.Mutex
	epoch     uint64
	state     State
	value     *Session
	fetchedAt time.Time
}

// CacheOptions configures a Cache.
type CacheOptions struct {
	Fetch  FetchFunc
	TTL    time.Duration
	Logger *infra.Logger
}

// NewCache constructs an empty cache in the pending state.
func NewCache(opts CacheOptions) *Cache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Cache{
		fetch:  opts.Fetch,
		ttl:    ttl,
		logger: logger,
		state:  StatePending,
	}
}

// Peek returns the cached session and state without triggering a fetch.
func (c *Cache) Peek() (*Session, State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.state
}

// Get resolves the session, fetching when the cached value is missing or
// stale. A nil return means absent; fetch failures degrade to absent by
// policy. The returned error is only ever a context error.
func (c *Cache) Get(ctx context.Context) (*Session, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.state != StatePending && time.Since(c.fetchedAt) < c.ttl {
			v := c.value
			c.mu.Unlock()
			return v, nil
		}
		epoch := c.epoch
		c.mu.Unlock()

		// The epoch keys the flight: readers inside one epoch share a
		// single network call, and an invalidation starts a new key so a
		// superseded flight can never overwrite the newer result.
		key := strconv.FormatUint(epoch, 10)
		v, err, shared := c.group.Do(key, func() (any, error) {
			return c.fetch(ctx)
		})

		c.mu.Lock()
		if epoch != c.epoch {
			c.mu.Unlock()
			c.logger.Debug().Uint64("epoch", epoch).Bool("shared", shared).
				Msg("session: superseded fetch discarded")
			continue
		}
		if err != nil {
			c.state = StateAbsent
			c.value = nil
			c.logger.Debug().Err(err).Msg("session: fetch failed, treating as absent")
		} else if s, ok := v.(*Session); ok && s != nil {
			c.state = StateReady
			c.value = s
		} else {
			c.state = StateAbsent
			c.value = nil
		}
		c.fetchedAt = time.Now()
		out := c.value
		c.mu.Unlock()
		return out, nil
	}
}

// Invalidate forces the next read to bypass the cache and hit the network.
// Reads already in flight are superseded: whatever they resolve to is
// discarded in favor of the next fetch.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.state = StatePending
	c.value = nil
	c.fetchedAt = time.Time{}
}

// Clear drops the session without scheduling a fetch, used on logout. The
// epoch still advances so in-flight reads from the old credential cannot
// resurrect the session.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.state = StateAbsent
	c.value = nil
	c.fetchedAt = time.Now()
}
