package session

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"snappdf/internal/infra"
)

// RenewFunc performs one credential-renewal call against the backend.
type RenewFunc func(ctx context.Context) error

// Refresher silently renews the authentication credential on a fixed
// cadence, independent of any command or view. A renewal failure is fatal
// for the current credential epoch and triggers the expire callback.
//
// The generation counter makes supersession explicit: a logout (or any other
// caller of Supersede) that completes while a tick is in flight wins; the
// late-arriving tick outcome is discarded, whatever it was.
type Refresher struct {
	renew    RenewFunc
	interval time.Duration
	onExpire func()
	logger   infra.Logger
	gen      atomic.Uint64
	ticks    atomic.Uint64
}

// RefresherOptions configures a Refresher.
type RefresherOptions struct {
	Renew    RenewFunc
	Interval time.Duration
	OnExpire func()
	Logger   *infra.Logger
}

// NewRefresher constructs a stopped refresher; call Run to start it.
func NewRefresher(opts RefresherOptions) *Refresher {
	interval := opts.Interval
	if interval <= 0 {
		interval = 13 * time.Minute
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Refresher{
		renew:    opts.Renew,
		interval: interval,
		onExpire: opts.OnExpire,
		logger:   logger,
	}
}

// Run executes the renewal loop until ctx is canceled. It is intended to run
// once, for the lifetime of the process, in its own goroutine.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// RunOnce performs a single renewal tick outside the timer cadence. It obeys
// the same supersession rules as timed ticks.
func (r *Refresher) RunOnce(ctx context.Context) {
	r.tick(ctx)
}

func (r *Refresher) tick(ctx context.Context) {
	r.ticks.Add(1)
	gen := r.gen.Load()
	err := r.renew(ctx)
	if r.gen.Load() != gen {
		r.logger.Debug().Uint64("generation", gen).Msg("refresh: superseded tick discarded")
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		r.logger.Warn().Err(err).Msg("refresh: credential renewal failed, expiring session")
		if r.onExpire != nil {
			r.onExpire()
		}
		return
	}
	r.logger.Debug().Msg("refresh: credential renewed")
}

// Supersede invalidates any in-flight tick. Callers performing a session
// transition of their own (logout, login) use it so a concurrent tick from
// the previous credential epoch cannot observe or undo the transition.
func (r *Refresher) Supersede() {
	r.gen.Add(1)
}

// Ticks reports how many renewal attempts have started. Test hook.
func (r *Refresher) Ticks() uint64 {
	return r.ticks.Load()
}
