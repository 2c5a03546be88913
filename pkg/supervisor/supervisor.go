// Package supervisor owns the connect/subscribe/backoff/reconnect loop
// around pkg/subscriber: it connects, waits for the transport to come up,
// runs the subscriber loop, and on failure waits out an exponential backoff
// (interruptible by the stop signal) before retrying.
package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rad-roots-labs/rhi/pkg/dispatch"
	"github.com/rad-roots-labs/rhi/pkg/subscriber"
	"github.com/rad-roots-labs/rhi/pkg/util"
)

const waitForConnectionTimeout = 5 * time.Second

// Handle is returned by Start and lets the caller request a clean shutdown
// and wait for the run loop to exit, mirroring the original RhiHandle's
// stop()/stopped() split.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop requests the run loop to exit at its next opportunity. Safe to call
// more than once and from any goroutine.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
}

// Stopped blocks until the run loop has exited.
func (h *Handle) Stopped() {
	<-h.done
}

// Start launches the supervised subscriber loop in a background goroutine
// and returns immediately with a Handle.
func Start(parent context.Context, deps dispatch.Deps, cfg BackoffConfig, clock util.Clock, log *zap.SugaredLogger) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		run(ctx, deps, cfg, clock, log)
	}()

	return h
}

func run(ctx context.Context, deps dispatch.Deps, cfg BackoffConfig, clock util.Clock, log *zap.SugaredLogger) {
	backoff := NewBackoff(cfg)

	for {
		if ctx.Err() != nil {
			return
		}

		if err := deps.Transport.Connect(ctx); err != nil {
			if log != nil {
				log.Warnw("connect_failed", "err", err)
			}
			if !sleepOrStop(ctx, clock, backoff.NextDelay()) {
				return
			}
			continue
		}

		connCtx, connCancel := context.WithTimeout(ctx, waitForConnectionTimeout)
		waitErr := deps.Transport.WaitForConnection(connCtx)
		connCancel()
		if ctx.Err() != nil {
			return
		}
		if waitErr != nil {
			if log != nil {
				log.Warnw("wait_for_connection_failed", "err", waitErr)
			}
			if !sleepOrStop(ctx, clock, backoff.NextDelay()) {
				return
			}
			continue
		}

		err := subscriber.Run(ctx, deps)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			if log != nil {
				log.Errorw("subscriber_run_failed", "err", err)
			}
			if !sleepOrStop(ctx, clock, backoff.NextDelay()) {
				return
			}
			continue
		}

		backoff.Reset()
	}
}

// sleepOrStop waits out delay using clock, returning false if ctx is
// cancelled first.
func sleepOrStop(ctx context.Context, clock util.Clock, delay time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-clock.After(delay):
		return true
	}
}
