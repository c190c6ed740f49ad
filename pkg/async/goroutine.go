package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/platinummonkey/taskhub/pkg/observability"
)

// SafeGo runs fn in a goroutine with panic recovery and a timeout.
//
// The goroutine's context keeps the values of parentCtx (request id, logger)
// but not its cancellation, so work started by a request outlives the request.
// Errors and panics are logged; the caller never sees them.
//
//	SafeGo(r.Context(), 5*time.Second, "webhook delivery", func(ctx context.Context) error {
//	    return sink.Deliver(ctx, event)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	defaultTracker.Go(parentCtx, timeout, taskName, fn)
}

var defaultTracker = &Tracker{}

// Tracker counts goroutines it started so shutdown can wait for them
type Tracker struct {
	wg sync.WaitGroup
}

// Go is SafeGo bound to the tracker
func (t *Tracker) Go(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
		defer cancel()

		if err := run(ctx, fn); err != nil {
			observability.FromContext(ctx).
				WithError(err).
				WithField("task", taskName).
				Warn("background task failed")
		}
	}()
}

func run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

// Wait blocks until every tracked goroutine returns or ctx is done
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}

// Drain waits for goroutines started through SafeGo
func Drain(ctx context.Context) error {
	return defaultTracker.Wait(ctx)
}
