package async

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/observability"
)

func quietLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	observability.SetDefault(observability.NewLogger(observability.WarnLevel, &buf))
	return &buf
}

func TestTracker_RunsAndWaits(t *testing.T) {
	quietLogger(t)
	var tr Tracker
	var executed atomic.Int32

	for i := 0; i < 5; i++ {
		tr.Go(context.Background(), time.Second, "count", func(ctx context.Context) error {
			executed.Add(1)
			return nil
		})
	}

	require.NoError(t, tr.Wait(context.Background()))
	assert.Equal(t, int32(5), executed.Load())
}

func TestTracker_DetachedFromParentCancellation(t *testing.T) {
	quietLogger(t)
	var tr Tracker

	parent, cancel := context.WithCancel(observability.WithRequestID(context.Background(), "req-1"))
	cancel()

	var sawErr error
	var sawID string
	tr.Go(parent, time.Second, "detached", func(ctx context.Context) error {
		sawErr = ctx.Err()
		sawID = observability.GetRequestID(ctx)
		return nil
	})

	require.NoError(t, tr.Wait(context.Background()))
	assert.NoError(t, sawErr)
	assert.Equal(t, "req-1", sawID)
}

func TestTracker_Timeout(t *testing.T) {
	quietLogger(t)
	var tr Tracker
	var hitDeadline atomic.Bool

	tr.Go(context.Background(), 20*time.Millisecond, "slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			hitDeadline.Store(true)
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	require.NoError(t, tr.Wait(context.Background()))
	assert.True(t, hitDeadline.Load())
}

func TestTracker_ErrorsAndPanicsAreLogged(t *testing.T) {
	buf := quietLogger(t)
	var tr Tracker

	tr.Go(context.Background(), time.Second, "failing", func(ctx context.Context) error {
		return errors.New("delivery refused")
	})
	tr.Go(context.Background(), time.Second, "panicking", func(ctx context.Context) error {
		panic("nil map")
	})

	require.NoError(t, tr.Wait(context.Background()))
	assert.Contains(t, buf.String(), "delivery refused")
	assert.Contains(t, buf.String(), "panic: nil map")
}

func TestTracker_WaitRespectsContext(t *testing.T) {
	quietLogger(t)
	var tr Tracker
	release := make(chan struct{})
	defer close(release)

	tr.Go(context.Background(), time.Second, "blocked", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, tr.Wait(ctx))
}

func TestSafeGo(t *testing.T) {
	quietLogger(t)
	done := make(chan struct{})
	SafeGo(context.Background(), time.Second, "package level", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SafeGo did not run")
	}
	require.NoError(t, Drain(context.Background()))
}
