// Package async provides panic-safe fire-and-forget goroutines.
//
// SafeGo detaches the goroutine from the caller's cancellation, bounds it
// with a timeout and logs any error or panic instead of propagating it. The
// activity fan-out uses it so that a failed delivery never reaches the
// request that produced the event.
//
//	async.SafeGo(ctx, 5*time.Second, "notification publish", func(ctx context.Context) error {
//		return publisher.Publish(ctx, n)
//	})
//
// A Tracker scopes goroutines so a caller (a test, or shutdown) can wait for
// them with Wait. Drain waits for the package-level tracker used by SafeGo.
package async
