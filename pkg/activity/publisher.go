package activity

import (
	"context"
	"time"

	"github.com/platinummonkey/taskhub/pkg/async"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/store"
)

// Emitter accepts events from the domain services
type Emitter interface {
	Publish(ctx context.Context, ev Event)
}

// Sink delivers an event to one destination
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

type discard struct{}

func (discard) Publish(context.Context, Event) {}

// Discard drops every event
var Discard Emitter = discard{}

// OrDiscard returns e, or Discard when e is nil
func OrDiscard(e Emitter) Emitter {
	if e == nil {
		return Discard
	}
	return e
}

// DefaultSinkTimeout bounds a single sink delivery
const DefaultSinkTimeout = 10 * time.Second

// Publisher fans events out to sinks without blocking the caller
type Publisher struct {
	sinks   []Sink
	timeout time.Duration
	tracker *async.Tracker
	metrics *observability.Metrics
}

// NewPublisher creates a publisher. metrics may be nil.
func NewPublisher(metrics *observability.Metrics, sinks ...Sink) *Publisher {
	return &Publisher{
		sinks:   sinks,
		timeout: DefaultSinkTimeout,
		tracker: &async.Tracker{},
		metrics: metrics,
	}
}

// WithTimeout sets the per-sink delivery timeout
func (p *Publisher) WithTimeout(timeout time.Duration) *Publisher {
	p.timeout = timeout
	return p
}

// Publish hands ev to every sink and returns immediately
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = store.Now()
	}
	for _, sink := range p.sinks {
		sink := sink
		p.tracker.Go(ctx, p.timeout, "activity."+sink.Name(), func(ctx context.Context) error {
			err := sink.Deliver(ctx, ev)
			p.metrics.RecordFanout(sink.Name(), err)
			return err
		})
	}
}

// Wait blocks until in-flight deliveries finish or ctx is done
func (p *Publisher) Wait(ctx context.Context) error {
	return p.tracker.Wait(ctx)
}
