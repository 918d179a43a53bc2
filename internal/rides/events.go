package rides

import (
	"context"
	"time"

	"github.com/alatoul/ride-hailing/pkg/async"
	"github.com/alatoul/ride-hailing/pkg/eventbus"
	"github.com/alatoul/ride-hailing/pkg/logger"
	"github.com/alatoul/ride-hailing/pkg/resilience"
	"github.com/alatoul/ride-hailing/pkg/tracing"
	"go.uber.org/zap"
)

const (
	eventSource           = "rides-service"
	defaultQueueSize      = 256
	defaultPublishTimeout = 5 * time.Second
)

type queuedEvent struct {
	subject string
	event   *eventbus.Event
	task    async.TaskContext
}

// Dispatcher is the outbound ride event channel. Writers enqueue after their
// write commits; a single goroutine publishes in order. Delivery is at most
// once: a full queue or a failed publish loses the event.
type Dispatcher struct {
	publisher eventbus.Publisher
	breaker   *resilience.CircuitBreaker
	queue     chan queuedEvent
	timeout   time.Duration
}

// NewDispatcher creates a dispatcher. breaker may be nil.
func NewDispatcher(publisher eventbus.Publisher, breaker *resilience.CircuitBreaker, queueSize int, timeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Dispatcher{
		publisher: publisher,
		breaker:   breaker,
		queue:     make(chan queuedEvent, queueSize),
		timeout:   timeout,
	}
}

// Enqueue wraps data in an event and queues it without blocking.
func (d *Dispatcher) Enqueue(ctx context.Context, subject string, data interface{}) bool {
	event, err := eventbus.NewEvent(subject, eventSource, data)
	if err != nil {
		logger.WarnContext(ctx, "failed to build ride event", zap.String("subject", subject), zap.Error(err))
		recordEvent(subject, "invalid")
		return false
	}

	select {
	case d.queue <- queuedEvent{subject: subject, event: event, task: async.CaptureContext(ctx, subject)}:
		rideEventQueueDepth.Inc()
		return true
	default:
		logger.WarnContext(ctx, "ride event queue full, dropping event",
			zap.String("subject", subject),
			zap.String("event_id", event.ID),
		)
		recordEvent(subject, "dropped")
		return false
	}
}

// Run publishes queued events until ctx is cancelled, then flushes what is
// left in the queue.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.flush()
			return
		case ev := <-d.queue:
			rideEventQueueDepth.Dec()
			d.publish(ev)
		}
	}
}

func (d *Dispatcher) flush() {
	for {
		select {
		case ev := <-d.queue:
			rideEventQueueDepth.Dec()
			d.publish(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ev queuedEvent) {
	ctx, cancel := ev.task.NewContextWithTimeout(d.timeout)
	defer cancel()

	err := tracing.TracePublish(ctx, eventSource, ev.subject, func(ctx context.Context) error {
		_, err := d.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return nil, d.publisher.Publish(ctx, ev.subject, ev.event)
		})
		return err
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to publish ride event",
			zap.String("subject", ev.subject),
			zap.String("event_id", ev.event.ID),
			zap.Error(err),
		)
		recordEvent(ev.subject, "failed")
		return
	}
	recordEvent(ev.subject, "published")
}
