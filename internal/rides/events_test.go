package rides

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alatoul/ride-hailing/pkg/eventbus"
	"github.com/alatoul/ride-hailing/pkg/resilience"
	"github.com/alatoul/ride-hailing/test/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	event   *eventbus.Event
}

type chanPublisher struct {
	out chan published
	err error
}

func newChanPublisher() *chanPublisher {
	return &chanPublisher{out: make(chan published, 16)}
}

func (p *chanPublisher) Publish(ctx context.Context, subject string, event *eventbus.Event) error {
	p.out <- published{subject: subject, event: event}
	return p.err
}

func (p *chanPublisher) next(t *testing.T) published {
	t.Helper()
	select {
	case ev := <-p.out:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event published")
		return published{}
	}
}

func TestDispatcher_PublishesInOrder(t *testing.T) {
	pub := newChanPublisher()
	d := NewDispatcher(pub, nil, 8, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	rideID := uuid.New()
	require.True(t, d.Enqueue(context.Background(), eventbus.SubjectRideCreated, eventbus.RideChangedData{RideID: rideID, Status: "pending"}))
	require.True(t, d.Enqueue(context.Background(), eventbus.SubjectRideAccepted, eventbus.RideChangedData{RideID: rideID, Status: "accepted"}))

	first := pub.next(t)
	second := pub.next(t)
	assert.Equal(t, eventbus.SubjectRideCreated, first.subject)
	assert.Equal(t, eventbus.SubjectRideAccepted, second.subject)
	assert.Equal(t, eventSource, first.event.Source)

	var data eventbus.RideChangedData
	require.NoError(t, second.event.Decode(&data))
	assert.Equal(t, rideID, data.RideID)
	assert.Equal(t, "accepted", data.Status)
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	d := NewDispatcher(newChanPublisher(), nil, 1, time.Second)

	assert.True(t, d.Enqueue(context.Background(), eventbus.SubjectRideUpdated, map[string]string{"n": "1"}))
	assert.False(t, d.Enqueue(context.Background(), eventbus.SubjectRideUpdated, map[string]string{"n": "2"}))
}

func TestDispatcher_UnencodableDataIsRejected(t *testing.T) {
	d := NewDispatcher(newChanPublisher(), nil, 1, time.Second)
	assert.False(t, d.Enqueue(context.Background(), eventbus.SubjectRideUpdated, make(chan int)))
}

func TestDispatcher_PublishFailureIsSwallowed(t *testing.T) {
	pub := newChanPublisher()
	pub.err = errors.New("nats: no responders")
	d := NewDispatcher(pub, nil, 4, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.True(t, d.Enqueue(context.Background(), eventbus.SubjectRideCancelled, eventbus.RideCancelledData{RideID: uuid.New()}))
	pub.next(t)

	require.True(t, d.Enqueue(context.Background(), eventbus.SubjectRideCancelled, eventbus.RideCancelledData{RideID: uuid.New()}))
	pub.next(t)
}

func TestDispatcher_OpenBreakerSkipsPublisher(t *testing.T) {
	pub := new(mocks.MockPublisher)
	pub.On("Publish", mock.Anything, eventbus.SubjectRideUpdated, mock.Anything).Return(errors.New("down")).Once()

	breaker := resilience.NewCircuitBreaker(resilience.Settings{
		Name:             "ride-events-test",
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}, nil)
	d := NewDispatcher(pub, breaker, 4, time.Second)

	d.Enqueue(context.Background(), eventbus.SubjectRideUpdated, map[string]int{"n": 1})
	d.Enqueue(context.Background(), eventbus.SubjectRideUpdated, map[string]int{"n": 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestDispatcher_FlushesOnShutdown(t *testing.T) {
	pub := newChanPublisher()
	d := NewDispatcher(pub, nil, 4, time.Second)

	d.Enqueue(context.Background(), eventbus.SubjectRideDeleted, map[string]string{"ride_id": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	assert.Equal(t, eventbus.SubjectRideDeleted, pub.next(t).subject)
}
