package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventStudentCreated, func(_ context.Context, e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(_ context.Context, e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, shared.NewStudentCreatedEvent(1, "Ada", "Math")))
	require.NoError(t, bus.Publish(ctx, shared.NewStudentDeletedEvent(1, "Math")))

	assert.Equal(t, []shared.EventType{shared.EventStudentCreated}, typed)
	assert.Equal(t, []shared.EventType{shared.EventStudentCreated, shared.EventStudentDeleted}, all)
}

func TestInMemoryEventBus_HandlerFailureDoesNotFailPublish(t *testing.T) {
	reg := prometheus.NewRegistry()
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{Registerer: reg})
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.SubscribeAll(func(context.Context, shared.Event) error {
		calls++
		return errors.New("boom")
	}))
	require.NoError(t, bus.SubscribeAll(func(context.Context, shared.Event) error {
		calls++
		panic("kaput")
	}))
	require.NoError(t, bus.SubscribeAll(func(context.Context, shared.Event) error {
		calls++
		return nil
	}))

	err := bus.Publish(context.Background(), shared.NewScoreRecordedEvent(1, 2, "Math", 90, "Science", true))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	assert.Equal(t, 1.0, testutil.ToFloat64(bus.metrics.published.WithLabelValues(string(shared.EventScoreRecorded))))
	assert.Equal(t, 2.0, testutil.ToFloat64(bus.metrics.handlerRuns.WithLabelValues(string(shared.EventScoreRecorded), "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(bus.metrics.handlerRuns.WithLabelValues(string(shared.EventScoreRecorded), "success")))
}

func TestInMemoryEventBus_AsyncWaitsOnClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var handled atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(ctx context.Context, _ shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, bus.Publish(ctx, shared.NewStudentCreatedEvent(i, "S", "D")))
	}
	cancel()

	require.NoError(t, bus.Close())
	assert.Equal(t, int32(5), handled.Load())
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	noop := func(context.Context, shared.Event) error { return nil }
	assert.ErrorIs(t, bus.Subscribe(shared.EventStudentCreated, noop), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(noop), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Publish(context.Background(), shared.NewStudentCreatedEvent(1, "A", "B")), ErrEventBusClosed)
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	assert.Error(t, bus.Subscribe(shared.EventStudentCreated, nil))
	assert.Error(t, bus.SubscribeAll(nil))
	assert.Error(t, bus.Publish(context.Background(), nil))
}

func TestInMemoryEventBus_ConcurrentPublish(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	var count atomic.Int64
	require.NoError(t, bus.Subscribe(shared.EventScoreRecorded, func(context.Context, shared.Event) error {
		count.Add(1)
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = bus.Publish(context.Background(), shared.NewScoreRecordedEvent(id, id, "Art", 50, "D", true))
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, int64(20), count.Load())
}
