package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/caseway/caseway/pkg/channels/gochannel"
	"github.com/caseway/caseway/pkg/eventbus"
	"github.com/caseway/caseway/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		require.NoError(t, bus.Close())
	})

	return bus
}

func TestPublishAndHandleRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := newTestBus(t)

	received := make(chan *events.TaskCreated, 1)

	err := bus.Handle(events.TaskCreatedEvent, func(_ context.Context, event any) error {
		created, ok := event.(*events.TaskCreated)
		require.True(t, ok)
		received <- created

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	due := time.Now().UTC().AddDate(0, 0, 3).Truncate(time.Second)
	err = bus.Publish(ctx, "instance-1", events.TaskCreated{
		BaseEvent: events.BaseEvent{
			ID:           bus.GenerateID(),
			Type:         events.TaskCreatedEvent,
			Timestamp:    time.Now().UTC(),
			InstanceID:   "instance-1",
			DefinitionID: "def-1",
		},
		TaskID:  "task-1",
		StepID:  "approve",
		Title:   "Approve request",
		DueDate: due,
	})
	require.NoError(t, err)

	select {
	case created := <-received:
		assert.Equal(t, "task-1", created.TaskID)
		assert.Equal(t, "approve", created.StepID)
		assert.Equal(t, "instance-1", created.InstanceID)
		assert.Equal(t, events.TaskCreatedEvent, created.GetType())
		assert.True(t, due.Equal(created.DueDate))
	case <-time.After(3 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestUnhandledEventTypeIsAcked(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := newTestBus(t)

	received := make(chan *events.InstanceCompleted, 1)

	err := bus.Handle(events.InstanceCompletedEvent, func(_ context.Context, event any) error {
		completed, ok := event.(*events.InstanceCompleted)
		require.True(t, ok)
		received <- completed

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	// An event nobody handles must not wedge the subscription.
	err = bus.Publish(ctx, "instance-1", events.StepCompleted{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.StepCompletedEvent,
			Timestamp:  time.Now().UTC(),
			InstanceID: "instance-1",
		},
		StepID: "s",
	})
	require.NoError(t, err)

	err = bus.Publish(ctx, "instance-1", events.InstanceCompleted{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.InstanceCompletedEvent,
			Timestamp:  time.Now().UTC(),
			InstanceID: "instance-1",
		},
		Duration: time.Minute,
	})
	require.NoError(t, err)

	select {
	case completed := <-received:
		assert.Equal(t, "instance-1", completed.InstanceID)
		assert.Equal(t, time.Minute, completed.Duration)
	case <-time.After(3 * time.Second):
		t.Fatal("event was not delivered")
	}
}
