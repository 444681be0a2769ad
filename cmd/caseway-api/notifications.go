package main

import (
	"context"
	"log/slog"

	"github.com/caseway/caseway/pkg/eventbus"
	"github.com/caseway/caseway/pkg/events"
)

// startNotificationSink subscribes to the lifecycle events that matter
// to task owners and logs them. It stands in for a real notification
// transport; anything downstream (mail, chat) hangs off the same bus.
func startNotificationSink(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	sink := logger.With("module", "notifications")

	handlers := map[events.EventType]eventbus.EventHandler{
		events.TaskCreatedEvent: func(ctx context.Context, event any) error {
			created, ok := event.(*events.TaskCreated)
			if !ok {
				return nil
			}

			sink.InfoContext(ctx, "Work item created",
				"task_id", created.TaskID, "instance_id", created.InstanceID,
				"title", created.Title, "assignee", created.Assignee, "due_date", created.DueDate)

			return nil
		},
		events.TaskEscalatedEvent: func(ctx context.Context, event any) error {
			escalated, ok := event.(*events.TaskEscalated)
			if !ok {
				return nil
			}

			sink.WarnContext(ctx, "Work item overdue",
				"task_id", escalated.TaskID, "instance_id", escalated.InstanceID,
				"due_date", escalated.DueDate)

			return nil
		},
		events.InstanceCompletedEvent: func(ctx context.Context, event any) error {
			completed, ok := event.(*events.InstanceCompleted)
			if !ok {
				return nil
			}

			sink.InfoContext(ctx, "Instance completed",
				"instance_id", completed.InstanceID, "definition_id", completed.DefinitionID,
				"duration", completed.Duration)

			return nil
		},
		events.RoutingDeadEndEvent: func(ctx context.Context, event any) error {
			deadEnd, ok := event.(*events.RoutingDeadEnd)
			if !ok {
				return nil
			}

			sink.WarnContext(ctx, "Instance branch dead-ended",
				"instance_id", deadEnd.InstanceID, "step_id", deadEnd.StepID,
				"detail", deadEnd.Detail)

			return nil
		},
	}

	for eventType, handler := range handlers {
		if err := bus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}
