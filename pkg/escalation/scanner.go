// Package escalation provides the overdue work item scanner. It runs on
// a cron schedule, raises the priority of tasks past their due date and
// notifies interested collaborators. It never advances an instance:
// escalation changes task metadata only.
package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caseway/caseway/pkg/eventbus"
	"github.com/caseway/caseway/pkg/events"
	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/otelhelper"
	"github.com/caseway/caseway/pkg/persistence"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
)

// DefaultSchedule scans every 15 minutes.
const DefaultSchedule = "*/15 * * * *"

type Scanner struct {
	persistence persistence.Persistence
	bus         eventbus.EventPublisher
	logger      *slog.Logger
	cron        *cron.Cron
	schedule    string
}

// NewScanner creates a scanner with the given cron schedule. An empty
// schedule uses DefaultSchedule. The event bus is optional.
func NewScanner(p persistence.Persistence, bus eventbus.EventPublisher, logger *slog.Logger, schedule string) (*Scanner, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid escalation schedule %q: %w", schedule, err)
	}

	return &Scanner{
		persistence: p,
		bus:         bus,
		logger:      logger.With("module", "escalation"),
		schedule:    schedule,
	}, nil
}

// Start begins periodic scanning. It returns immediately; scans run on
// the cron's own goroutine until Stop is called.
func (s *Scanner) Start(ctx context.Context) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Scan(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Escalation scan failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule escalation scan: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Escalation scanner started", "schedule", s.schedule)

	return nil
}

// Stop halts scanning and waits for a running scan to finish.
func (s *Scanner) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Scan bumps every overdue open task that is not yet high priority and
// emits a TaskEscalated event for it. Tasks already escalated are left
// alone so repeated scans stay idempotent.
func (s *Scanner) Scan(ctx context.Context) error {
	ctx, span := otelhelper.StartSpan(ctx, otel.Tracer("caseway/escalation"), "escalation.scan")
	defer span.End()

	now := time.Now().UTC()

	overdue, err := s.persistence.TaskRepository().ListOverdue(ctx, now)
	if err != nil {
		err = fmt.Errorf("failed to list overdue tasks: %w", err)
		otelhelper.SetError(span, err)

		return err
	}

	escalated := 0

	for _, task := range overdue {
		if task.Priority == models.TaskPriorityHigh {
			continue
		}

		task.Priority = models.TaskPriorityHigh

		if err := s.persistence.TaskRepository().Save(ctx, task); err != nil {
			s.logger.ErrorContext(ctx, "Failed to escalate task",
				"task_id", task.ID, "instance_id", task.InstanceID, "error", err)

			continue
		}

		escalated++

		s.logger.WarnContext(ctx, "Task escalated",
			"task_id", task.ID, "instance_id", task.InstanceID, "due_date", task.DueDate)

		if s.bus != nil {
			event := events.TaskEscalated{
				BaseEvent: events.BaseEvent{
					ID:         uuid.New().String(),
					Type:       events.TaskEscalatedEvent,
					Timestamp:  now,
					InstanceID: task.InstanceID,
				},
				TaskID:   task.ID,
				Priority: task.Priority,
				DueDate:  task.DueDate,
			}
			if err := s.bus.Publish(ctx, task.InstanceID, event); err != nil {
				s.logger.WarnContext(ctx, "Failed to publish escalation event",
					"task_id", task.ID, "error", err)
			}
		}
	}

	if escalated > 0 {
		s.logger.InfoContext(ctx, "Escalation scan finished", "escalated", escalated)
	}

	return nil
}
