// Package engine implements the process scheduler: it walks the process
// graph, materializes work items for human steps, fast-forwards through
// automated steps and records every transition in the instance history.
//
// The engine holds no state between calls. Each entry point rehydrates
// the instance from persistence, mutates it under a per-instance lock and
// commits state, history and new tasks as one atomic unit.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caseway/caseway/pkg/eventbus"
	"github.com/caseway/caseway/pkg/events"
	"github.com/caseway/caseway/pkg/locks"
	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/otelhelper"
	"github.com/caseway/caseway/pkg/persistence"
	"github.com/caseway/caseway/pkg/protocol"
	"github.com/caseway/caseway/pkg/registry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxAutoHops caps automated fast-forwarding per external trigger so a
// cyclic automated-only chain cannot spin forever.
const maxAutoHops = 64

// Config wires the engine's collaborators. EventBus and Directory are
// optional; Locker, Logger and Tracer default when nil. The default
// tracer is the process-global one, a no-op until a provider is
// installed by the binary.
type Config struct {
	Persistence persistence.Persistence
	Registry    *registry.Registry
	EventBus    eventbus.EventPublisher
	Directory   protocol.DirectoryLookup
	Locker      locks.Locker
	Logger      *slog.Logger
	Tracer      trace.Tracer
}

type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	bus         eventbus.EventPublisher
	directory   protocol.DirectoryLookup
	locker      locks.Locker
	logger      *slog.Logger
	tracer      trace.Tracer
}

func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	locker := cfg.Locker
	if locker == nil {
		locker = locks.NewMemoryLocker()
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("caseway/engine")
	}

	return &Engine{
		persistence: cfg.Persistence,
		registry:    cfg.Registry,
		bus:         cfg.EventBus,
		directory:   cfg.Directory,
		locker:      locker,
		logger:      logger.With("module", "engine"),
		tracer:      tracer,
	}
}

// transition accumulates the outcome of one entry-point call: the history
// entries and tasks to commit with the instance, and the events to publish
// once the commit succeeds.
type transition struct {
	entries []models.HistoryEntry
	tasks   []*models.Task
	events  []eventbus.Event
}

func (t *transition) record(entry models.HistoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	t.entries = append(t.entries, entry)
}

// StartInstance creates and starts a new instance of a definition. The
// definition must be active and contain exactly one start step; otherwise
// no instance is created.
func (e *Engine) StartInstance(ctx context.Context, definitionID string, variables map[string]any) (string, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.start_instance",
		attribute.String(otelhelper.DefinitionIDKey, definitionID))
	defer span.End()

	def, err := e.persistence.DefinitionRepository().GetByID(ctx, definitionID)
	if err != nil {
		err = fmt.Errorf("failed to load definition %s: %w", definitionID, err)
		otelhelper.SetError(span, err)

		return "", err
	}

	if !def.Active {
		return "", fmt.Errorf("definition %s: %w", definitionID, ErrDefinitionInactive)
	}

	start, err := def.StartStep()
	if err != nil {
		return "", fmt.Errorf("definition %s: %w", definitionID, err)
	}

	instance := &models.ProcessInstance{
		ID:                uuid.New().String(),
		DefinitionID:      def.ID,
		DefinitionVersion: def.Version,
		Status:            models.InstanceStatusActive,
		ActiveStepIDs:     []string{start.ID},
		Variables:         variables,
		CreatedAt:         time.Now().UTC(),
	}

	unlock, err := e.locker.Acquire(ctx, instance.ID)
	if err != nil {
		return "", err
	}
	defer unlock()

	tr := &transition{}
	tr.record(models.HistoryEntry{
		StepID:   start.ID,
		StepName: start.Name,
		Action:   models.ActionStarted,
	})
	tr.events = append(tr.events, events.InstanceStarted{
		BaseEvent: e.baseEvent(events.InstanceStartedEvent, instance),
		Variables: variables,
	})

	span.SetAttributes(attribute.String(otelhelper.InstanceIDKey, instance.ID))

	e.traverse(ctx, instance, def, start.ID, tr)

	if err := e.commit(ctx, instance, tr); err != nil {
		otelhelper.SetError(span, err)

		return "", err
	}

	e.logger.InfoContext(ctx, "Instance started",
		"instance_id", instance.ID, "definition_id", def.ID)

	return instance.ID, nil
}

// Advance moves an instance past a completed step. Calls against missing,
// finished or suspended instances, or against step ids no longer present
// in the definition, are safely ignored.
func (e *Engine) Advance(ctx context.Context, instanceID, completedStepID string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.advance",
		attribute.String(otelhelper.InstanceIDKey, instanceID),
		attribute.String(otelhelper.StepIDKey, completedStepID))
	defer span.End()

	unlock, err := e.locker.Acquire(ctx, instanceID)
	if err != nil {
		return err
	}
	defer unlock()

	instance, def, ok, err := e.loadForAdvance(ctx, instanceID, completedStepID)
	if err != nil || !ok {
		if err != nil {
			otelhelper.SetError(span, err)
		}

		return err
	}

	tr := &transition{}
	e.traverse(ctx, instance, def, completedStepID, tr)

	if err := e.commit(ctx, instance, tr); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

// CompleteTask closes a work item, merges its outcome into the instance
// variable bag and advances past the task's step. The task completion,
// the instance state and the audit entries commit together.
func (e *Engine) CompleteTask(ctx context.Context, taskID string, outcome map[string]any) error {
	return e.closeTask(ctx, taskID, outcome, "")
}

// CompleteTaskAs is CompleteTask with the acting user recorded in the
// audit trail.
func (e *Engine) CompleteTaskAs(ctx context.Context, taskID, performer string, outcome map[string]any) error {
	return e.closeTask(ctx, taskID, outcome, performer)
}

func (e *Engine) closeTask(ctx context.Context, taskID string, outcome map[string]any, performer string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.complete_task",
		attribute.String(otelhelper.TaskIDKey, taskID))
	defer span.End()

	task, err := e.persistence.TaskRepository().GetByID(ctx, taskID)
	if err != nil {
		err = fmt.Errorf("failed to load task %s: %w", taskID, err)
		otelhelper.SetError(span, err)

		return err
	}

	unlock, err := e.locker.Acquire(ctx, task.InstanceID)
	if err != nil {
		return err
	}
	defer unlock()

	// Reload under the lock so a concurrent completion of the same task
	// is observed.
	task, err = e.persistence.TaskRepository().GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	if !task.IsOpen() {
		return fmt.Errorf("task %s: %w", taskID, ErrTaskNotOpen)
	}

	instance, err := e.persistence.InstanceRepository().GetByID(ctx, task.InstanceID)
	if err != nil {
		return fmt.Errorf("failed to load instance %s: %w", task.InstanceID, err)
	}

	if !instance.IsActive() {
		return fmt.Errorf("instance %s: %w", instance.ID, ErrInstanceNotActive)
	}

	def, err := e.persistence.DefinitionRepository().GetByID(ctx, instance.DefinitionID)
	if err != nil {
		return fmt.Errorf("failed to load definition %s: %w", instance.DefinitionID, err)
	}

	if def.StepByID(task.StepID) == nil || !instance.HasActiveStep(task.StepID) {
		e.logger.WarnContext(ctx, "Task references a step that is not active, ignoring completion",
			"task_id", taskID, "instance_id", instance.ID, "step_id", task.StepID)

		return nil
	}

	now := time.Now().UTC()
	instance.ApplyVariables(outcome)
	task.Complete(outcome, now)

	tr := &transition{tasks: []*models.Task{task}}
	tr.events = append(tr.events, events.TaskCompleted{
		BaseEvent: e.baseEvent(events.TaskCompletedEvent, instance),
		TaskID:    task.ID,
		StepID:    task.StepID,
		Performer: performer,
	})

	span.SetAttributes(attribute.String(otelhelper.InstanceIDKey, instance.ID))

	e.traverse(ctx, instance, def, task.StepID, tr)

	if len(tr.entries) > 0 {
		tr.entries[0].Performer = performer
	}

	if err := e.commit(ctx, instance, tr); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

// TerminateInstance is the administrative kill switch. It bypasses graph
// traversal; outstanding tasks remain but can no longer advance the
// instance. Terminating a finished instance is a no-op.
func (e *Engine) TerminateInstance(ctx context.Context, instanceID, reason string) error {
	unlock, err := e.locker.Acquire(ctx, instanceID)
	if err != nil {
		return err
	}
	defer unlock()

	instance, err := e.persistence.InstanceRepository().GetByID(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("failed to load instance %s: %w", instanceID, err)
	}

	switch instance.Status {
	case models.InstanceStatusCompleted, models.InstanceStatusTerminated:
		return nil
	case models.InstanceStatusActive, models.InstanceStatusSuspended:
	}

	instance.MarkTerminated(reason, time.Now().UTC())

	tr := &transition{}
	tr.record(models.HistoryEntry{Action: models.ActionTerminated, Comment: reason})
	tr.events = append(tr.events, events.InstanceTerminated{
		BaseEvent: e.baseEvent(events.InstanceTerminatedEvent, instance),
		Reason:    reason,
	})

	return e.commit(ctx, instance, tr)
}

// SuspendInstance pauses an active instance. Dormant branches stay where
// they are; task completions are rejected until the instance is resumed.
func (e *Engine) SuspendInstance(ctx context.Context, instanceID string) error {
	unlock, err := e.locker.Acquire(ctx, instanceID)
	if err != nil {
		return err
	}
	defer unlock()

	instance, err := e.persistence.InstanceRepository().GetByID(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("failed to load instance %s: %w", instanceID, err)
	}

	if !instance.IsActive() {
		return fmt.Errorf("instance %s: %w", instanceID, ErrInstanceNotActive)
	}

	instance.MarkSuspended()

	tr := &transition{}
	tr.record(models.HistoryEntry{Action: models.ActionSuspended})
	tr.events = append(tr.events, events.InstanceSuspended{
		BaseEvent: e.baseEvent(events.InstanceSuspendedEvent, instance),
	})

	return e.commit(ctx, instance, tr)
}

// ResumeInstance reactivates a suspended instance. No traversal happens;
// the instance simply becomes able to accept task completions again.
func (e *Engine) ResumeInstance(ctx context.Context, instanceID string) error {
	unlock, err := e.locker.Acquire(ctx, instanceID)
	if err != nil {
		return err
	}
	defer unlock()

	instance, err := e.persistence.InstanceRepository().GetByID(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("failed to load instance %s: %w", instanceID, err)
	}

	if instance.Status != models.InstanceStatusSuspended {
		return fmt.Errorf("instance %s: %w", instanceID, ErrInstanceNotSuspended)
	}

	instance.MarkResumed()

	tr := &transition{}
	tr.record(models.HistoryEntry{Action: models.ActionResumed})
	tr.events = append(tr.events, events.InstanceResumed{
		BaseEvent: e.baseEvent(events.InstanceResumedEvent, instance),
	})

	return e.commit(ctx, instance, tr)
}

// loadForAdvance rehydrates the instance and definition for Advance and
// applies the defensive guards: missing records, non-active instances and
// stale step references all end the call as a logged no-op.
func (e *Engine) loadForAdvance(ctx context.Context, instanceID, completedStepID string) (*models.ProcessInstance, *models.ProcessDefinition, bool, error) {
	instance, err := e.persistence.InstanceRepository().GetByID(ctx, instanceID)
	if err != nil {
		if persistence.IsInstanceNotFound(err) {
			e.logger.WarnContext(ctx, "Advance called for unknown instance, ignoring",
				"instance_id", instanceID)

			return nil, nil, false, nil
		}

		return nil, nil, false, fmt.Errorf("failed to load instance %s: %w", instanceID, err)
	}

	if !instance.IsActive() {
		e.logger.DebugContext(ctx, "Advance called for non-active instance, ignoring",
			"instance_id", instanceID, "status", instance.Status)

		return nil, nil, false, nil
	}

	def, err := e.persistence.DefinitionRepository().GetByID(ctx, instance.DefinitionID)
	if err != nil {
		if persistence.IsDefinitionNotFound(err) {
			e.logger.WarnContext(ctx, "Instance references unknown definition, ignoring advance",
				"instance_id", instanceID, "definition_id", instance.DefinitionID)

			return nil, nil, false, nil
		}

		return nil, nil, false, fmt.Errorf("failed to load definition %s: %w", instance.DefinitionID, err)
	}

	if def.StepByID(completedStepID) == nil || !instance.HasActiveStep(completedStepID) {
		e.logger.WarnContext(ctx, "Stale step reference, ignoring advance",
			"instance_id", instanceID, "step_id", completedStepID)

		return nil, nil, false, nil
	}

	return instance, def, true, nil
}

// commit persists the accumulated transition atomically, then publishes
// its events. A persistence failure surfaces loudly and nothing partial
// is committed; publish failures are logged and swallowed.
func (e *Engine) commit(ctx context.Context, instance *models.ProcessInstance, tr *transition) error {
	var err error
	if len(tr.tasks) > 0 {
		err = e.persistence.InstanceRepository().SaveWithTasks(ctx, instance, tr.tasks, tr.entries...)
	} else {
		err = e.persistence.InstanceRepository().Save(ctx, instance, tr.entries...)
	}

	if err != nil {
		return fmt.Errorf("failed to persist instance %s: %w", instance.ID, err)
	}

	e.publish(ctx, instance.ID, tr.events)

	return nil
}

func (e *Engine) publish(ctx context.Context, key string, evts []eventbus.Event) {
	if e.bus == nil {
		return
	}

	for _, event := range evts {
		if err := e.bus.Publish(ctx, key, event); err != nil {
			e.logger.WarnContext(ctx, "Failed to publish event",
				"event_type", event.GetType(), "instance_id", key, "error", err)
		}
	}
}

func (e *Engine) baseEvent(eventType events.EventType, instance *models.ProcessInstance) events.BaseEvent {
	return events.BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		InstanceID:   instance.ID,
		DefinitionID: instance.DefinitionID,
	}
}
