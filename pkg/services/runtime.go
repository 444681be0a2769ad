package services

import (
	"context"
	"fmt"

	"github.com/caseway/caseway/pkg/engine"
	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/persistence"
)

// Runtime exposes the engine's entry points plus the read and work-queue
// operations a work-item UI needs. Graph traversal stays entirely inside
// the engine; this layer only adds claim/release semantics on tasks.
type Runtime struct {
	persistence persistence.Persistence
	engine      *engine.Engine
}

// NewRuntime creates a new runtime service.
func NewRuntime(p persistence.Persistence, eng *engine.Engine) *Runtime {
	return &Runtime{persistence: p, engine: eng}
}

// Start creates and starts a new instance of a definition.
func (s *Runtime) Start(ctx context.Context, definitionID string, variables map[string]any) (*models.ProcessInstance, error) {
	instanceID, err := s.engine.StartInstance(ctx, definitionID, variables)
	if err != nil {
		return nil, err
	}

	return s.persistence.InstanceRepository().GetByID(ctx, instanceID)
}

// FetchInstance retrieves an instance with its history.
func (s *Runtime) FetchInstance(ctx context.Context, id string) (*models.ProcessInstance, error) {
	return s.persistence.InstanceRepository().GetByID(ctx, id)
}

// ListInstances retrieves instances by status.
func (s *Runtime) ListInstances(ctx context.Context, status models.InstanceStatus) ([]*models.ProcessInstance, error) {
	return s.persistence.InstanceRepository().ListByStatus(ctx, status)
}

// ListTasks retrieves all tasks of one instance.
func (s *Runtime) ListTasks(ctx context.Context, instanceID string) ([]*models.Task, error) {
	return s.persistence.TaskRepository().ListByInstance(ctx, instanceID)
}

// FetchTask retrieves a task by its ID.
func (s *Runtime) FetchTask(ctx context.Context, id string) (*models.Task, error) {
	return s.persistence.TaskRepository().GetByID(ctx, id)
}

// ClaimTask assigns an open unassigned task to a user.
func (s *Runtime) ClaimTask(ctx context.Context, taskID, userID string) (*models.Task, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	task, err := s.persistence.TaskRepository().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !task.Claim(userID) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskNotClaimable)
	}

	if err := s.persistence.TaskRepository().Save(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task %s: %w", taskID, err)
	}

	return task, nil
}

// ReleaseTask returns a claimed task to the pool: still open, unassigned,
// claimable by any qualifying user. It does not touch the instance.
func (s *Runtime) ReleaseTask(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.persistence.TaskRepository().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !task.IsOpen() {
		return nil, fmt.Errorf("task %s: %w", taskID, engine.ErrTaskNotOpen)
	}

	task.Assignee = ""
	task.Status = models.TaskStatusPending

	if err := s.persistence.TaskRepository().Save(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task %s: %w", taskID, err)
	}

	return task, nil
}

// CompleteTask closes a work item with its outcome variables and advances
// the instance.
func (s *Runtime) CompleteTask(ctx context.Context, taskID, performer string, outcome map[string]any) error {
	return s.engine.CompleteTaskAs(ctx, taskID, performer, outcome)
}

// Terminate administratively ends an instance.
func (s *Runtime) Terminate(ctx context.Context, instanceID, reason string) error {
	return s.engine.TerminateInstance(ctx, instanceID, reason)
}

// Suspend pauses an active instance.
func (s *Runtime) Suspend(ctx context.Context, instanceID string) error {
	return s.engine.SuspendInstance(ctx, instanceID)
}

// Resume reactivates a suspended instance.
func (s *Runtime) Resume(ctx context.Context, instanceID string) error {
	return s.engine.ResumeInstance(ctx, instanceID)
}
