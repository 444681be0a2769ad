// Package persistence provides the storage abstraction for process
// definitions, instances and work items.
package persistence

import (
	"context"
	"time"

	"github.com/caseway/caseway/pkg/models"
)

// Persistence aggregates the repositories of one storage backend.
type Persistence interface {
	DefinitionRepository() DefinitionRepository
	InstanceRepository() InstanceRepository
	TaskRepository() TaskRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DefinitionRepository stores deployed process definitions. Definitions
// are immutable once deployed; a new deployment is a new record.
type DefinitionRepository interface {
	Save(ctx context.Context, def *models.ProcessDefinition) error
	GetByID(ctx context.Context, id string) (*models.ProcessDefinition, error)
	List(ctx context.Context) ([]*models.ProcessDefinition, error)
	Delete(ctx context.Context, id string) error
}

// InstanceRepository stores process instances and their audit history.
//
// Save and SaveWithTasks are the engine's transaction boundary: the
// instance state, the supplied history entries and (for SaveWithTasks)
// the new work items commit together or not at all. Implementations
// append the entries to the instance before persisting so callers never
// see state without its correlated audit record.
type InstanceRepository interface {
	GetByID(ctx context.Context, id string) (*models.ProcessInstance, error)
	ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.ProcessInstance, error)
	Save(ctx context.Context, instance *models.ProcessInstance, entries ...models.HistoryEntry) error
	SaveWithTasks(ctx context.Context, instance *models.ProcessInstance, tasks []*models.Task, entries ...models.HistoryEntry) error
}

// TaskRepository stores work items.
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*models.Task, error)
	Save(ctx context.Context, task *models.Task) error
	ListByInstance(ctx context.Context, instanceID string) ([]*models.Task, error)
	ListOverdue(ctx context.Context, before time.Time) ([]*models.Task, error)
}
