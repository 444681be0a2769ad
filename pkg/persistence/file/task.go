package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/persistence"
)

// TaskRepository handles work-item file operations.
type TaskRepository struct {
	root string
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(root string) *TaskRepository {
	return &TaskRepository{root: root}
}

func (tr *TaskRepository) dir() string {
	return filepath.Join(tr.root, "tasks")
}

// GetByID retrieves a task by its id.
func (tr *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task

	err := readDocument(tr.dir(), id, &task)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrTaskNotFound
		}

		return nil, persistence.NewTaskError("GetByID", id, err)
	}

	return &task, nil
}

// Save persists a task document.
func (tr *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	if err := validateID(task.ID); err != nil {
		return persistence.NewTaskError("Save", task.ID, fmt.Errorf("invalid task ID: %w", err))
	}

	if err := writeDocument(tr.dir(), task.ID, task); err != nil {
		return persistence.NewTaskError("Save", task.ID, err)
	}

	return nil
}

// ListByInstance returns all tasks belonging to one instance, oldest
// first.
func (tr *TaskRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.Task, error) {
	return tr.list(ctx, func(task *models.Task) bool {
		return task.InstanceID == instanceID
	})
}

// ListOverdue returns open tasks whose due date passed before the given
// time.
func (tr *TaskRepository) ListOverdue(ctx context.Context, before time.Time) ([]*models.Task, error) {
	return tr.list(ctx, func(task *models.Task) bool {
		return task.Overdue(before)
	})
}

func (tr *TaskRepository) list(ctx context.Context, keep func(*models.Task) bool) ([]*models.Task, error) {
	ids, err := listDocuments(tr.dir())
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.Task, 0)

	for _, id := range ids {
		task, err := tr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if keep(task) {
			tasks = append(tasks, task)
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}
