package file

import (
	"context"
	"os"
	"path/filepath"

	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/persistence"
)

// InstanceRepository handles instance-related file operations. History is
// embedded in the instance document, so the rename in writeDocument is
// the single commit point for state plus audit.
type InstanceRepository struct {
	root     string
	taskRepo *TaskRepository
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(root string, taskRepo *TaskRepository) *InstanceRepository {
	return &InstanceRepository{root: root, taskRepo: taskRepo}
}

func (ir *InstanceRepository) dir() string {
	return filepath.Join(ir.root, "instances")
}

// GetByID retrieves an instance by its id.
func (ir *InstanceRepository) GetByID(ctx context.Context, id string) (*models.ProcessInstance, error) {
	var instance models.ProcessInstance

	err := readDocument(ir.dir(), id, &instance)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrInstanceNotFound
		}

		return nil, persistence.NewInstanceError("GetByID", id, err)
	}

	return &instance, nil
}

// ListByStatus returns all instances in the given status.
func (ir *InstanceRepository) ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.ProcessInstance, error) {
	ids, err := listDocuments(ir.dir())
	if err != nil {
		return nil, err
	}

	instances := make([]*models.ProcessInstance, 0)

	for _, id := range ids {
		instance, err := ir.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if instance.Status == status {
			instances = append(instances, instance)
		}
	}

	return instances, nil
}

// Save appends the history entries to the instance and commits both in
// one document write.
func (ir *InstanceRepository) Save(ctx context.Context, instance *models.ProcessInstance, entries ...models.HistoryEntry) error {
	return ir.SaveWithTasks(ctx, instance, nil, entries...)
}

// SaveWithTasks persists new work items alongside the instance update.
// Task documents are written before the instance commit; when the
// instance commit fails they are removed again so no task exists for a
// transition that never happened. A process crash between the two
// writes can still leave such a task behind: the file store trades that
// window for simplicity, the postgres store commits both in one
// database transaction.
func (ir *InstanceRepository) SaveWithTasks(ctx context.Context, instance *models.ProcessInstance, tasks []*models.Task, entries ...models.HistoryEntry) error {
	if err := validateID(instance.ID); err != nil {
		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	for _, entry := range entries {
		instance.AppendHistory(entry)
	}

	written := make([]string, 0, len(tasks))

	for _, task := range tasks {
		if err := ir.taskRepo.Save(ctx, task); err != nil {
			ir.removeTasks(written)

			return persistence.NewInstanceError("SaveWithTasks", instance.ID, err)
		}

		written = append(written, task.ID)
	}

	if err := writeDocument(ir.dir(), instance.ID, instance); err != nil {
		ir.removeTasks(written)

		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	return nil
}

func (ir *InstanceRepository) removeTasks(ids []string) {
	for _, id := range ids {
		_ = os.Remove(filepath.Join(ir.taskRepo.dir(), id+".json"))
	}
}

var _ persistence.InstanceRepository = (*InstanceRepository)(nil)
