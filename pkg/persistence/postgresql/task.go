package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/persistence"
)

// TaskRepository handles work-item database operations.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

const taskColumns = `
			id
		  , title
		  , instance_id
		  , step_id
		  , assignee
		  , candidate_roles
		  , candidate_groups
		  , due_date
		  , status
		  , priority
		  , data
		  , created_at
		  , completed_at
`

// GetByID returns a task by its id.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE id = $1"

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTaskNotFound
		}

		return nil, persistence.NewTaskError("GetByID", id, err)
	}

	return task, nil
}

// Save upserts a task row.
func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewTaskError("Save", task.ID, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = insertTask(ctx, tx, task)
	if err != nil {
		return persistence.NewTaskError("Save", task.ID, err)
	}

	err = tx.Commit()
	if err != nil {
		return persistence.NewTaskError("Save", task.ID, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// ListByInstance returns all tasks of one instance, oldest first.
func (r *TaskRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE instance_id = $1 ORDER BY created_at ASC"

	return r.queryTasks(ctx, query, instanceID)
}

// ListOverdue returns open tasks whose due date passed before the given
// time.
func (r *TaskRepository) ListOverdue(ctx context.Context, before time.Time) ([]*models.Task, error) {
	query := "SELECT " + taskColumns + ` FROM tasks
		WHERE status IN ('pending', 'claimed', 'in_progress') AND due_date < $1
		ORDER BY due_date ASC`

	return r.queryTasks(ctx, query, before)
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, task)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// insertTask upserts a task within an existing transaction so new work
// items commit together with their instance update.
func insertTask(ctx context.Context, tx *sql.Tx, task *models.Task) error {
	rolesJSON, err := json.Marshal(task.CandidateRoles)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate roles: %w", err)
	}

	groupsJSON, err := json.Marshal(task.CandidateGroups)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate groups: %w", err)
	}

	dataJSON, err := json.Marshal(task.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal task data: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, title, instance_id, step_id, assignee, candidate_roles, candidate_groups, due_date, status, priority, data, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			assignee = EXCLUDED.assignee,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			data = EXCLUDED.data,
			completed_at = EXCLUDED.completed_at
	`, task.ID, task.Title, task.InstanceID, task.StepID, task.Assignee,
		rolesJSON, groupsJSON, task.DueDate, task.Status, task.Priority,
		dataJSON, task.CreatedAt, task.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	return nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task       models.Task
		assignee   sql.NullString
		rolesJSON  []byte
		groupsJSON []byte
		dataJSON   []byte
	)

	err := row.Scan(&task.ID, &task.Title, &task.InstanceID, &task.StepID, &assignee,
		&rolesJSON, &groupsJSON, &task.DueDate, &task.Status, &task.Priority,
		&dataJSON, &task.CreatedAt, &task.CompletedAt)
	if err != nil {
		return nil, err
	}

	task.Assignee = assignee.String

	if len(rolesJSON) > 0 {
		if err := json.Unmarshal(rolesJSON, &task.CandidateRoles); err != nil {
			return nil, fmt.Errorf("failed to unmarshal candidate roles: %w", err)
		}
	}

	if len(groupsJSON) > 0 {
		if err := json.Unmarshal(groupsJSON, &task.CandidateGroups); err != nil {
			return nil, fmt.Errorf("failed to unmarshal candidate groups: %w", err)
		}
	}

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &task.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task data: %w", err)
		}
	}

	return &task, nil
}
