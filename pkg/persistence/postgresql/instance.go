package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/persistence"
)

// InstanceRepository handles instance-related database operations. The
// instance row, its new history rows and any new task rows are written in
// one transaction: the engine's atomicity contract.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(db *sql.DB, logger *slog.Logger) *InstanceRepository {
	return &InstanceRepository{db: db, logger: logger}
}

// GetByID returns an instance with its full history.
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.ProcessInstance, error) {
	query := `
		SELECT
			id
		  , definition_id
		  , definition_version
		  , status
		  , active_step_ids
		  , variables
		  , terminate_reason
		  , created_at
		  , completed_at
		FROM instances
		WHERE id = $1
	`

	instance, err := r.scanInstance(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrInstanceNotFound
		}

		return nil, persistence.NewInstanceError("GetByID", id, err)
	}

	err = r.loadHistory(ctx, instance)
	if err != nil {
		return nil, persistence.NewInstanceError("GetByID", id, err)
	}

	return instance, nil
}

// ListByStatus returns all instances in the given status, without
// history.
func (r *InstanceRepository) ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.ProcessInstance, error) {
	query := `
		SELECT
			id
		  , definition_id
		  , definition_version
		  , status
		  , active_step_ids
		  , variables
		  , terminate_reason
		  , created_at
		  , completed_at
		FROM instances
		WHERE status = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	instances := make([]*models.ProcessInstance, 0)

	for rows.Next() {
		instance, err := r.scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}

		instances = append(instances, instance)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return instances, nil
}

// Save upserts the instance row and inserts the history entries in one
// transaction.
func (r *InstanceRepository) Save(ctx context.Context, instance *models.ProcessInstance, entries ...models.HistoryEntry) error {
	return r.SaveWithTasks(ctx, instance, nil, entries...)
}

// SaveWithTasks additionally inserts new work items in the same
// transaction as the instance update and its audit rows.
func (r *InstanceRepository) SaveWithTasks(ctx context.Context, instance *models.ProcessInstance, tasks []*models.Task, entries ...models.HistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = r.upsertInstance(ctx, tx, instance)
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, err)
	}

	for _, entry := range entries {
		instance.AppendHistory(entry)
		recorded := instance.History[len(instance.History)-1]

		_, err = tx.ExecContext(ctx, `
			INSERT INTO instance_history (instance_id, step_id, step_name, action, performer, comment, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, instance.ID, recorded.StepID, recorded.StepName, recorded.Action, recorded.Performer, recorded.Comment, recorded.Timestamp)
		if err != nil {
			return persistence.NewInstanceError("Save", instance.ID, fmt.Errorf("failed to insert history entry: %w", err))
		}
	}

	for _, task := range tasks {
		err = insertTask(ctx, tx, task)
		if err != nil {
			return persistence.NewInstanceError("SaveWithTasks", instance.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return persistence.NewInstanceError("Save", instance.ID, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

func (r *InstanceRepository) upsertInstance(ctx context.Context, tx *sql.Tx, instance *models.ProcessInstance) error {
	activeJSON, err := json.Marshal(instance.ActiveStepIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal active step ids: %w", err)
	}

	variablesJSON, err := json.Marshal(instance.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO instances (id, definition_id, definition_version, status, active_step_ids, variables, terminate_reason, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			active_step_ids = EXCLUDED.active_step_ids,
			variables = EXCLUDED.variables,
			terminate_reason = EXCLUDED.terminate_reason,
			completed_at = EXCLUDED.completed_at
	`, instance.ID, instance.DefinitionID, instance.DefinitionVersion, instance.Status,
		activeJSON, variablesJSON, instance.TerminateReason, instance.CreatedAt, instance.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert instance: %w", err)
	}

	return nil
}

func (r *InstanceRepository) loadHistory(ctx context.Context, instance *models.ProcessInstance) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT step_id, step_name, action, performer, comment, recorded_at
		FROM instance_history
		WHERE instance_id = $1
		ORDER BY seq ASC
	`, instance.ID)
	if err != nil {
		return fmt.Errorf("failed to query history: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	instance.History = make([]models.HistoryEntry, 0)

	for rows.Next() {
		var (
			entry     models.HistoryEntry
			stepID    sql.NullString
			stepName  sql.NullString
			performer sql.NullString
			comment   sql.NullString
		)

		err := rows.Scan(&stepID, &stepName, &entry.Action, &performer, &comment, &entry.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to scan history entry: %w", err)
		}

		entry.StepID = stepID.String
		entry.StepName = stepName.String
		entry.Performer = performer.String
		entry.Comment = comment.String

		instance.History = append(instance.History, entry)
	}

	return rows.Err()
}

func (r *InstanceRepository) scanInstance(row rowScanner) (*models.ProcessInstance, error) {
	var (
		instance      models.ProcessInstance
		activeJSON    []byte
		variablesJSON []byte
		reason        sql.NullString
	)

	err := row.Scan(&instance.ID, &instance.DefinitionID, &instance.DefinitionVersion,
		&instance.Status, &activeJSON, &variablesJSON, &reason,
		&instance.CreatedAt, &instance.CompletedAt)
	if err != nil {
		return nil, err
	}

	instance.TerminateReason = reason.String

	if err := json.Unmarshal(activeJSON, &instance.ActiveStepIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal active step ids: %w", err)
	}

	if len(variablesJSON) > 0 {
		if err := json.Unmarshal(variablesJSON, &instance.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
		}
	}

	return &instance, nil
}
