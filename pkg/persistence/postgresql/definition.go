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
	"github.com/lib/pq"
)

// DefinitionRepository handles definition-related database operations.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

// Save inserts a deployed definition. Deployed definitions are immutable;
// inserting over an existing id fails with ErrDefinitionExists.
func (r *DefinitionRepository) Save(ctx context.Context, def *models.ProcessDefinition) error {
	stepsJSON, err := json.Marshal(def.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	linksJSON, err := json.Marshal(def.Links)
	if err != nil {
		return fmt.Errorf("failed to marshal links: %w", err)
	}

	query := `
		INSERT INTO definitions (id, name, version, steps, links, active, compliance, created_at, deployed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		def.ID, def.Name, def.Version, stepsJSON, linksJSON,
		def.Active, def.Compliance, def.CreatedAt, def.DeployedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return persistence.ErrDefinitionExists
		}

		return fmt.Errorf("failed to insert definition: %w", err)
	}

	return nil
}

// GetByID returns a definition by its id.
func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.ProcessDefinition, error) {
	query := `
		SELECT
			id
		  , name
		  , version
		  , steps
		  , links
		  , active
		  , compliance
		  , created_at
		  , deployed_at
		FROM definitions
		WHERE id = $1
	`

	def, err := r.scanDefinition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrDefinitionNotFound
		}

		return nil, fmt.Errorf("failed to scan definition: %w", err)
	}

	return def, nil
}

// List returns all deployed definitions, oldest first.
func (r *DefinitionRepository) List(ctx context.Context) ([]*models.ProcessDefinition, error) {
	query := `
		SELECT
			id
		  , name
		  , version
		  , steps
		  , links
		  , active
		  , compliance
		  , created_at
		  , deployed_at
		FROM definitions
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	defs := make([]*models.ProcessDefinition, 0)

	for rows.Next() {
		def, err := r.scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}

		defs = append(defs, def)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating definitions: %w", err)
	}

	return defs, nil
}

// Delete removes a definition record.
func (r *DefinitionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM definitions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrDefinitionNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *DefinitionRepository) scanDefinition(row rowScanner) (*models.ProcessDefinition, error) {
	var (
		def        models.ProcessDefinition
		stepsJSON  []byte
		linksJSON  []byte
		compliance sql.NullString
	)

	err := row.Scan(&def.ID, &def.Name, &def.Version, &stepsJSON, &linksJSON,
		&def.Active, &compliance, &def.CreatedAt, &def.DeployedAt)
	if err != nil {
		return nil, err
	}

	if compliance.Valid {
		def.Compliance = models.ComplianceClass(compliance.String)
	}

	if err := json.Unmarshal(stepsJSON, &def.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	if err := json.Unmarshal(linksJSON, &def.Links); err != nil {
		return nil, fmt.Errorf("failed to unmarshal links: %w", err)
	}

	return &def, nil
}
