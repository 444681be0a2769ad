package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/persistence"
)

// DefinitionRepository handles definition-related file operations.
type DefinitionRepository struct {
	root string
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(root string) *DefinitionRepository {
	return &DefinitionRepository{root: root}
}

func (dr *DefinitionRepository) dir() string {
	return filepath.Join(dr.root, "definitions")
}

// Save persists a definition. Deployed definitions are immutable: saving
// over an existing id fails.
func (dr *DefinitionRepository) Save(ctx context.Context, def *models.ProcessDefinition) error {
	if err := validateID(def.ID); err != nil {
		return fmt.Errorf("invalid definition ID: %w", err)
	}

	if _, err := os.Stat(filepath.Join(dr.dir(), def.ID+".json")); err == nil {
		return persistence.ErrDefinitionExists
	}

	return writeDocument(dr.dir(), def.ID, def)
}

// GetByID retrieves a definition by its id.
func (dr *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.ProcessDefinition, error) {
	var def models.ProcessDefinition

	err := readDocument(dr.dir(), id, &def)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrDefinitionNotFound
		}

		return nil, fmt.Errorf("failed to read definition %s: %w", id, err)
	}

	return &def, nil
}

// List returns all deployed definitions ordered by creation time.
func (dr *DefinitionRepository) List(ctx context.Context) ([]*models.ProcessDefinition, error) {
	ids, err := listDocuments(dr.dir())
	if err != nil {
		return nil, err
	}

	defs := make([]*models.ProcessDefinition, 0, len(ids))

	for _, id := range ids {
		def, err := dr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool {
		return defs[i].CreatedAt.Before(defs[j].CreatedAt)
	})

	return defs, nil
}

// Delete removes a definition record. In-flight instances keep working
// from the copy they were hydrated with.
func (dr *DefinitionRepository) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return fmt.Errorf("invalid definition ID: %w", err)
	}

	err := os.Remove(filepath.Join(dr.dir(), id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrDefinitionNotFound
		}

		return fmt.Errorf("failed to delete definition %s: %w", id, err)
	}

	return nil
}
