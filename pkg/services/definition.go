package services

import (
	"context"
	"fmt"
	"time"

	"github.com/caseway/caseway/pkg/expr"
	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrDefinitionNotFound is returned when a definition is not found.
var ErrDefinitionNotFound = persistence.ErrDefinitionNotFound

// Definition deploys and serves process definitions. Definitions are
// validated at deploy time so the engine never sees a malformed graph;
// in particular every guard expression must parse before the definition
// is accepted.
type Definition struct {
	persistence persistence.Persistence
	validate    *validator.Validate
}

// NewDefinition creates a new definition service.
func NewDefinition(p persistence.Persistence) *Definition {
	return &Definition{
		persistence: p,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Definition) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Deploy validates and stores a new definition. The deployed definition
// is immutable; redeploying a changed graph is a new definition with a
// bumped version.
func (s *Definition) Deploy(ctx context.Context, def *models.ProcessDefinition) (*models.ProcessDefinition, error) {
	if def == nil {
		return nil, ErrDefinitionNil
	}

	def.ID = uuid.New().String()
	if def.Version == 0 {
		def.Version = 1
	}

	def.Active = true
	now := time.Now().UTC()
	def.CreatedAt = now
	def.DeployedAt = &now

	if err := s.validateDefinition(def); err != nil {
		return nil, err
	}

	if err := s.persistence.DefinitionRepository().Save(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to deploy definition: %w", err)
	}

	return def, nil
}

// FetchByID retrieves a definition by its ID.
func (s *Definition) FetchByID(ctx context.Context, id string) (*models.ProcessDefinition, error) {
	def, err := s.persistence.DefinitionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return def, nil
}

// List retrieves all deployed definitions.
func (s *Definition) List(ctx context.Context) ([]*models.ProcessDefinition, error) {
	defs, err := s.persistence.DefinitionRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}

	return defs, nil
}

// Delete removes a definition by its ID. Running instances keep working
// from their own copy of the graph until they next advance.
func (s *Definition) Delete(ctx context.Context, id string) error {
	return s.persistence.DefinitionRepository().Delete(ctx, id)
}

// validateDefinition checks structural soundness beyond struct tags:
// unique step ids, a single start step, links anchored to known steps
// and parseable guards.
func (s *Definition) validateDefinition(def *models.ProcessDefinition) error {
	if err := s.validate.Struct(def); err != nil {
		return NewValidationError("Deploy", "INVALID_DEFINITION", err.Error(), ErrInvalidDefinition)
	}

	if len(def.Steps) == 0 {
		return ErrStepsRequired
	}

	seen := make(map[string]bool, len(def.Steps))

	for _, step := range def.Steps {
		if seen[step.ID] {
			return NewValidationError("Deploy", "DUPLICATE_STEP_ID",
				fmt.Sprintf("step id %q appears more than once", step.ID), ErrDuplicateStepID)
		}

		seen[step.ID] = true

		if !step.Kind.Valid() {
			return NewValidationError("Deploy", "INVALID_STEP_KIND",
				fmt.Sprintf("step %q has unknown kind %q", step.ID, step.Kind), ErrInvalidStepKind)
		}
	}

	if _, err := def.StartStep(); err != nil {
		return err
	}

	for _, link := range def.Links {
		if !seen[link.SourceID] || !seen[link.TargetID] {
			return NewValidationError("Deploy", "UNKNOWN_LINK_ENDPOINT",
				fmt.Sprintf("link %s -> %s references an unknown step", link.SourceID, link.TargetID),
				ErrUnknownLinkEndpoint)
		}

		if link.Guard != "" {
			if _, err := expr.Parse(link.Guard); err != nil {
				return NewValidationError("Deploy", "INVALID_GUARD",
					fmt.Sprintf("guard on link %s -> %s: %v", link.SourceID, link.TargetID, err),
					ErrInvalidGuard)
			}
		}
	}

	return nil
}
