// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/caseway/caseway/pkg/models"
	"github.com/google/uuid"
)

// CreateTestDefinition creates an active test ProcessDefinition with
// default values that can be overridden.
func CreateTestDefinition(overrides ...func(*models.ProcessDefinition)) *models.ProcessDefinition {
	def := &models.ProcessDefinition{
		ID:         uuid.New().String(),
		Name:       "Test Process",
		Version:    1,
		Active:     true,
		Compliance: models.ComplianceStandard,
		CreatedAt:  time.Now().UTC(),
	}

	for _, override := range overrides {
		override(def)
	}

	return def
}

// WithSteps sets the definition steps.
func WithSteps(steps ...models.Step) func(*models.ProcessDefinition) {
	return func(d *models.ProcessDefinition) {
		ptrs := make([]*models.Step, len(steps))
		for i := range steps {
			ptrs[i] = &steps[i]
		}
		d.Steps = ptrs
	}
}

// WithLinks sets the definition links.
func WithLinks(links ...models.Link) func(*models.ProcessDefinition) {
	return func(d *models.ProcessDefinition) {
		ptrs := make([]*models.Link, len(links))
		for i := range links {
			ptrs[i] = &links[i]
		}
		d.Links = ptrs
	}
}

// WithName sets the definition name.
func WithName(name string) func(*models.ProcessDefinition) {
	return func(d *models.ProcessDefinition) {
		d.Name = name
	}
}

// WithInactive marks the definition as not startable.
func WithInactive() func(*models.ProcessDefinition) {
	return func(d *models.ProcessDefinition) {
		d.Active = false
	}
}

// StartStep builds a start step.
func StartStep(id string) models.Step {
	return models.Step{ID: id, Name: "Start", Kind: models.KindStart}
}

// EndStep builds an end step.
func EndStep(id string) models.Step {
	return models.Step{ID: id, Name: "End", Kind: models.KindEnd}
}

// HumanStep builds a human-task step.
func HumanStep(id, name string) models.Step {
	return models.Step{ID: id, Name: name, Kind: models.KindHumanTask}
}

// AutomatedStep builds an automated-task step with a sub-type and config.
func AutomatedStep(id, subType string, config map[string]any) models.Step {
	return models.Step{ID: id, Name: id, Kind: models.KindAutomatedTask, SubType: subType, Config: config}
}

// ExclusiveGateway builds an exclusive-gateway step.
func ExclusiveGateway(id string) models.Step {
	return models.Step{ID: id, Name: id, Kind: models.KindExclusiveGateway}
}

// ParallelGateway builds a parallel-gateway step.
func ParallelGateway(id string) models.Step {
	return models.Step{ID: id, Name: id, Kind: models.KindParallelGateway}
}

// LinkTo builds a plain link.
func LinkTo(source, target string) models.Link {
	return models.Link{SourceID: source, TargetID: target}
}

// GuardedLink builds a link with a guard expression.
func GuardedLink(source, target, guard string) models.Link {
	return models.Link{SourceID: source, TargetID: target, Guard: guard}
}

// DefaultLink builds a link flagged as the gateway default.
func DefaultLink(source, target string) models.Link {
	return models.Link{SourceID: source, TargetID: target, Default: true}
}
