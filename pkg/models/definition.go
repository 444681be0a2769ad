// Package models defines the core domain models for process execution.
package models

import (
	"errors"
	"time"
)

// StepKind is the closed set of scheduling behaviors a step can have.
// Integration-flavored steps (Slack, SAP, mail, ...) all carry
// KindAutomatedTask here; their concrete behavior lives behind the executor
// registry keyed by Step.SubType.
type StepKind string

const (
	KindStart            StepKind = "start"
	KindEnd              StepKind = "end"
	KindHumanTask        StepKind = "human-task"
	KindAutomatedTask    StepKind = "automated-task"
	KindExclusiveGateway StepKind = "exclusive-gateway"
	KindParallelGateway  StepKind = "parallel-gateway"
)

// AutoAdvances reports whether the engine fast-forwards through a step of
// this kind without waiting for external input.
func (k StepKind) AutoAdvances() bool {
	switch k {
	case KindStart, KindAutomatedTask, KindExclusiveGateway, KindParallelGateway:
		return true
	case KindEnd, KindHumanTask:
		return false
	default:
		return false
	}
}

// Valid reports whether the kind is one of the closed set.
func (k StepKind) Valid() bool {
	switch k {
	case KindStart, KindEnd, KindHumanTask, KindAutomatedTask, KindExclusiveGateway, KindParallelGateway:
		return true
	default:
		return false
	}
}

// Step is a node in a process graph.
type Step struct {
	ID             string         `json:"id"                        validate:"required"`
	Name           string         `json:"name"                      validate:"required,min=1"`
	Kind           StepKind       `json:"kind"                      validate:"required"`
	SubType        string         `json:"sub_type,omitempty"` // Executor key for automated steps
	RoleID         string         `json:"role_id,omitempty"`
	GroupID        string         `json:"group_id,omitempty"`
	RequiredSkills []string       `json:"required_skills,omitempty"`
	SLADays        int            `json:"sla_days,omitempty"`
	Config         map[string]any `json:"config,omitempty"`
}

// Link is a directed edge between two steps. Guard expressions are only
// meaningful on links leaving an exclusive gateway.
type Link struct {
	SourceID string `json:"source_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`
	Guard    string `json:"guard,omitempty"`
	Default  bool   `json:"default,omitempty"`
	Label    string `json:"label,omitempty"`
}

// ComplianceClass tags a definition for audit retention purposes.
type ComplianceClass string

const (
	ComplianceStandard  ComplianceClass = "standard"
	ComplianceRegulated ComplianceClass = "regulated"
)

// ProcessDefinition is an immutable, versioned process graph. Edits after
// deployment produce a new version; in-flight instances keep the version
// they were started against.
type ProcessDefinition struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"       validate:"required,min=3"`
	Version    int             `json:"version"`
	Steps      []*Step         `json:"steps"      validate:"required,min=1,dive"`
	Links      []*Link         `json:"links"      validate:"dive"`
	Active     bool            `json:"active"`
	Compliance ComplianceClass `json:"compliance,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	DeployedAt *time.Time      `json:"deployed_at,omitempty"`
}

// Definition structure errors surfaced by StartStep.
var (
	ErrNoStartStep        = errors.New("definition has no start step")
	ErrAmbiguousStartStep = errors.New("definition has more than one start step")
)

// StepByID returns the step with the given id, or nil.
func (d *ProcessDefinition) StepByID(id string) *Step {
	for _, step := range d.Steps {
		if step.ID == id {
			return step
		}
	}

	return nil
}

// OutgoingLinks returns the links leaving a step, in declared order.
// Declared order is load-bearing for exclusive gateway routing.
func (d *ProcessDefinition) OutgoingLinks(stepID string) []*Link {
	links := make([]*Link, 0)

	for _, link := range d.Links {
		if link.SourceID == stepID {
			links = append(links, link)
		}
	}

	return links
}

// IncomingLinks returns the links arriving at a step, in declared order.
func (d *ProcessDefinition) IncomingLinks(stepID string) []*Link {
	links := make([]*Link, 0)

	for _, link := range d.Links {
		if link.TargetID == stepID {
			links = append(links, link)
		}
	}

	return links
}

// StartStep returns the unique start step of the definition. It fails when
// the definition has zero or more than one start step; no instance can be
// started against such a graph.
func (d *ProcessDefinition) StartStep() (*Step, error) {
	var found *Step

	for _, step := range d.Steps {
		if step.Kind != KindStart {
			continue
		}

		if found != nil {
			return nil, ErrAmbiguousStartStep
		}

		found = step
	}

	if found == nil {
		return nil, ErrNoStartStep
	}

	return found, nil
}
