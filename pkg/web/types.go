package web

import "github.com/caseway/caseway/pkg/models"

// DeployDefinitionRequest is the payload for deploying a new process
// definition.
type DeployDefinitionRequest struct {
	Name       string                 `json:"name"       validate:"required,min=1,max=255"`
	Version    int                    `json:"version,omitempty"`
	Compliance models.ComplianceClass `json:"compliance,omitempty"`
	Steps      []models.Step          `json:"steps"      validate:"required,min=1"`
	Links      []models.Link          `json:"links"`
}

// StartInstanceRequest carries the initial variable bag for a new
// instance.
type StartInstanceRequest struct {
	Variables map[string]any `json:"variables"`
}

// CompleteTaskRequest is the payload for closing a work item.
type CompleteTaskRequest struct {
	Performer string         `json:"performer,omitempty"`
	Variables map[string]any `json:"variables"`
}

// ClaimTaskRequest names the user claiming a task.
type ClaimTaskRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// TerminateInstanceRequest carries the administrative reason.
type TerminateInstanceRequest struct {
	Reason string `json:"reason"`
}
