package models

import (
	"slices"
	"time"
)

// InstanceStatus represents the lifecycle state of a process instance.
type InstanceStatus string

const (
	InstanceStatusActive     InstanceStatus = "active"
	InstanceStatusCompleted  InstanceStatus = "completed"
	InstanceStatusTerminated InstanceStatus = "terminated"
	InstanceStatusSuspended  InstanceStatus = "suspended"
)

// History actions recorded by the engine.
const (
	ActionStarted    = "started"
	ActionCompleted  = "completed"
	ActionActivated  = "activated"
	ActionDeadEnd    = "dead-end"
	ActionFinished   = "finished"
	ActionTerminated = "terminated"
	ActionSuspended  = "suspended"
	ActionResumed    = "resumed"
)

// HistoryEntry is one append-only audit record on an instance. Entries are
// never edited or removed once written.
type HistoryEntry struct {
	StepID    string    `json:"step_id,omitempty"`
	StepName  string    `json:"step_name,omitempty"`
	Action    string    `json:"action"`
	Performer string    `json:"performer,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProcessInstance is one running execution of a ProcessDefinition. It pins
// the definition id and version it was started against; later definition
// edits never affect it. All mutation goes through the engine.
type ProcessInstance struct {
	ID                string         `json:"id"`
	DefinitionID      string         `json:"definition_id"      validate:"required"`
	DefinitionVersion int            `json:"definition_version"`
	Status            InstanceStatus `json:"status"`
	ActiveStepIDs     []string       `json:"active_step_ids"` // Set semantics; >1 entry inside parallel regions
	Variables         map[string]any `json:"variables,omitempty"`
	History           []HistoryEntry `json:"history"`
	CreatedAt         time.Time      `json:"created_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	TerminateReason   string         `json:"terminate_reason,omitempty"`
}

// IsActive reports whether the instance can still be advanced.
func (i *ProcessInstance) IsActive() bool {
	return i.Status == InstanceStatusActive
}

// ApplyVariables merges a patch into the instance variable bag.
func (i *ProcessInstance) ApplyVariables(patch map[string]any) {
	if len(patch) == 0 {
		return
	}

	if i.Variables == nil {
		i.Variables = make(map[string]any, len(patch))
	}

	for k, v := range patch {
		i.Variables[k] = v
	}
}

// ReplaceActiveStep swaps one completed step id for its successors,
// leaving ids owned by other parallel branches untouched.
func (i *ProcessInstance) ReplaceActiveStep(completedID string, nextIDs []string) {
	remaining := make([]string, 0, len(i.ActiveStepIDs)+len(nextIDs))

	for _, id := range i.ActiveStepIDs {
		if id != completedID {
			remaining = append(remaining, id)
		}
	}

	for _, id := range nextIDs {
		if !slices.Contains(remaining, id) {
			remaining = append(remaining, id)
		}
	}

	i.ActiveStepIDs = remaining
}

// HasActiveStep reports whether the given step id is currently active.
func (i *ProcessInstance) HasActiveStep(stepID string) bool {
	return slices.Contains(i.ActiveStepIDs, stepID)
}

// AppendHistory appends an audit entry. History is monotonically
// increasing; callers must persist the entry in the same transaction as
// the state change that produced it.
func (i *ProcessInstance) AppendHistory(entry HistoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	i.History = append(i.History, entry)
}

// MarkCompleted transitions the instance to its terminal completed state.
func (i *ProcessInstance) MarkCompleted(at time.Time) {
	i.Status = InstanceStatusCompleted
	i.CompletedAt = &at
	i.ActiveStepIDs = nil
}

// MarkTerminated records an administrative termination. Safe to call while
// branches are dormant awaiting tasks; those tasks can no longer advance
// the instance afterwards.
func (i *ProcessInstance) MarkTerminated(reason string, at time.Time) {
	i.Status = InstanceStatusTerminated
	i.TerminateReason = reason
	i.CompletedAt = &at
	i.ActiveStepIDs = nil
}

// MarkSuspended pauses the instance without touching active steps.
func (i *ProcessInstance) MarkSuspended() {
	i.Status = InstanceStatusSuspended
}

// MarkResumed reactivates a suspended instance.
func (i *ProcessInstance) MarkResumed() {
	i.Status = InstanceStatusActive
}
