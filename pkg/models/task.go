package models

import "time"

// TaskStatus represents the lifecycle state of a work item.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusClaimed    TaskStatus = "claimed"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusRejected   TaskStatus = "rejected"
)

// TaskPriority is mutated only by the escalation scanner.
type TaskPriority string

const (
	TaskPriorityNormal TaskPriority = "normal"
	TaskPriorityHigh   TaskPriority = "high"
)

// Task is the materialization of a human-task step for one instance.
// Completing it is the only external event that resumes the branch that
// produced it.
type Task struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"       validate:"required"`
	InstanceID      string         `json:"instance_id" validate:"required"`
	StepID          string         `json:"step_id"     validate:"required"`
	Assignee        string         `json:"assignee,omitempty"` // Empty means unassigned
	CandidateRoles  []string       `json:"candidate_roles,omitempty"`
	CandidateGroups []string       `json:"candidate_groups,omitempty"`
	DueDate         time.Time      `json:"due_date"`
	Status          TaskStatus     `json:"status"`
	Priority        TaskPriority   `json:"priority"`
	Data            map[string]any `json:"data,omitempty"` // Collected on completion
	CreatedAt       time.Time      `json:"created_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// IsOpen reports whether the task still awaits human action.
func (t *Task) IsOpen() bool {
	switch t.Status {
	case TaskStatusPending, TaskStatusClaimed, TaskStatusInProgress:
		return true
	default:
		return false
	}
}

// Claim assigns the task to a user. Only open unassigned tasks can be
// claimed.
func (t *Task) Claim(userID string) bool {
	if !t.IsOpen() || t.Assignee != "" {
		return false
	}

	t.Assignee = userID
	t.Status = TaskStatusClaimed

	return true
}

// Complete records the outcome data and closes the task.
func (t *Task) Complete(data map[string]any, at time.Time) {
	t.Status = TaskStatusCompleted
	t.Data = data
	t.CompletedAt = &at
}

// Reject closes the task without advancing: it is returned to the work
// queue by the service layer.
func (t *Task) Reject(at time.Time) {
	t.Status = TaskStatusRejected
	t.CompletedAt = &at
}

// Overdue reports whether the task is open past its due date.
func (t *Task) Overdue(now time.Time) bool {
	return t.IsOpen() && now.After(t.DueDate)
}
