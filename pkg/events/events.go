// Package events defines event types for process lifecycle notifications.
// Events are the engine's outbound notification boundary: fire-and-forget,
// never blocking or failing a transition.
package events

import (
	"time"

	"github.com/caseway/caseway/pkg/models"
)

type EventType string

// Topic all caseway events are published to.
const Topic = "caseway.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	InstanceStartedEvent    EventType = "instance.started"
	InstanceCompletedEvent  EventType = "instance.completed"
	InstanceTerminatedEvent EventType = "instance.terminated"
	InstanceSuspendedEvent  EventType = "instance.suspended"
	InstanceResumedEvent    EventType = "instance.resumed"

	StepCompletedEvent  EventType = "step.completed"
	RoutingDeadEndEvent EventType = "routing.dead_end"

	TaskCreatedEvent   EventType = "task.created"
	TaskCompletedEvent EventType = "task.completed"
	TaskEscalatedEvent EventType = "task.escalated"
)

type BaseEvent struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	InstanceID   string    `json:"instance_id"`
	DefinitionID string    `json:"definition_id,omitempty"`
}

type InstanceStarted struct {
	BaseEvent

	Variables map[string]any `json:"variables,omitempty"`
}

func (e InstanceStarted) GetType() EventType {
	return InstanceStartedEvent
}

type InstanceCompleted struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e InstanceCompleted) GetType() EventType {
	return InstanceCompletedEvent
}

type InstanceTerminated struct {
	BaseEvent

	Reason string `json:"reason,omitempty"`
}

func (e InstanceTerminated) GetType() EventType {
	return InstanceTerminatedEvent
}

type InstanceSuspended struct {
	BaseEvent
}

func (e InstanceSuspended) GetType() EventType {
	return InstanceSuspendedEvent
}

type InstanceResumed struct {
	BaseEvent
}

func (e InstanceResumed) GetType() EventType {
	return InstanceResumedEvent
}

type StepCompleted struct {
	BaseEvent

	StepID   string          `json:"step_id"`
	StepName string          `json:"step_name,omitempty"`
	Kind     models.StepKind `json:"kind"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

// RoutingDeadEnd is emitted when a branch has no successor or the
// automated fast-forward cap is exceeded; the branch quietly ends.
type RoutingDeadEnd struct {
	BaseEvent

	StepID string `json:"step_id"`
	Detail string `json:"detail,omitempty"`
}

func (e RoutingDeadEnd) GetType() EventType {
	return RoutingDeadEndEvent
}

type TaskCreated struct {
	BaseEvent

	TaskID   string    `json:"task_id"`
	StepID   string    `json:"step_id"`
	Title    string    `json:"title"`
	Assignee string    `json:"assignee,omitempty"`
	DueDate  time.Time `json:"due_date"`
	DeepLink string    `json:"deep_link,omitempty"`
}

func (e TaskCreated) GetType() EventType {
	return TaskCreatedEvent
}

type TaskCompleted struct {
	BaseEvent

	TaskID    string `json:"task_id"`
	StepID    string `json:"step_id"`
	Performer string `json:"performer,omitempty"`
}

func (e TaskCompleted) GetType() EventType {
	return TaskCompletedEvent
}

type TaskEscalated struct {
	BaseEvent

	TaskID   string              `json:"task_id"`
	Priority models.TaskPriority `json:"priority"`
	DueDate  time.Time           `json:"due_date"`
}

func (e TaskEscalated) GetType() EventType {
	return TaskEscalatedEvent
}
