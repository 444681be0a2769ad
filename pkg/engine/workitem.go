package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/caseway/caseway/pkg/models"
	"github.com/caseway/caseway/pkg/protocol"
	"github.com/google/uuid"
)

// Tasks without an SLA on their step fall due after three days.
const defaultSLADays = 3

// createTask materializes the work item for a human step. If a directory
// is configured and the step's role resolves to exactly one user, the
// task is assigned directly; otherwise it stays unassigned and carries
// the step's role/group hints so a qualifying user can claim it.
func (e *Engine) createTask(ctx context.Context, step *models.Step, instance *models.ProcessInstance) *models.Task {
	now := time.Now().UTC()

	slaDays := step.SLADays
	if slaDays <= 0 {
		slaDays = defaultSLADays
	}

	task := &models.Task{
		ID:         uuid.New().String(),
		Title:      step.Name,
		InstanceID: instance.ID,
		StepID:     step.ID,
		DueDate:    now.AddDate(0, 0, slaDays),
		Status:     models.TaskStatusPending,
		Priority:   models.TaskPriorityNormal,
		CreatedAt:  now,
	}

	if step.RoleID != "" {
		task.CandidateRoles = []string{step.RoleID}
	}

	if step.GroupID != "" {
		task.CandidateGroups = []string{step.GroupID}
	}

	if e.directory != nil && step.RoleID != "" {
		users, err := e.directory.UsersByRole(ctx, step.RoleID)
		if err != nil {
			e.logger.WarnContext(ctx, "Directory lookup failed, leaving task unassigned",
				"instance_id", instance.ID, "step_id", step.ID, "role_id", step.RoleID, "error", err)
		} else if len(users) == 1 {
			task.Assignee = users[0]
		}
	}

	return task
}

func protocolEnv(instance *models.ProcessInstance, step *models.Step, logger *slog.Logger) protocol.ExecutionEnv {
	return protocol.ExecutionEnv{
		InstanceID:   instance.ID,
		DefinitionID: instance.DefinitionID,
		StepID:       step.ID,
		Variables:    instance.Variables,
		Logger:       logger,
	}
}
