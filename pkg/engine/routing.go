package engine

import (
	"context"
	"time"

	"github.com/caseway/caseway/pkg/events"
	"github.com/caseway/caseway/pkg/expr"
	"github.com/caseway/caseway/pkg/models"
)

// traverse walks the graph from a just-completed step, fast-forwarding
// through automated kinds until every branch is either waiting on a human
// task, finished, or dead-ended. It only mutates the in-memory instance
// and the transition; nothing is persisted here.
func (e *Engine) traverse(ctx context.Context, instance *models.ProcessInstance, def *models.ProcessDefinition, fromStepID string, tr *transition) {
	queue := []string{fromStepID}
	hops := 0

	for len(queue) > 0 && instance.IsActive() {
		stepID := queue[0]
		queue = queue[1:]

		// Queued ids are validated against the definition before they
		// are enqueued.
		step := def.StepByID(stepID)

		tr.record(models.HistoryEntry{
			StepID:   step.ID,
			StepName: step.Name,
			Action:   models.ActionCompleted,
		})
		tr.events = append(tr.events, events.StepCompleted{
			BaseEvent: e.baseEvent(events.StepCompletedEvent, instance),
			StepID:    step.ID,
			StepName:  step.Name,
			Kind:      step.Kind,
		})

		nextIDs := e.route(ctx, instance, def, step, tr)
		instance.ReplaceActiveStep(stepID, nextIDs)

		for _, nextID := range nextIDs {
			if !instance.IsActive() {
				break
			}

			next := def.StepByID(nextID)
			if next == nil {
				e.logger.WarnContext(ctx, "Link targets a step missing from the definition, ending branch",
					"instance_id", instance.ID, "step_id", nextID)
				instance.ReplaceActiveStep(nextID, nil)
				tr.record(models.HistoryEntry{
					StepID:  nextID,
					Action:  models.ActionDeadEnd,
					Comment: "link target not found in definition",
				})

				continue
			}

			switch next.Kind {
			case models.KindHumanTask:
				task := e.createTask(ctx, next, instance)
				tr.tasks = append(tr.tasks, task)
				tr.record(models.HistoryEntry{
					StepID:   next.ID,
					StepName: next.Name,
					Action:   models.ActionActivated,
				})
				tr.events = append(tr.events, events.TaskCreated{
					BaseEvent: e.baseEvent(events.TaskCreatedEvent, instance),
					TaskID:    task.ID,
					StepID:    next.ID,
					Title:     task.Title,
					Assignee:  task.Assignee,
					DueDate:   task.DueDate,
				})

			case models.KindEnd:
				now := time.Now().UTC()

				tr.record(models.HistoryEntry{
					StepID:   next.ID,
					StepName: next.Name,
					Action:   models.ActionFinished,
				})
				instance.MarkCompleted(now)
				tr.events = append(tr.events, events.InstanceCompleted{
					BaseEvent: e.baseEvent(events.InstanceCompletedEvent, instance),
					Duration:  now.Sub(instance.CreatedAt),
				})

			case models.KindStart, models.KindAutomatedTask,
				models.KindExclusiveGateway, models.KindParallelGateway:
				hops++
				if hops > maxAutoHops {
					e.logger.WarnContext(ctx, "Automated step limit reached, ending branch",
						"instance_id", instance.ID, "step_id", nextID, "limit", maxAutoHops)
					instance.ReplaceActiveStep(nextID, nil)
					tr.record(models.HistoryEntry{
						StepID:   next.ID,
						StepName: next.Name,
						Action:   models.ActionDeadEnd,
						Comment:  "automated step limit reached",
					})
					tr.events = append(tr.events, events.RoutingDeadEnd{
						BaseEvent: e.baseEvent(events.RoutingDeadEndEvent, instance),
						StepID:    next.ID,
						Detail:    "automated step limit reached",
					})

					continue
				}

				if next.Kind == models.KindAutomatedTask {
					e.dispatchAutomated(ctx, instance, next)
				}

				queue = append(queue, nextID)
			}
		}
	}

	// A branch with no successor is an implicit terminal. Once no branch
	// is active anymore the instance is done.
	if instance.IsActive() && len(instance.ActiveStepIDs) == 0 {
		now := time.Now().UTC()

		tr.record(models.HistoryEntry{
			Action:  models.ActionFinished,
			Comment: "no active steps remain",
		})
		instance.MarkCompleted(now)
		tr.events = append(tr.events, events.InstanceCompleted{
			BaseEvent: e.baseEvent(events.InstanceCompletedEvent, instance),
			Duration:  now.Sub(instance.CreatedAt),
		})
	}
}

// route computes the successor step ids of a completed step. Exclusive
// gateways pick exactly one link; every other kind takes all outgoing
// links.
func (e *Engine) route(ctx context.Context, instance *models.ProcessInstance, def *models.ProcessDefinition, step *models.Step, tr *transition) []string {
	outgoing := def.OutgoingLinks(step.ID)

	if step.Kind == models.KindExclusiveGateway {
		target, ok := e.selectExclusiveTarget(ctx, instance, outgoing)
		if !ok {
			e.logger.WarnContext(ctx, "Exclusive gateway has no outgoing link, ending branch",
				"instance_id", instance.ID, "step_id", step.ID)
			tr.record(models.HistoryEntry{
				StepID:   step.ID,
				StepName: step.Name,
				Action:   models.ActionDeadEnd,
				Comment:  "no outgoing link from exclusive gateway",
			})
			tr.events = append(tr.events, events.RoutingDeadEnd{
				BaseEvent: e.baseEvent(events.RoutingDeadEndEvent, instance),
				StepID:    step.ID,
				Detail:    "no outgoing link from exclusive gateway",
			})

			return nil
		}

		return []string{target}
	}

	targets := make([]string, 0, len(outgoing))
	for _, link := range outgoing {
		targets = append(targets, link.TargetID)
	}

	return targets
}

// selectExclusiveTarget picks the first link, in declared order, whose
// guard evaluates true against the variable bag. A guard that fails to
// evaluate counts as false. If no guard matches, the default link wins;
// failing that, the first link. A gateway with no links at all reports
// no target.
func (e *Engine) selectExclusiveTarget(ctx context.Context, instance *models.ProcessInstance, outgoing []*models.Link) (string, bool) {
	for _, link := range outgoing {
		if link.Guard == "" {
			continue
		}

		matched, err := expr.Evaluate(link.Guard, instance.Variables)
		if err != nil {
			e.logger.WarnContext(ctx, "Guard evaluation failed, treating as false",
				"instance_id", instance.ID, "guard", link.Guard, "error", err)

			continue
		}

		if matched {
			return link.TargetID, true
		}
	}

	for _, link := range outgoing {
		if link.Default {
			return link.TargetID, true
		}
	}

	if len(outgoing) > 0 {
		return outgoing[0].TargetID, true
	}

	return "", false
}

// dispatchAutomated runs the executor registered for the step's sub-type
// and merges the returned variables into the bag. Execution problems are
// logged and the engine keeps advancing: failure handling is modeled as
// an error-handling link in the graph, not as an engine-level retry.
func (e *Engine) dispatchAutomated(ctx context.Context, instance *models.ProcessInstance, step *models.Step) {
	if e.registry == nil || step.SubType == "" {
		return
	}

	executor, err := e.registry.CreateExecutor(step.SubType, step.Config)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to create step executor",
			"instance_id", instance.ID, "step_id", step.ID, "sub_type", step.SubType, "error", err)

		return
	}

	results, err := executor.Execute(ctx, protocolEnv(instance, step, e.logger))
	if err != nil {
		e.logger.WarnContext(ctx, "Step executor failed",
			"instance_id", instance.ID, "step_id", step.ID, "sub_type", step.SubType, "error", err)

		return
	}

	instance.ApplyVariables(results)
}
