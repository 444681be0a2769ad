// Package protocol defines the plug-in contracts between the engine and
// external collaborators.
package protocol

import (
	"context"
	"log/slog"
)

// ExecutionEnv is the slice of instance state an automated step executor
// may see. Executors never mutate the instance directly; variables they
// return are merged into the bag by the engine.
type ExecutionEnv struct {
	InstanceID   string
	DefinitionID string
	StepID       string
	Variables    map[string]any
	Logger       *slog.Logger
}

// StepExecutor runs one automated step sub-type. Executors complete
// synchronously from the engine's point of view; latency and retries of
// the underlying integration are the executor's own concern. A failing
// integration must route through an error-handling link, not an error
// return: an error here only aborts the current dispatch.
type StepExecutor interface {
	Execute(ctx context.Context, env ExecutionEnv) (map[string]any, error)
}

// StepExecutorFactory creates executors from a step's config payload.
type StepExecutorFactory interface {
	// ID is the step sub-type key this factory serves.
	ID() string
	// Schema is the JSON Schema the config payload must satisfy.
	Schema() map[string]any
	Create(config map[string]any) (StepExecutor, error)
}
