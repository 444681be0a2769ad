// Package log provides the built-in log step executor.
package log

import (
	"context"

	"github.com/caseway/caseway/pkg/protocol"
)

// ExecutorFactory creates log executors.
type ExecutorFactory struct{}

// NewExecutorFactory creates a new instance of ExecutorFactory.
func NewExecutorFactory() *ExecutorFactory {
	return &ExecutorFactory{}
}

// ID returns the step sub-type this factory serves.
func (*ExecutorFactory) ID() string {
	return "log"
}

// Schema returns the JSON schema for the executor configuration.
func (*ExecutorFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The message to log.",
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message",
				"default":     "info",
				"enum":        []string{"debug", "info", "warn", "error"},
			},
		},
		"required": []string{"message"},
	}
}

// Create builds an executor from configuration.
func (f *ExecutorFactory) Create(config map[string]any) (protocol.StepExecutor, error) {
	message, _ := config["message"].(string)
	level, _ := config["level"].(string)

	if level == "" {
		level = "info"
	}

	return &Executor{message: message, level: level}, nil
}

// Executor logs a configured message with the instance variables.
type Executor struct {
	message string
	level   string
}

func (e *Executor) Execute(_ context.Context, env protocol.ExecutionEnv) (map[string]any, error) {
	logger := env.Logger.With("step_id", env.StepID, "executor", "log")

	switch e.level {
	case "debug":
		logger.Debug(e.message, "variables", env.Variables)
	case "warn":
		logger.Warn(e.message, "variables", env.Variables)
	case "error":
		logger.Error(e.message, "variables", env.Variables)
	default:
		logger.Info(e.message, "variables", env.Variables)
	}

	return map[string]any{}, nil
}
