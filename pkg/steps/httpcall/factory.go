package httpcall

import (
	"github.com/caseway/caseway/pkg/protocol"
)

// ExecutorFactory creates HTTP call executors.
type ExecutorFactory struct{}

// NewExecutorFactory creates a new instance of ExecutorFactory.
func NewExecutorFactory() *ExecutorFactory {
	return &ExecutorFactory{}
}

// ID returns the step sub-type this factory serves.
func (*ExecutorFactory) ID() string {
	return "http-call"
}

// Create builds an executor from the given configuration.
func (*ExecutorFactory) Create(config map[string]any) (protocol.StepExecutor, error) {
	return NewExecutor(config)
}

// Schema returns the JSON schema for the executor configuration.
func (*ExecutorFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to send the HTTP request to.",
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method to use",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "HTTP headers to include in the request",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body content",
			},
			"retry": map[string]any{
				"type":        "object",
				"description": "Retry configuration for failed requests",
				"properties": map[string]any{
					"attempts": map[string]any{
						"type":        "integer",
						"description": "Number of attempts on failure",
						"default":     1,
						"minimum":     1,
						"maximum":     5, //nolint:mnd // schema bound
					},
					"delay": map[string]any{
						"type":        "integer",
						"description": "Delay between attempts in seconds",
						"default":     0,
						"minimum":     0,
					},
				},
			},
		},
		"required": []string{"url"},
	}
}
