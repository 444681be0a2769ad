// Package registry maps automated step sub-types to their executors.
// The scheduler's control flow never consults it; only the dispatch of
// actual automated work does.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caseway/caseway/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger            *slog.Logger
	executorFactories map[string]protocol.StepExecutorFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:            log,
		executorFactories: make(map[string]protocol.StepExecutorFactory),
	}
}

func (r *Registry) RegisterExecutor(factory protocol.StepExecutorFactory) {
	r.executorFactories[factory.ID()] = factory
}

// ExecutorRegistered reports whether a sub-type has an executor.
func (r *Registry) ExecutorRegistered(subType string) bool {
	_, ok := r.executorFactories[subType]

	return ok
}

// ExecutorIDs returns the registered sub-type keys.
func (r *Registry) ExecutorIDs() []string {
	ids := make([]string, 0, len(r.executorFactories))
	for id := range r.executorFactories {
		ids = append(ids, id)
	}

	return ids
}

// CreateExecutor validates the config payload against the factory's
// schema and builds the executor.
func (r *Registry) CreateExecutor(subType string, config map[string]any) (protocol.StepExecutor, error) {
	factory, ok := r.executorFactories[subType]
	if !ok {
		return nil, fmt.Errorf("step executor %q not registered", subType)
	}

	if err := validateConfig(factory.Schema(), config); err != nil {
		return nil, fmt.Errorf("invalid config for step executor %q: %w", subType, err)
	}

	return factory.Create(config)
}

func validateConfig(schema, config map[string]any) error {
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return err
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return fmt.Errorf("schema validation failed: %s", strings.Join(details, "; "))
	}

	return nil
}
