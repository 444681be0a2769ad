// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/caseway/caseway/pkg/registry"
	"github.com/caseway/caseway/pkg/steps/httpcall"
	steplog "github.com/caseway/caseway/pkg/steps/log"
)

func registerExecutorPlugins(reg *registry.Registry, pluginsPath string) {
	if pluginsPath == "" {
		return
	}

	plugins, err := reg.LoadExecutorPlugins(pluginsPath)
	if err != nil {
		panic(err)
	}

	for _, plugin := range plugins {
		reg.RegisterExecutor(plugin)
	}
}

func registerNativeExecutors(reg *registry.Registry) {
	reg.RegisterExecutor(httpcall.NewExecutorFactory())
	reg.RegisterExecutor(steplog.NewExecutorFactory())
}

// NewRegistry builds the executor registry with the native executors and
// any .so plugins found under pluginsPath.
func NewRegistry(log *slog.Logger, pluginsPath string) *registry.Registry {
	reg := registry.NewRegistry(log)

	registerExecutorPlugins(reg, pluginsPath)
	registerNativeExecutors(reg)

	return reg
}
