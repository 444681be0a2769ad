package registry

import (
	"io/fs"
	"log/slog"
	"os"
	"plugin"

	"github.com/caseway/caseway/pkg/protocol"
)

// LoadExecutorPlugins loads StepExecutorFactory implementations from .so
// files under pluginsPath/executors. Each plugin must export an Executor
// symbol.
func (r *Registry) LoadExecutorPlugins(pluginsPath string) ([]protocol.StepExecutorFactory, error) {
	rootPath := pluginsPath + "/executors"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "**/*.so")
	if err != nil {
		return nil, err
	}

	l := r.logger.With(slog.String("path", rootPath))
	l.Info("Loading executor plugins")

	factories := make([]protocol.StepExecutorFactory, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			l.Error("Failed to open plugin", "plugin", p, "error", err)

			continue
		}

		symbol, err := plg.Lookup("Executor")
		if err != nil {
			l.Error("Plugin has no Executor symbol", "plugin", p, "error", err)

			continue
		}

		factory, ok := symbol.(protocol.StepExecutorFactory)
		if !ok {
			l.Error("Executor symbol has wrong type", "plugin", p)

			continue
		}

		factories = append(factories, factory)
	}

	return factories, nil
}
