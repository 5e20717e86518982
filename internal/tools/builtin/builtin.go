// Package builtin ships the native tool suite the agent runtime
// registers at startup: file access, web fetching, and todo
// management.
package builtin

import (
	"net/http"

	"github.com/otto-ai/otto/internal/todo"
	"github.com/otto-ai/otto/internal/tools"
)

// Options selects and configures the built-in tools.
type Options struct {
	// Workspace anchors relative file paths. Empty means the process
	// working directory.
	Workspace string

	// HTTPClient overrides the client web_fetch uses.
	HTTPClient *http.Client

	// Todos enables the todo tools when set.
	Todos *todo.Manager
}

// Register installs the built-in suite into the native namespace.
func Register(reg *tools.Registry, opts Options) error {
	all := FileTools(opts.Workspace)
	all = append(all, WebFetchTool(opts.HTTPClient))
	if opts.Todos != nil {
		all = append(all, TodoTools(opts.Todos)...)
	}
	for _, t := range all {
		if err := reg.Register(tools.SourceNative, t); err != nil {
			return err
		}
	}
	return nil
}
