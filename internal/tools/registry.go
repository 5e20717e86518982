package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/logging"
)

// Registry holds the three disjoint tool namespaces. Registrations happen
// during startup; afterwards the registry is read-mostly. Instances are
// explicitly constructed and passed by reference; there is no package
// level registry.
type Registry struct {
	mu     sync.RWMutex
	logger *log.Logger

	native map[string]Tool
	user   map[string]Tool
	remote map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		logger: logging.Or(logger),
		native: make(map[string]Tool),
		user:   make(map[string]Tool),
		remote: make(map[string]Tool),
	}
}

// Register places tool under the given namespace.
//
// A user tool whose name already exists as a native tool is rejected so a
// buggy or malicious plugin cannot shadow a trusted built-in; the rejection
// is logged and returned, never fatal. Remote tools are rejected on
// collision with either earlier namespace for the same reason.
func (r *Registry) Register(source Source, tool Tool) error {
	name := tool.Name()
	if name == "" {
		return errors.User(errors.CodeInvalidInput, "tool has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch source {
	case SourceNative:
		r.native[name] = tool
	case SourceUser:
		if _, taken := r.native[name]; taken {
			err := errors.User(errors.CodeToolNameConflict,
				fmt.Sprintf("user tool %q shadows a native tool: registration rejected", name))
			r.logger.Warn("tool registration rejected", "tool", name, "source", source.String())
			return err
		}
		r.user[name] = tool
	case SourceRemote:
		if _, taken := r.native[name]; taken {
			err := errors.User(errors.CodeToolNameConflict,
				fmt.Sprintf("remote tool %q shadows a native tool: registration rejected", name))
			r.logger.Warn("tool registration rejected", "tool", name, "source", source.String())
			return err
		}
		if _, taken := r.user[name]; taken {
			err := errors.User(errors.CodeToolNameConflict,
				fmt.Sprintf("remote tool %q shadows a user tool: registration rejected", name))
			r.logger.Warn("tool registration rejected", "tool", name, "source", source.String())
			return err
		}
		r.remote[name] = tool
	}

	r.logger.Debug("tool registered", "tool", name, "source", source.String())
	return nil
}

// Resolve finds the implementation for a (source, name) pair.
func (r *Registry) Resolve(source Source, name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.namespace(source)[name]
	if !ok {
		return nil, errors.Permanent(errors.CodeToolNotFound,
			fmt.Sprintf("tool not found: %s (%s namespace)", name, source))
	}
	return tool, nil
}

// Lookup scans native, then user, then remote for a bare name. Used by
// callers that parse model output, where only the name is known.
func (r *Registry) Lookup(name string) (Tool, Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.native[name]; ok {
		return t, SourceNative, true
	}
	if t, ok := r.user[name]; ok {
		return t, SourceUser, true
	}
	if t, ok := r.remote[name]; ok {
		return t, SourceRemote, true
	}
	return nil, SourceNative, false
}

// List returns every registered tool sorted by name. Private tools are
// omitted unless includePrivate is set.
func (r *Registry) List(includePrivate bool) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.native)+len(r.user)+len(r.remote))
	for _, m := range []map[string]Tool{r.native, r.user, r.remote} {
		for _, t := range m {
			if !includePrivate {
				if s := t.Schema(); s != nil && s.Private {
					continue
				}
			}
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the sorted tool names of one namespace.
func (r *Registry) Names(source Source) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m := r.namespace(source)
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the total number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.native) + len(r.user) + len(r.remote)
}

// namespace returns the map for a source. Callers hold r.mu.
func (r *Registry) namespace(source Source) map[string]Tool {
	switch source {
	case SourceNative:
		return r.native
	case SourceUser:
		return r.user
	case SourceRemote:
		return r.remote
	default:
		return nil
	}
}
