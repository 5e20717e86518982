// Package tools defines the tool contract, the request/result shapes, and
// the namespaced registry the engine dispatches against.
package tools

import "context"

// Source identifies the namespace a tool implementation belongs to.
type Source int

const (
	// SourceNative tools ship with the engine.
	SourceNative Source = iota

	// SourceUser tools are supplied by user configuration or plugins.
	SourceUser

	// SourceRemote tools are served by remote-protocol servers.
	SourceRemote
)

// String returns the namespace name.
func (s Source) String() string {
	switch s {
	case SourceNative:
		return "native"
	case SourceUser:
		return "user"
	case SourceRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// ParseSource maps a namespace name back to its Source.
func ParseSource(s string) (Source, bool) {
	switch s {
	case "native":
		return SourceNative, true
	case "user":
		return SourceUser, true
	case "remote":
		return SourceRemote, true
	default:
		return SourceNative, false
	}
}

// Request is one tool invocation submitted to the engine.
// Immutable once submitted; ID correlates events and results.
type Request struct {
	ID         string         `json:"id"`
	ToolName   string         `json:"tool_name"`
	Source     Source         `json:"source"`
	Parameters map[string]any `json:"parameters,omitempty"`

	// GroupKey links sibling requests that may run concurrently with each
	// other. Blank means the request runs alone, in submission order.
	GroupKey string `json:"group_key,omitempty"`

	// CallerID identifies the agent that issued the request.
	CallerID string `json:"caller_id,omitempty"`
}

// Call carries per-invocation context into a tool implementation.
type Call struct {
	RequestID string
	CallerID  string
	Params    map[string]any

	progress func(current, total int, message string)
}

// NewCall builds the invocation context handed to Tool.Execute. The
// progress function may be nil.
func NewCall(requestID, callerID string, params map[string]any, progress func(current, total int, message string)) *Call {
	return &Call{
		RequestID: requestID,
		CallerID:  callerID,
		Params:    params,
		progress:  progress,
	}
}

// ReportProgress forwards a progress update to the dispatcher. Total may be
// 0 when the extent of the work is unknown.
func (c *Call) ReportProgress(current, total int, message string) {
	if c.progress != nil {
		c.progress(current, total, message)
	}
}

// Tool represents a callable tool.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string

	// Description returns what the tool does.
	Description() string

	// Schema returns the tool's parameter schema and flags.
	Schema() *Schema

	// Execute runs the tool. Implementations report domain failures via
	// the returned error or an unsuccessful Result; the dispatcher treats
	// both the same way.
	Execute(ctx context.Context, call *Call) (*Result, error)
}

// funcTool adapts a plain function into a Tool.
type funcTool struct {
	schema *Schema
	fn     func(ctx context.Context, call *Call) (*Result, error)
}

// NewFunc wraps fn as a Tool described by schema.
func NewFunc(schema *Schema, fn func(ctx context.Context, call *Call) (*Result, error)) Tool {
	return &funcTool{schema: schema, fn: fn}
}

func (t *funcTool) Name() string        { return t.schema.Name }
func (t *funcTool) Description() string { return t.schema.Description }
func (t *funcTool) Schema() *Schema     { return t.schema }

func (t *funcTool) Execute(ctx context.Context, call *Call) (*Result, error) {
	return t.fn(ctx, call)
}

// StringParam extracts a string parameter.
func StringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// BoolParam extracts a bool parameter.
func BoolParam(params map[string]any, key string) (bool, bool) {
	v, ok := params[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// IntParam extracts an integer parameter, accepting the float64 shape
// JSON decoding produces.
func IntParam(params map[string]any, key string) (int, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
