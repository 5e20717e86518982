// Package protocol defines the wire shapes Otto publishes for external
// consumers. UIs, dashboards and sibling processes decode these instead of
// importing engine internals, so changes here are breaking changes.
package protocol

import "time"

// Subject suffixes of the tool event stream. The bridge joins them to the
// configured prefix with a dot, e.g. "otto.tool.finished".
const (
	SubjectToolRequested = "tool.requested"
	SubjectToolProgress  = "tool.progress"
	SubjectToolFinished  = "tool.finished"
)

// ToolRequested announces a request entering dispatch. It fires before
// name resolution, so an unknown tool still produces a requested frame.
type ToolRequested struct {
	RequestID  string         `json:"request_id"`
	Tool       string         `json:"tool"`
	Source     string         `json:"source"` // native, user, remote
	Caller     string         `json:"caller,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ToolProgress reports partial completion from a running tool. Total is 0
// when the extent of the work is unknown.
type ToolProgress struct {
	RequestID string    `json:"request_id"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolFinished closes a request's frame sequence. Exactly one is published
// per requested frame, success or not.
type ToolFinished struct {
	RequestID  string     `json:"request_id"`
	Tool       string     `json:"tool"`
	Success    bool       `json:"success"`
	DurationMs int64      `json:"duration_ms"`
	Error      *ToolError `json:"error,omitempty"`
	Files      []FileRef  `json:"files,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ToolError carries a coded execution failure.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FileRef points at an artifact a tool produced on shared storage.
type FileRef struct {
	Path     string `json:"path"`
	MimeType string `json:"mime_type,omitempty"`
	Label    string `json:"label,omitempty"`
}
