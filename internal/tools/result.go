package tools

import (
	stderrors "errors"
	"time"

	"github.com/otto-ai/otto/internal/errors"
)

// ErrorInfo carries structured failure information on a Result.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// String renders the error for transcripts and logs.
func (e *ErrorInfo) String() string {
	if e == nil {
		return ""
	}
	if e.Code == "" {
		return e.Message
	}
	return "[" + e.Code + "] " + e.Message
}

// FileAttachment references a file produced by a tool.
type FileAttachment struct {
	Path     string `json:"path"`
	MimeType string `json:"mime_type,omitempty"`
	Label    string `json:"label,omitempty"`
}

// Result represents the outcome of one tool invocation. Exactly one of
// Output/Error is meaningful, gated by Success. Created once, immutable
// after the dispatcher stamps identity and timing.
type Result struct {
	RequestID  string     `json:"request_id"`
	ToolName   string     `json:"tool_name"`
	Success    bool       `json:"success"`
	Output     any        `json:"output,omitempty"`
	Error      *ErrorInfo `json:"error,omitempty"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time"`
	DurationMs int64      `json:"duration_ms"`

	// DisplayOnly marks Output as human-facing only. The model context
	// receives DisplaySummary instead, never Output.
	DisplayOnly    bool   `json:"display_only,omitempty"`
	DisplaySummary string `json:"display_summary,omitempty"`

	Files []FileAttachment `json:"files,omitempty"`
}

// NewSuccessResult creates a successful result.
func NewSuccessResult(output any) *Result {
	return &Result{
		Success: true,
		Output:  output,
	}
}

// NewErrorResult creates a failed result from an error, capturing the
// structured code when err is an AppError.
func NewErrorResult(err error) *Result {
	return &Result{
		Success: false,
		Error:   errorInfoFrom(err),
	}
}

// NewDisplayResult creates a successful result whose full output is for
// human display only; summary is what the model may see.
func NewDisplayResult(output any, summary string) *Result {
	return &Result{
		Success:        true,
		Output:         output,
		DisplayOnly:    true,
		DisplaySummary: summary,
	}
}

// WithFiles attaches produced files to the result.
func (r *Result) WithFiles(files ...FileAttachment) *Result {
	r.Files = append(r.Files, files...)
	return r
}

// ModelPayload returns the part of the result that may be forwarded to the
// LLM context, honoring the DisplayOnly gate.
func (r *Result) ModelPayload() any {
	if !r.Success {
		return r.Error.String()
	}
	if r.DisplayOnly {
		return r.DisplaySummary
	}
	return r.Output
}

func errorInfoFrom(err error) *ErrorInfo {
	if err == nil {
		return nil
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		msg := appErr.Message
		if appErr.Inner != nil {
			if inner := appErr.Inner.Error(); inner != "" && inner != msg {
				msg += ": " + inner
			}
		}
		return &ErrorInfo{Code: appErr.Code, Message: msg}
	}

	return &ErrorInfo{Code: errors.CodeToolExecutionFailed, Message: err.Error()}
}
