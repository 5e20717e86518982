// Package events defines the engine's typed execution event stream and the
// synchronous bus that fans it out to subscribers.
package events

import (
	"time"

	"github.com/otto-ai/otto/internal/tools"
)

// Kind discriminates the event union.
type Kind int

const (
	KindRequested Kind = iota
	KindProgress
	KindFinished
)

// String returns the kind name used on the wire and in logs.
func (k Kind) String() string {
	switch k {
	case KindRequested:
		return "requested"
	case KindProgress:
		return "progress"
	case KindFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Event is the closed union of tool execution events. The only
// implementations are Requested, Progress, and Finished. Events are
// transient: the bus never buffers or replays them.
type Event interface {
	Kind() Kind
	isEvent()
}

// Requested is emitted when a request enters dispatch, before resolution.
// Source is the request's declared namespace tag.
type Requested struct {
	RequestID  string
	ToolName   string
	Source     tools.Source
	Parameters map[string]any
	CallerID   string
	Timestamp  time.Time
}

// Progress reports partial completion from inside a tool implementation.
// Total is 0 when the extent of the work is unknown.
type Progress struct {
	RequestID string
	Current   int
	Total     int
	Message   string
	Timestamp time.Time
}

// Finished closes a request's event sequence. Exactly one fires per
// dispatched request, success or not.
type Finished struct {
	RequestID  string
	ToolName   string
	Success    bool
	DurationMs int64
	Error      *tools.ErrorInfo
	Files      []tools.FileAttachment
	Timestamp  time.Time
}

func (Requested) Kind() Kind { return KindRequested }
func (Progress) Kind() Kind  { return KindProgress }
func (Finished) Kind() Kind  { return KindFinished }

func (Requested) isEvent() {}
func (Progress) isEvent()  {}
func (Finished) isEvent()  {}

// RequestID returns the request an event belongs to.
func RequestID(ev Event) string {
	switch e := ev.(type) {
	case Requested:
		return e.RequestID
	case Progress:
		return e.RequestID
	case Finished:
		return e.RequestID
	default:
		return ""
	}
}
