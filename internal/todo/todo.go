// Package todo manages shared work items and their lifecycle. Todos move
// pending -> in_progress -> completed or cancelled, and every transition
// is guarded by a compare-and-swap on the prior status so concurrent
// agents cannot double-claim or double-complete an item.
package todo

import (
	"fmt"
	"strings"
	"time"
)

// Status is a todo lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

// Scope says who may close a todo. Turn-scoped items belong to a single
// agent turn and are self-certifying; mission-scoped items outlive turns
// and require a completer different from the executor.
type Scope string

const (
	ScopeTurn    Scope = "turn"
	ScopeMission Scope = "mission"
)

// ParseScope validates a scope string.
func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case ScopeTurn, ScopeMission:
		return Scope(s), true
	}
	return "", false
}

// Priority orders pending work for planners.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a priority string.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(s), true
	}
	return "", false
}

// Todo is one unit of delegable work. ScopeID names the owning turn or
// mission depending on Scope.
type Todo struct {
	ID                 string     `json:"id"`
	Scope              Scope      `json:"scope"`
	ScopeID            string     `json:"scope_id,omitempty"`
	Title              string     `json:"title"`
	Context            string     `json:"context,omitempty"`
	CompletionCriteria string     `json:"completion_criteria,omitempty"`
	AgentTypeHint      string     `json:"agent_type_hint,omitempty"`
	Priority           Priority   `json:"priority"`
	Status             Status     `json:"status"`
	CreatorID          string     `json:"creator_id,omitempty"`
	ExecutorID         string     `json:"executor_id,omitempty"`
	Outcome            string     `json:"outcome,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// Mission renders the todo as a child-agent mission statement: the
// title, then context and completion criteria on their own lines when
// present.
func (t *Todo) Mission() string {
	var b strings.Builder
	b.WriteString(t.Title)
	if strings.TrimSpace(t.Context) != "" {
		b.WriteString("\nContext: ")
		b.WriteString(t.Context)
	}
	if strings.TrimSpace(t.CompletionCriteria) != "" {
		b.WriteString("\nCompletion criteria: ")
		b.WriteString(t.CompletionCriteria)
	}
	return b.String()
}

// Clone returns a deep copy so stores can hand out todos without
// aliasing their internal state.
func (t *Todo) Clone() *Todo {
	cp := *t
	if t.StartedAt != nil {
		at := *t.StartedAt
		cp.StartedAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

func (t *Todo) String() string {
	return fmt.Sprintf("todo %s [%s] %q", t.ID, t.Status, t.Title)
}
