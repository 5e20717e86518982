package delegation

import (
	"github.com/otto-ai/otto/internal/tools"
)

// Descriptor is the output of a successful delegate or delegate_todo
// call. It signals intent: no child has been spawned yet. The caller
// detects it by type, so ordinary tool output can never be mistaken for
// a delegation signal.
type Descriptor struct {
	Delegated bool      `json:"delegated"`
	Type      AgentType `json:"type"`
	Mission   string    `json:"mission"`
	Rationale string    `json:"rationale,omitempty"`
	TodoID    string    `json:"todo_id,omitempty"`
	CallerID  string    `json:"caller_agent_id,omitempty"`
}

// FromResult extracts a delegation descriptor from a tool result, if
// the result carries one. Failed results never delegate.
func FromResult(res *tools.Result) (*Descriptor, bool) {
	if res == nil || !res.Success {
		return nil, false
	}
	desc, ok := res.Output.(*Descriptor)
	if !ok || !desc.Delegated {
		return nil, false
	}
	return desc, true
}
