// Package delegation implements multi-agent hand-off: the delegate and
// delegate_todo tools produce descriptors instead of doing work, and the
// Coordinator turns those descriptors into spawned child agents with
// bounded waits and todo bookkeeping.
package delegation

import (
	"encoding/json"
	"fmt"
	"sort"
)

// AgentType identifies a child-agent specialization. The set is closed:
// new types are added here, never discovered at runtime.
type AgentType int

const (
	TypeGeneral AgentType = iota
	TypeResearcher
	TypeCoder
	TypeReviewer
	TypePlanner
	TypeAuditor
)

func (t AgentType) String() string {
	switch t {
	case TypeGeneral:
		return "general"
	case TypeResearcher:
		return "researcher"
	case TypeCoder:
		return "coder"
	case TypeReviewer:
		return "reviewer"
	case TypePlanner:
		return "planner"
	case TypeAuditor:
		return "auditor"
	default:
		return "unknown"
	}
}

// ParseAgentType maps a tag to its AgentType.
func ParseAgentType(s string) (AgentType, bool) {
	for _, p := range catalog {
		if p.Type.String() == s {
			return p.Type, true
		}
	}
	return TypeGeneral, false
}

// MarshalJSON renders the type as its tag.
func (t AgentType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses a tag, rejecting unknown values.
func (t *AgentType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseAgentType(s)
	if !ok {
		return fmt.Errorf("unknown agent type: %q", s)
	}
	*t = parsed
	return nil
}

// Profile describes one agent type: what it is for and whether
// programmatic delegation may reach it. Command-only types are spawned
// exclusively through their user command.
type Profile struct {
	Type        AgentType
	Description string
	Delegable   bool
	Command     string
}

var catalog = []Profile{
	{
		Type:        TypeGeneral,
		Description: "generalist for mixed or unclassified work",
		Delegable:   true,
	},
	{
		Type:        TypeResearcher,
		Description: "gathers and summarizes information from the web and files",
		Delegable:   true,
	},
	{
		Type:        TypeCoder,
		Description: "writes and modifies code to satisfy a mission",
		Delegable:   true,
	},
	{
		Type:        TypeReviewer,
		Description: "verifies another agent's work against completion criteria",
		Delegable:   true,
	},
	{
		Type:        TypePlanner,
		Description: "breaks a mission into todos",
		Delegable:   false,
		Command:     "/plan",
	},
	{
		Type:        TypeAuditor,
		Description: "audits mission state and store consistency",
		Delegable:   false,
		Command:     "/audit",
	},
}

// Catalog returns every known profile.
func Catalog() []Profile {
	out := make([]Profile, len(catalog))
	copy(out, catalog)
	return out
}

// ProfileFor returns the profile for an agent type.
func ProfileFor(t AgentType) (Profile, bool) {
	for _, p := range catalog {
		if p.Type == t {
			return p, true
		}
	}
	return Profile{}, false
}

// DelegableNames returns the tags programmatic delegation accepts,
// sorted for stable error messages.
func DelegableNames() []string {
	var names []string
	for _, p := range catalog {
		if p.Delegable {
			names = append(names, p.Type.String())
		}
	}
	sort.Strings(names)
	return names
}
