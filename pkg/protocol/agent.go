package protocol

// TurnResponse is the envelope for one completed agent turn as the
// umbrella process serializes it toward its clients.
type TurnResponse struct {
	TurnID       string       `json:"turn_id"`
	Message      string       `json:"message"`
	ToolsUsed    []ToolUse    `json:"tools_used,omitempty"`
	Delegations  []Delegation `json:"delegations,omitempty"`
	Citations    []Citation   `json:"citations,omitempty"`
	Iterations   int          `json:"iterations"`
	DurationMs   int64        `json:"duration_ms"`
	InputTokens  int64        `json:"input_tokens"`
	OutputTokens int64        `json:"output_tokens"`
}

// ToolUse summarizes one tool execution inside a turn.
type ToolUse struct {
	Tool       string `json:"tool"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"duration_ms"`
}

// Delegation summarizes one child-agent mission run during a turn.
type Delegation struct {
	RequestID string `json:"request_id"`
	TodoID    string `json:"todo_id"`
	Type      string `json:"type"` // general, researcher, coder, reviewer
	Success   bool   `json:"success"`
	Output    string `json:"output"`
	TimedOut  bool   `json:"timed_out,omitempty"`
}

// Citation points at a source a turn drew on.
type Citation struct {
	Kind      string `json:"kind"` // web, file
	Reference string `json:"reference"`
	Title     string `json:"title,omitempty"`
}

// AgentStatus is a point-in-time health snapshot of a running agent.
type AgentStatus struct {
	AgentID       string `json:"agent_id"`
	Model         string `json:"model"`
	Tools         int    `json:"tools"`
	DispatchCount int64  `json:"dispatch_count"`
	FailureCount  int64  `json:"failure_count"`
	AvgDurationMs int64  `json:"avg_duration_ms"`
}
