// Package agent contains Otto's model-driven loops. The Conductor is
// the umbrella agent that owns a user turn end to end; the Runner
// executes the bounded missions the conductor delegates to child
// agents.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/otto-ai/otto/internal/citations"
	"github.com/otto-ai/otto/internal/delegation"
	"github.com/otto-ai/otto/internal/engine"
	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/logging"
	"github.com/otto-ai/otto/internal/model"
	"github.com/otto-ai/otto/internal/prompt"
	"github.com/otto-ai/otto/internal/tools"
)

const defaultMaxIterations = 12

// ============================================================
// Types
// ============================================================

// Conductor is the umbrella agent. It iterates model turns, dispatches
// the tool batches the model requests, settles any delegations those
// batches produced, and stops when the model answers with plain text.
type Conductor struct {
	agentID     string
	model       model.Model
	engine      *engine.Engine
	coordinator *delegation.Coordinator
	prompts     *prompt.Builder
	maxIter     int
	logger      *log.Logger

	once         sync.Once
	systemPrompt string
	toolDecls    []model.Tool
}

// ConductorConfig wires a Conductor's collaborators.
type ConductorConfig struct {
	AgentID       string
	Model         model.Model
	Engine        *engine.Engine
	Coordinator   *delegation.Coordinator
	Prompts       *prompt.Builder
	MaxIterations int
	Logger        *log.Logger
}

// Response is the outcome of one processed turn.
type Response struct {
	TurnID       string               `json:"turn_id"`
	Message      string               `json:"message"`
	ToolsUsed    []ToolCallInfo       `json:"tools_used,omitempty"`
	Delegations  []delegation.Outcome `json:"delegations,omitempty"`
	Citations    []citations.Source   `json:"citations,omitempty"`
	Iterations   int                  `json:"iterations"`
	DurationMs   int64                `json:"duration_ms"`
	InputTokens  int64                `json:"input_tokens"`
	OutputTokens int64                `json:"output_tokens"`
}

// ToolCallInfo summarizes one dispatched tool call for the caller.
type ToolCallInfo struct {
	Tool       string `json:"tool"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"duration_ms"`
}

// Status is a point-in-time view of the conductor and its engine.
type Status struct {
	AgentID string           `json:"agent_id"`
	Model   string           `json:"model"`
	Tools   int              `json:"tools"`
	Engine  *engine.Snapshot `json:"engine"`
}

// NewConductor creates the umbrella agent.
func NewConductor(cfg ConductorConfig) *Conductor {
	agentID := cfg.AgentID
	if agentID == "" {
		agentID = "otto"
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	prompts := cfg.Prompts
	if prompts == nil {
		prompts = prompt.NewBuilder("")
	}
	return &Conductor{
		agentID:     agentID,
		model:       cfg.Model,
		engine:      cfg.Engine,
		coordinator: cfg.Coordinator,
		prompts:     prompts,
		maxIter:     maxIter,
		logger:      logging.Or(cfg.Logger),
	}
}

// ============================================================
// Turn Loop
// ============================================================

// Process runs one user turn to completion. Every turn gets a fresh
// turn ID; todos created for bare delegations during the turn are
// scoped under it.
func (c *Conductor) Process(ctx context.Context, message string) (*Response, error) {
	start := time.Now()
	c.init()

	resp := &Response{TurnID: uuid.NewString()}
	transcript := []model.Message{model.UserMessage(message)}
	seen := make(map[string]struct{})

	for iter := 1; iter <= c.maxIter; iter++ {
		resp.Iterations = iter

		out, err := c.model.Generate(ctx, &model.Request{
			System:   c.systemPrompt,
			Messages: transcript,
			Tools:    c.toolDecls,
		})
		if err != nil {
			return nil, err
		}
		resp.InputTokens += out.InputTokens
		resp.OutputTokens += out.OutputTokens

		normalizeCallIDs(out.ToolCalls)
		transcript = append(transcript, model.AssistantMessage(out))

		if len(out.ToolCalls) == 0 {
			text := strings.TrimSpace(out.Text)
			if text == "" {
				return nil, errors.Permanent(errors.CodeModelInvalidResponse,
					"model replied with neither text nor tool calls")
			}
			resp.Message = text
			resp.DurationMs = time.Since(start).Milliseconds()
			c.logger.Info("turn complete",
				"turn", resp.TurnID,
				"iterations", resp.Iterations,
				"tools", len(resp.ToolsUsed),
				"delegations", len(resp.Delegations),
				"duration_ms", resp.DurationMs)
			return resp, nil
		}

		c.logger.Debug("dispatching batch",
			"turn", resp.TurnID, "iteration", iter, "calls", len(out.ToolCalls))

		reqs := requestsFrom(c.engine.Registry(), out.ToolCalls, c.agentID)
		results := c.engine.DispatchBatch(ctx, reqs)

		// A coordinator error means the todo store is down; nothing
		// else aborts the turn.
		outcomes, err := c.coordinator.HandleBatch(ctx, resp.TurnID, results)
		if err != nil {
			return nil, err
		}
		resp.Delegations = append(resp.Delegations, outcomes...)
		byRequest := outcomeIndex(outcomes)

		for _, src := range citations.Extract(results) {
			key := src.Kind.String() + "\x00" + src.Reference
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			resp.Citations = append(resp.Citations, src)
		}

		for _, res := range results {
			resp.ToolsUsed = append(resp.ToolsUsed, ToolCallInfo{
				Tool:       res.ToolName,
				Success:    res.Success,
				DurationMs: res.DurationMs,
			})
			content := payloadText(res)
			if outcome, ok := byRequest[res.RequestID]; ok {
				content = outcomeText(outcome)
			}
			transcript = append(transcript, model.ToolMessage(res.RequestID, content))
		}
	}

	return nil, errors.Permanent(errors.CodeAgentIterationLimit,
		fmt.Sprintf("turn did not converge after %d iterations", c.maxIter))
}

// Status reports the conductor's identity and engine counters.
func (c *Conductor) Status() *Status {
	return &Status{
		AgentID: c.agentID,
		Model:   c.model.Name(),
		Tools:   c.engine.Registry().Count(),
		Engine:  c.engine.Stats(),
	}
}

// init caches the system prompt and tool declarations. The conductor
// sees the full listing, private tools included.
func (c *Conductor) init() {
	c.once.Do(func() {
		c.systemPrompt = c.prompts.Build(prompt.AgentContext{
			Identity: "You are " + c.agentID + ", an autonomous assistant that runs tools " +
				"and coordinates child agents to get work done.",
			Delegation: "Hand self-contained missions to child agents with the delegate tool " +
				"(types: " + strings.Join(delegation.DelegableNames(), ", ") + "). " +
				"Use delegate_todo to execute a pending todo by id. " +
				"Delegate work that is parallelizable or needs sustained focus; do the rest yourself.",
		})
		c.toolDecls = Declarations(c.engine.Registry().List(true))
	})
}

// ============================================================
// Helpers
// ============================================================

// Declarations converts registered tool schemas into the shape the
// model consumes.
func Declarations(list []tools.Tool) []model.Tool {
	decls := make([]model.Tool, 0, len(list))
	for _, t := range list {
		schema := t.Schema()
		decls = append(decls, model.Tool{
			Name:        schema.Name,
			Description: schema.Description,
			Parameters:  schema.Parameters,
		})
	}
	return decls
}

// requestsFrom turns one model turn's calls into a dispatch batch. The
// calls share a group key: siblings the model issued together run
// concurrently.
func requestsFrom(reg *tools.Registry, calls []model.ToolCall, callerID string) []tools.Request {
	groupKey := "batch-" + uuid.NewString()[:8]
	reqs := make([]tools.Request, 0, len(calls))
	for _, call := range calls {
		// An unknown name still dispatches under the native namespace
		// so the lookup failure flows back to the model as a result.
		source := tools.SourceNative
		if _, src, ok := reg.Lookup(call.Name); ok {
			source = src
		}
		reqs = append(reqs, tools.Request{
			ID:         call.ID,
			ToolName:   call.Name,
			Source:     source,
			Parameters: call.Args,
			GroupKey:   groupKey,
			CallerID:   callerID,
		})
	}
	return reqs
}

// normalizeCallIDs fills in IDs for models that omit them, keeping
// requests, events, and transcript entries correlated.
func normalizeCallIDs(calls []model.ToolCall) {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.NewString()[:8]
		}
	}
}

// payloadText renders the model-facing slice of a result for the
// transcript, honoring the display-only gate.
func payloadText(res *tools.Result) string {
	switch v := res.ModelPayload().(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// outcomeText is what the model sees in place of a raw delegation
// descriptor: the child's final text on success, verbatim, or the
// failure note.
func outcomeText(out delegation.Outcome) string {
	if out.Success {
		return out.Output
	}
	return "delegation did not complete: " + out.Output
}

func outcomeIndex(outcomes []delegation.Outcome) map[string]delegation.Outcome {
	idx := make(map[string]delegation.Outcome, len(outcomes))
	for _, out := range outcomes {
		idx[out.RequestID] = out
	}
	return idx
}
