package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/otto-ai/otto/internal/delegation"
	"github.com/otto-ai/otto/internal/engine"
	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/logging"
	"github.com/otto-ai/otto/internal/model"
	"github.com/otto-ai/otto/internal/prompt"
)

// Runner executes delegated missions. Each Run spawns one child agent
// that iterates model turns and tool batches until it produces a final
// text answer or hits the iteration cap. It implements
// delegation.Runner.
type Runner struct {
	model   model.Model
	engine  *engine.Engine
	prompts *prompt.Builder
	maxIter int
	logger  *log.Logger
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Model         model.Model
	Engine        *engine.Engine
	Prompts       *prompt.Builder
	MaxIterations int
	Logger        *log.Logger
}

// NewRunner creates a child-agent runner.
func NewRunner(opts RunnerOptions) *Runner {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	prompts := opts.Prompts
	if prompts == nil {
		prompts = prompt.NewBuilder("")
	}
	return &Runner{
		model:   opts.Model,
		engine:  opts.Engine,
		prompts: prompts,
		maxIter: maxIter,
		logger:  logging.Or(opts.Logger),
	}
}

// Run implements delegation.Runner. Children see the constrained tool
// listing, which excludes private tools, so a child can never reach
// the delegate pair and re-delegate.
func (r *Runner) Run(ctx context.Context, agentID string, typ delegation.AgentType, mission string) (string, error) {
	system := r.prompts.Build(prompt.AgentContext{
		Identity: childIdentity(typ),
		Protocol: "When the mission is complete, reply with plain text only: " +
			"what you did and what you found. Do not call tools in your final reply.",
	})
	decls := Declarations(r.engine.Registry().List(false))
	transcript := []model.Message{model.UserMessage(mission)}

	for iter := 1; iter <= r.maxIter; iter++ {
		resp, err := r.model.Generate(ctx, &model.Request{
			System:   system,
			Messages: transcript,
			Tools:    decls,
		})
		if err != nil {
			return "", err
		}

		normalizeCallIDs(resp.ToolCalls)
		transcript = append(transcript, model.AssistantMessage(resp))

		if len(resp.ToolCalls) == 0 {
			text := strings.TrimSpace(resp.Text)
			if text == "" {
				return "", errors.Permanent(errors.CodeModelInvalidResponse,
					"child replied with neither text nor tool calls")
			}
			r.logger.Debug("child finished",
				"agent", agentID, "type", typ.String(), "iterations", iter)
			return text, nil
		}

		reqs := requestsFrom(r.engine.Registry(), resp.ToolCalls, agentID)
		results := r.engine.DispatchBatch(ctx, reqs)
		for _, res := range results {
			transcript = append(transcript, model.ToolMessage(res.RequestID, payloadText(res)))
		}
	}

	return "", errors.Permanent(errors.CodeAgentIterationLimit,
		fmt.Sprintf("mission did not converge after %d iterations", r.maxIter))
}

func childIdentity(typ delegation.AgentType) string {
	profile, ok := delegation.ProfileFor(typ)
	if !ok {
		return fmt.Sprintf("You are a %s agent working on a delegated mission.", typ)
	}
	return fmt.Sprintf("You are a %s agent working on a delegated mission: %s.",
		typ, profile.Description)
}
