package delegation

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/logging"
	"github.com/otto-ai/otto/internal/todo"
	"github.com/otto-ai/otto/internal/tools"
)

// Runner spawns one child agent and blocks until it produces its final
// text. agentID is the executor identity recorded on the todo; the
// child reports it as caller on its own tool requests. Implementations
// must honor ctx cancellation.
type Runner interface {
	Run(ctx context.Context, agentID string, typ AgentType, mission string) (string, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, agentID string, typ AgentType, mission string) (string, error)

func (f RunnerFunc) Run(ctx context.Context, agentID string, typ AgentType, mission string) (string, error) {
	return f(ctx, agentID, typ, mission)
}

// Outcome reports what one delegation produced.
type Outcome struct {
	RequestID string    `json:"request_id"`
	TodoID    string    `json:"todo_id"`
	Type      AgentType `json:"type"`
	Success   bool      `json:"success"`
	Output    string    `json:"output"`
	TimedOut  bool      `json:"timed_out,omitempty"`
}

// Coordinator drives delegation descriptors to completion: it claims
// the todo, spawns the child through a Runner, waits no longer than the
// configured timeout, and records a terminal outcome whatever happens.
// A hung child can never leave a todo stuck in_progress.
type Coordinator struct {
	todos   *todo.Manager
	runner  Runner
	timeout time.Duration
	agentID string
	logger  *log.Logger
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	Todos   *todo.Manager
	Runner  Runner
	Timeout time.Duration
	AgentID string
	Logger  *log.Logger
}

func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Coordinator{
		todos:   opts.Todos,
		runner:  opts.Runner,
		timeout: timeout,
		agentID: opts.AgentID,
		logger:  logging.Or(opts.Logger),
	}
}

// HandleBatch scans finished results for delegation descriptors and
// drives each one. Todos created for bare delegations are turn-scoped
// under turnID. Delegation failures become failed outcomes; only a
// todo store failing outright aborts the batch with an error.
func (c *Coordinator) HandleBatch(ctx context.Context, turnID string, results []*tools.Result) ([]Outcome, error) {
	var outcomes []Outcome
	for _, res := range results {
		desc, ok := FromResult(res)
		if !ok {
			continue
		}
		outcome, err := c.handle(ctx, turnID, res.RequestID, desc)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (c *Coordinator) handle(ctx context.Context, turnID, requestID string, desc *Descriptor) (Outcome, error) {
	outcome := Outcome{RequestID: requestID, Type: desc.Type}

	todoID := desc.TodoID
	if todoID == "" {
		created, err := c.todos.Create(ctx, todo.CreateParams{
			Title:         missionTitle(desc.Mission),
			Context:       desc.Rationale,
			AgentTypeHint: desc.Type.String(),
			Scope:         todo.ScopeTurn,
			ScopeID:       turnID,
			CreatorID:     c.agentID,
		})
		if err != nil {
			return c.failOutcome(outcome, err)
		}
		todoID = created.ID
	}
	outcome.TodoID = todoID

	executorID := desc.Type.String() + "-" + uuid.NewString()[:8]
	if _, err := c.todos.Begin(ctx, todoID, executorID); err != nil {
		return c.failOutcome(outcome, err)
	}

	c.logger.Info("delegation started",
		"todo", todoID, "type", desc.Type.String(), "executor", executorID)

	text, runErr, timedOut := c.runChild(ctx, executorID, desc)
	switch {
	case timedOut:
		timeoutErr := errors.DelegationTimeout(c.timeout)
		outcome.TimedOut = true
		outcome.Output = timeoutErr.Message
		if _, err := c.todos.Cancel(ctx, todoID, timeoutErr.Message); err != nil {
			return c.failOutcome(outcome, err)
		}
		c.logger.Warn("delegation timed out", "todo", todoID, "timeout", c.timeout)

	case runErr != nil:
		outcome.Output = "child agent failed: " + runErr.Error()
		if _, err := c.todos.Cancel(ctx, todoID, outcome.Output); err != nil {
			return c.failOutcome(outcome, err)
		}
		c.logger.Warn("delegation failed", "todo", todoID, "error", runErr)

	default:
		// The child's text goes into the outcome verbatim; no
		// re-summarization between agents.
		if _, err := c.todos.Complete(ctx, todoID, c.agentID, text); err != nil {
			return c.failOutcome(outcome, err)
		}
		outcome.Success = true
		outcome.Output = text
		c.logger.Info("delegation completed", "todo", todoID, "executor", executorID)
	}

	return outcome, nil
}

// runChild spawns the runner and waits, bounded by the delegation
// timeout. The result channel is buffered so a late child can finish
// and exit after a timeout abandoned it.
func (c *Coordinator) runChild(ctx context.Context, executorID string, desc *Descriptor) (string, error, bool) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type childResult struct {
		text string
		err  error
	}
	done := make(chan childResult, 1)
	go func() {
		text, err := c.runner.Run(runCtx, executorID, desc.Type, desc.Mission)
		done <- childResult{text: text, err: err}
	}()

	select {
	case r := <-done:
		// A child racing the deadline still counts as a timeout once
		// the deadline has passed, keeping classification stable.
		if runCtx.Err() == context.DeadlineExceeded {
			return "", runCtx.Err(), true
		}
		return r.text, r.err, false
	case <-runCtx.Done():
		return "", runCtx.Err(), runCtx.Err() == context.DeadlineExceeded
	}
}

// failOutcome splits store failures, which abort the batch, from
// ordinary delegation failures, which become failed outcomes.
func (c *Coordinator) failOutcome(outcome Outcome, err error) (Outcome, error) {
	if errors.GetCode(err) == errors.CodeTodoStoreFailed {
		return outcome, err
	}
	outcome.Success = false
	if outcome.Output == "" {
		outcome.Output = err.Error()
	} else {
		outcome.Output += "; " + err.Error()
	}
	return outcome, nil
}

// missionTitle condenses a mission statement into a todo title: its
// first line, truncated.
func missionTitle(mission string) string {
	title := mission
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(title)
	if len(title) > 120 {
		title = title[:117] + "..."
	}
	if title == "" {
		title = "delegated work"
	}
	return title
}
