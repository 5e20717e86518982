package builtin

import (
	"context"
	"fmt"

	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/todo"
	"github.com/otto-ai/otto/internal/tools"
)

// TodoTools builds the todo suite on mgr: todo_create, todo_list,
// todo_update, todo_complete. The calling agent's identity flows in as
// creator, executor, or completer, so the manager's transition rules
// apply to real identities.
func TodoTools(mgr *todo.Manager) []tools.Tool {
	return []tools.Tool{
		todoCreateTool(mgr),
		todoListTool(mgr),
		todoUpdateTool(mgr),
		todoCompleteTool(mgr),
	}
}

func todoCreateTool(mgr *todo.Manager) tools.Tool {
	schema := tools.NewSchema("todo_create", "Create a pending todo for later delegation or tracking").
		AddParam("title", "string", "short imperative description of the work", true).
		AddParam("context", "string", "background the executor needs", false).
		AddParam("completion_criteria", "string", "how to tell the work is done", false).
		AddParam("agent_type", "string", "suggested child agent type for later delegation", false).
		AddParamWithEnum("priority", "string", "ordering hint", []string{
			string(todo.PriorityLow), string(todo.PriorityMedium), string(todo.PriorityHigh)}, false).
		AddParamWithEnum("scope", "string", "who owns the todo (default mission)", []string{
			string(todo.ScopeTurn), string(todo.ScopeMission)}, false).
		AddParam("scope_id", "string", "owning turn or mission id", false).
		Build()

	return tools.NewFunc(schema, func(ctx context.Context, call *tools.Call) (*tools.Result, error) {
		title, _ := tools.StringParam(call.Params, "title")
		background, _ := tools.StringParam(call.Params, "context")
		criteria, _ := tools.StringParam(call.Params, "completion_criteria")
		hint, _ := tools.StringParam(call.Params, "agent_type")
		priority, _ := tools.StringParam(call.Params, "priority")
		scope, _ := tools.StringParam(call.Params, "scope")
		if scope == "" {
			scope = string(todo.ScopeMission)
		}
		scopeID, _ := tools.StringParam(call.Params, "scope_id")

		td, err := mgr.Create(ctx, todo.CreateParams{
			Title:              title,
			Context:            background,
			CompletionCriteria: criteria,
			AgentTypeHint:      hint,
			Priority:           todo.Priority(priority),
			Scope:              todo.Scope(scope),
			ScopeID:            scopeID,
			CreatorID:          call.CallerID,
		})
		if err != nil {
			return tools.NewErrorResult(err), nil
		}
		return tools.NewSuccessResult(td), nil
	})
}

func todoListTool(mgr *todo.Manager) tools.Tool {
	schema := tools.NewSchema("todo_list", "List todos, optionally filtered by status or scope").
		AddParamWithEnum("status", "string", "only todos in this status", []string{
			string(todo.StatusPending), string(todo.StatusInProgress),
			string(todo.StatusCompleted), string(todo.StatusCancelled)}, false).
		AddParamWithEnum("scope", "string", "only todos with this scope", []string{
			string(todo.ScopeTurn), string(todo.ScopeMission)}, false).
		Build()

	return tools.NewFunc(schema, func(ctx context.Context, call *tools.Call) (*tools.Result, error) {
		status, _ := tools.StringParam(call.Params, "status")
		scope, _ := tools.StringParam(call.Params, "scope")

		list, err := mgr.List(ctx, todo.Filter{
			Status: todo.Status(status),
			Scope:  todo.Scope(scope),
		})
		if err != nil {
			return tools.NewErrorResult(err), nil
		}
		return tools.NewSuccessResult(map[string]any{
			"count": len(list),
			"todos": list,
		}), nil
	})
}

func todoUpdateTool(mgr *todo.Manager) tools.Tool {
	schema := tools.NewSchema("todo_update", "Move a todo to in_progress or cancelled").
		AddParam("todo_id", "string", "todo to transition", true).
		AddParamWithEnum("status", "string", "target status", []string{
			string(todo.StatusInProgress), string(todo.StatusCancelled)}, true).
		AddParam("reason", "string", "why the todo is being cancelled", false).
		Build()

	return tools.NewFunc(schema, func(ctx context.Context, call *tools.Call) (*tools.Result, error) {
		id, _ := tools.StringParam(call.Params, "todo_id")
		if id == "" {
			return tools.NewErrorResult(errors.Validation("todo_id", "must not be empty")), nil
		}
		status, _ := tools.StringParam(call.Params, "status")

		var (
			td  *todo.Todo
			err error
		)
		switch todo.Status(status) {
		case todo.StatusInProgress:
			td, err = mgr.Begin(ctx, id, call.CallerID)
		case todo.StatusCancelled:
			reason, _ := tools.StringParam(call.Params, "reason")
			if reason == "" {
				reason = "cancelled by " + call.CallerID
			}
			td, err = mgr.Cancel(ctx, id, reason)
		case todo.StatusCompleted:
			return tools.NewErrorResult(errors.Validation("status",
				"completion requires an outcome: use todo_complete")), nil
		default:
			return tools.NewErrorResult(errors.Validation("status",
				fmt.Sprintf("unknown status %q", status),
				string(todo.StatusInProgress), string(todo.StatusCancelled))), nil
		}
		if err != nil {
			return tools.NewErrorResult(err), nil
		}
		return tools.NewSuccessResult(td), nil
	})
}

func todoCompleteTool(mgr *todo.Manager) tools.Tool {
	schema := tools.NewSchema("todo_complete", "Complete an in-progress todo with an outcome").
		AddParam("todo_id", "string", "todo to complete", true).
		AddParam("outcome", "string", "what was done and what resulted", true).
		Build()

	return tools.NewFunc(schema, func(ctx context.Context, call *tools.Call) (*tools.Result, error) {
		id, _ := tools.StringParam(call.Params, "todo_id")
		if id == "" {
			return tools.NewErrorResult(errors.Validation("todo_id", "must not be empty")), nil
		}
		outcome, _ := tools.StringParam(call.Params, "outcome")
		if outcome == "" {
			return tools.NewErrorResult(errors.Validation("outcome", "must not be empty")), nil
		}

		td, err := mgr.Complete(ctx, id, call.CallerID, outcome)
		if err != nil {
			return tools.NewErrorResult(err), nil
		}
		return tools.NewSuccessResult(td), nil
	})
}
