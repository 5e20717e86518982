package delegation

import (
	"context"
	"fmt"
	"strings"

	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/todo"
	"github.com/otto-ai/otto/internal/tools"
)

// DelegateTool builds the delegate tool. It validates and describes; it
// never spawns. Failures come back as failed results so the model sees
// them like any other tool failure.
func DelegateTool() tools.Tool {
	schema := tools.NewSchema("delegate",
		"Hand a mission to a specialized child agent. Returns a delegation descriptor; the child is spawned by the conductor.").
		AddParamWithEnum("type", "string", "child agent specialization", DelegableNames(), true).
		AddParam("mission", "string", "what the child agent should accomplish", true).
		AddParam("rationale", "string", "why this work is being delegated", false).
		Private().
		Build()

	return tools.NewFunc(schema, func(_ context.Context, call *tools.Call) (*tools.Result, error) {
		rawType, _ := tools.StringParam(call.Params, "type")

		if p, ok := commandOnlyProfile(rawType); ok {
			return tools.NewErrorResult(errors.User(errors.CodeDelegationRejected,
				fmt.Sprintf("agent type %q cannot be delegated to: use the %s command instead",
					rawType, p.Command))), nil
		}

		typ, ok := ParseAgentType(rawType)
		if !ok {
			return tools.NewErrorResult(errors.Validation("type",
				fmt.Sprintf("unknown agent type %q", rawType), DelegableNames()...)), nil
		}

		mission, _ := tools.StringParam(call.Params, "mission")
		if strings.TrimSpace(mission) == "" {
			return tools.NewErrorResult(errors.Validation("mission", "must not be empty")), nil
		}

		rationale, _ := tools.StringParam(call.Params, "rationale")
		return tools.NewSuccessResult(&Descriptor{
			Delegated: true,
			Type:      typ,
			Mission:   mission,
			Rationale: rationale,
			CallerID:  call.CallerID,
		}), nil
	})
}

// DelegateTodoTool builds the delegate_todo tool. The mission and agent
// type come from the stored todo unless the caller overrides them.
func DelegateTodoTool(todos *todo.Manager) tools.Tool {
	schema := tools.NewSchema("delegate_todo",
		"Delegate an existing pending todo to a child agent. Returns a delegation descriptor referencing the todo.").
		AddParam("todo_id", "string", "ID of the pending todo to delegate", true).
		AddParam("type", "string", "override for the todo's agent type hint", false).
		AddParam("mission", "string", "override for the mission composed from the todo", false).
		Private().
		Build()

	return tools.NewFunc(schema, func(ctx context.Context, call *tools.Call) (*tools.Result, error) {
		id, _ := tools.StringParam(call.Params, "todo_id")
		if id == "" {
			return tools.NewErrorResult(errors.Validation("todo_id", "must not be empty")), nil
		}

		td, err := todos.Get(ctx, id)
		if err != nil {
			return tools.NewErrorResult(err), nil
		}
		if td.Status != todo.StatusPending {
			return tools.NewErrorResult(errors.Validation("todo_id",
				fmt.Sprintf("todo %s is %s: only pending todos can be delegated", id, td.Status))), nil
		}

		typ, errRes := resolveAgentType(call.Params, td)
		if errRes != nil {
			return errRes, nil
		}

		mission, _ := tools.StringParam(call.Params, "mission")
		if strings.TrimSpace(mission) == "" {
			mission = td.Mission()
		}

		return tools.NewSuccessResult(&Descriptor{
			Delegated: true,
			Type:      typ,
			Mission:   mission,
			TodoID:    td.ID,
			CallerID:  call.CallerID,
		}), nil
	})
}

// resolveAgentType picks the child type: explicit override first, then
// the todo's hint, then general. A command-only type is rejected either
// way, so a todo cannot smuggle a planner spawn past the allow-list.
func resolveAgentType(params map[string]any, td *todo.Todo) (AgentType, *tools.Result) {
	tag, _ := tools.StringParam(params, "type")
	field := "type"
	if tag == "" {
		tag = td.AgentTypeHint
		field = "agent_type_hint"
	}
	if tag == "" {
		return TypeGeneral, nil
	}

	if p, ok := commandOnlyProfile(tag); ok {
		return TypeGeneral, tools.NewErrorResult(errors.User(errors.CodeDelegationRejected,
			fmt.Sprintf("agent type %q cannot be delegated to: use the %s command instead",
				tag, p.Command)))
	}
	typ, ok := ParseAgentType(tag)
	if !ok {
		return TypeGeneral, tools.NewErrorResult(errors.Validation(field,
			fmt.Sprintf("unknown agent type %q", tag), DelegableNames()...))
	}
	return typ, nil
}

func commandOnlyProfile(tag string) (Profile, bool) {
	for _, p := range catalog {
		if !p.Delegable && p.Type.String() == tag {
			return p, true
		}
	}
	return Profile{}, false
}

// RegisterTools installs delegate and delegate_todo as private native
// tools, keeping them out of child-agent tool listings.
func RegisterTools(reg *tools.Registry, todos *todo.Manager) error {
	if err := reg.Register(tools.SourceNative, DelegateTool()); err != nil {
		return err
	}
	return reg.Register(tools.SourceNative, DelegateTodoTool(todos))
}
