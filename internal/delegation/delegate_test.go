package delegation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/logging"
	"github.com/otto-ai/otto/internal/todo"
	"github.com/otto-ai/otto/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func execute(t *testing.T, tool tools.Tool, params map[string]any) *tools.Result {
	t.Helper()
	res, err := tool.Execute(context.Background(),
		tools.NewCall("req-1", "conductor", params, nil))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestDelegateSuccess(t *testing.T) {
	res := execute(t, DelegateTool(), map[string]any{
		"type":      "researcher",
		"mission":   "Find prior art on CRDT garbage collection",
		"rationale": "outside the coder's lane",
	})

	require.True(t, res.Success)
	desc, ok := FromResult(res)
	require.True(t, ok)
	assert.True(t, desc.Delegated)
	assert.Equal(t, TypeResearcher, desc.Type)
	assert.Equal(t, "Find prior art on CRDT garbage collection", desc.Mission)
	assert.Equal(t, "outside the coder's lane", desc.Rationale)
	assert.Equal(t, "conductor", desc.CallerID)
	assert.Empty(t, desc.TodoID)
}

func TestDelegateCommandOnlyTypes(t *testing.T) {
	for _, p := range Catalog() {
		if p.Delegable {
			continue
		}
		res := execute(t, DelegateTool(), map[string]any{
			"type":    p.Type.String(),
			"mission": "should never run",
		})

		assert.False(t, res.Success, "type %s must be rejected", p.Type)
		require.NotNil(t, res.Error)
		assert.Equal(t, errors.CodeDelegationRejected, res.Error.Code)
		assert.Contains(t, res.Error.Message, p.Command,
			"rejection must name the command that reaches %s", p.Type)
	}
}

func TestDelegateUnknownType(t *testing.T) {
	res := execute(t, DelegateTool(), map[string]any{
		"type":    "wizard",
		"mission": "cast a spell",
	})

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	for _, name := range DelegableNames() {
		assert.Contains(t, res.Error.Message, name,
			"validation errors list the allowed set")
	}
}

func TestDelegateEmptyMission(t *testing.T) {
	res := execute(t, DelegateTool(), map[string]any{
		"type":    "coder",
		"mission": "   \n  ",
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error.Message, "mission")
}

func newTodoManager(t *testing.T) *todo.Manager {
	t.Helper()
	return todo.NewManager(todo.NewMemoryStore(), logging.Discard())
}

func TestDelegateTodoMissionComposition(t *testing.T) {
	ctx := context.Background()
	mgr := newTodoManager(t)

	bare, err := mgr.Create(ctx, todo.CreateParams{Title: "Fix bug", Scope: todo.ScopeTurn})
	require.NoError(t, err)

	res := execute(t, DelegateTodoTool(mgr), map[string]any{"todo_id": bare.ID})
	require.True(t, res.Success, "error: %v", res.Error)
	desc, ok := FromResult(res)
	require.True(t, ok)
	assert.Equal(t, "Fix bug", desc.Mission,
		"a todo without context or criteria delegates its title alone")
	assert.Equal(t, bare.ID, desc.TodoID)
	assert.Equal(t, TypeGeneral, desc.Type)

	full, err := mgr.Create(ctx, todo.CreateParams{
		Title:              "Fix bug",
		Context:            "crash on empty input",
		CompletionCriteria: "regression test passes",
		Scope:              todo.ScopeTurn,
	})
	require.NoError(t, err)

	res = execute(t, DelegateTodoTool(mgr), map[string]any{"todo_id": full.ID})
	require.True(t, res.Success)
	desc, _ = FromResult(res)
	assert.Equal(t,
		"Fix bug\nContext: crash on empty input\nCompletion criteria: regression test passes",
		desc.Mission)

	res = execute(t, DelegateTodoTool(mgr), map[string]any{
		"todo_id": full.ID,
		"mission": "Just fix it",
	})
	require.True(t, res.Success)
	desc, _ = FromResult(res)
	assert.Equal(t, "Just fix it", desc.Mission, "explicit mission overrides composition")
}

func TestDelegateTodoRequiresPending(t *testing.T) {
	ctx := context.Background()
	mgr := newTodoManager(t)

	td, err := mgr.Create(ctx, todo.CreateParams{Title: "Claimed already", Scope: todo.ScopeTurn})
	require.NoError(t, err)
	_, err = mgr.Begin(ctx, td.ID, "child-1")
	require.NoError(t, err)

	res := execute(t, DelegateTodoTool(mgr), map[string]any{"todo_id": td.ID})
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Contains(t, res.Error.Message, string(todo.StatusInProgress),
		"the failure names the todo's actual status")

	_, err = mgr.Complete(ctx, td.ID, "reviewer", "done")
	require.NoError(t, err)
	res = execute(t, DelegateTodoTool(mgr), map[string]any{"todo_id": td.ID})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error.Message, string(todo.StatusCompleted))
}

func TestDelegateTodoMissing(t *testing.T) {
	res := execute(t, DelegateTodoTool(newTodoManager(t)), map[string]any{
		"todo_id": "no-such-todo",
	})
	assert.False(t, res.Success)
	assert.Equal(t, errors.CodeTodoNotFound, res.Error.Code)
}

func TestDelegateTodoTypeResolution(t *testing.T) {
	ctx := context.Background()
	mgr := newTodoManager(t)

	hinted, err := mgr.Create(ctx, todo.CreateParams{
		Title: "Refactor parser", AgentTypeHint: "coder", Scope: todo.ScopeTurn})
	require.NoError(t, err)

	res := execute(t, DelegateTodoTool(mgr), map[string]any{"todo_id": hinted.ID})
	require.True(t, res.Success)
	desc, _ := FromResult(res)
	assert.Equal(t, TypeCoder, desc.Type, "stored hint decides the type")

	res = execute(t, DelegateTodoTool(mgr), map[string]any{
		"todo_id": hinted.ID, "type": "reviewer"})
	require.True(t, res.Success)
	desc, _ = FromResult(res)
	assert.Equal(t, TypeReviewer, desc.Type, "explicit type overrides the hint")

	smuggled, err := mgr.Create(ctx, todo.CreateParams{
		Title: "Sneaky planning", AgentTypeHint: "planner", Scope: todo.ScopeTurn})
	require.NoError(t, err)
	res = execute(t, DelegateTodoTool(mgr), map[string]any{"todo_id": smuggled.ID})
	assert.False(t, res.Success, "a todo hint cannot reach a command-only type")
	assert.Equal(t, errors.CodeDelegationRejected, res.Error.Code)
	assert.Contains(t, res.Error.Message, "/plan")

	garbage, err := mgr.Create(ctx, todo.CreateParams{
		Title: "Confused hint", AgentTypeHint: "wizard", Scope: todo.ScopeTurn})
	require.NoError(t, err)
	res = execute(t, DelegateTodoTool(mgr), map[string]any{"todo_id": garbage.ID})
	assert.False(t, res.Success)
	assert.Equal(t, errors.CodeValidationFailed, res.Error.Code)
}

func TestFromResultDetection(t *testing.T) {
	plain := tools.NewSuccessResult("just text")
	_, ok := FromResult(plain)
	assert.False(t, ok, "ordinary output is never mistaken for delegation")

	mapShaped := tools.NewSuccessResult(map[string]any{"delegated": true})
	_, ok = FromResult(mapShaped)
	assert.False(t, ok, "detection is by type, not by shape")

	failed := tools.NewErrorResult(errors.Permanent(errors.CodeToolExecutionFailed, "boom"))
	failed.Output = &Descriptor{Delegated: true, Type: TypeCoder, Mission: "m"}
	_, ok = FromResult(failed)
	assert.False(t, ok, "failed results never delegate")

	_, ok = FromResult(nil)
	assert.False(t, ok)

	real := tools.NewSuccessResult(&Descriptor{Delegated: true, Type: TypeCoder, Mission: "m"})
	desc, ok := FromResult(real)
	require.True(t, ok)
	assert.Equal(t, TypeCoder, desc.Type)
}

func TestDelegateToolsArePrivate(t *testing.T) {
	reg := tools.NewRegistry(logging.Discard())
	require.NoError(t, RegisterTools(reg, newTodoManager(t)))

	for _, tool := range reg.List(false) {
		assert.NotEqual(t, "delegate", tool.Name())
		assert.NotEqual(t, "delegate_todo", tool.Name())
	}

	var names []string
	for _, tool := range reg.List(true) {
		names = append(names, tool.Name())
	}
	assert.Contains(t, names, "delegate")
	assert.Contains(t, names, "delegate_todo")
}

func TestDescriptorJSONRoundTrip(t *testing.T) {
	desc := &Descriptor{
		Delegated: true,
		Type:      TypeResearcher,
		Mission:   "Survey the field",
		TodoID:    "t-1",
		CallerID:  "conductor",
	}

	data, err := json.Marshal(desc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"researcher"`,
		"agent types serialize as their tags")

	var back Descriptor
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, *desc, back)

	var bad Descriptor
	err = json.Unmarshal([]byte(`{"delegated":true,"type":"wizard","mission":"m"}`), &bad)
	require.Error(t, err, "unknown tags are rejected, not defaulted")
}
