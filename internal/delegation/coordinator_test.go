package delegation

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/logging"
	"github.com/otto-ai/otto/internal/todo"
	"github.com/otto-ai/otto/internal/tools"
)

func newCoordinator(t *testing.T, runner Runner, timeout time.Duration) (*Coordinator, *todo.Manager) {
	t.Helper()
	mgr := todo.NewManager(todo.NewMemoryStore(), logging.Discard())
	coord := NewCoordinator(CoordinatorOptions{
		Todos:   mgr,
		Runner:  runner,
		Timeout: timeout,
		AgentID: "conductor",
		Logger:  logging.Discard(),
	})
	return coord, mgr
}

func descriptorResult(requestID string, desc *Descriptor) *tools.Result {
	res := tools.NewSuccessResult(desc)
	res.RequestID = requestID
	res.ToolName = "delegate"
	return res
}

func TestCoordinatorCompletesDelegation(t *testing.T) {
	ctx := context.Background()
	runner := RunnerFunc(func(_ context.Context, executorID string, typ AgentType, mission string) (string, error) {
		require.NotEmpty(t, executorID)
		require.True(t, strings.HasPrefix(executorID, typ.String()+"-"))
		return "child says: " + mission + " is done", nil
	})
	coord, mgr := newCoordinator(t, runner, time.Second)

	outcomes, err := coord.HandleBatch(ctx, "turn-1", []*tools.Result{
		tools.NewSuccessResult("ordinary output"),
		descriptorResult("req-1", &Descriptor{
			Delegated: true,
			Type:      TypeCoder,
			Mission:   "Fix the login bug",
			Rationale: "needs code changes",
		}),
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1, "only delegation descriptors produce outcomes")

	out := outcomes[0]
	assert.Equal(t, "req-1", out.RequestID)
	assert.True(t, out.Success)
	assert.Equal(t, "child says: Fix the login bug is done", out.Output,
		"the child's text is copied verbatim")
	require.NotEmpty(t, out.TodoID)

	td, err := mgr.Get(ctx, out.TodoID)
	require.NoError(t, err)
	assert.Equal(t, todo.StatusCompleted, td.Status)
	assert.Equal(t, "Fix the login bug", td.Title)
	assert.Equal(t, todo.ScopeTurn, td.Scope)
	assert.Equal(t, "turn-1", td.ScopeID)
	assert.Equal(t, out.Output, td.Outcome)
	assert.True(t, strings.HasPrefix(td.ExecutorID, "coder-"))
	require.NotNil(t, td.StartedAt)
	require.NotNil(t, td.CompletedAt)
}

func TestCoordinatorDrivesExistingTodo(t *testing.T) {
	ctx := context.Background()
	runner := RunnerFunc(func(context.Context, string, AgentType, string) (string, error) {
		return "criteria met", nil
	})
	coord, mgr := newCoordinator(t, runner, time.Second)

	td, err := mgr.Create(ctx, todo.CreateParams{
		Title: "Ship it", Scope: todo.ScopeMission, ScopeID: "pillar-1"})
	require.NoError(t, err)

	outcomes, err := coord.HandleBatch(ctx, "turn-1", []*tools.Result{
		descriptorResult("req-2", &Descriptor{
			Delegated: true,
			Type:      TypeReviewer,
			Mission:   "Ship it",
			TodoID:    td.ID,
		}),
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, td.ID, outcomes[0].TodoID)

	got, err := mgr.Get(ctx, td.ID)
	require.NoError(t, err)
	assert.Equal(t, todo.StatusCompleted, got.Status,
		"the conductor completing a child's work satisfies the four-eyes rule")
	assert.Equal(t, "criteria met", got.Outcome)
}

func TestCoordinatorTimeoutStillTerminates(t *testing.T) {
	ctx := context.Background()
	runner := RunnerFunc(func(runCtx context.Context, _ string, _ AgentType, _ string) (string, error) {
		<-runCtx.Done()
		return "", runCtx.Err()
	})
	coord, mgr := newCoordinator(t, runner, 50*time.Millisecond)

	outcomes, err := coord.HandleBatch(ctx, "turn-1", []*tools.Result{
		descriptorResult("req-3", &Descriptor{
			Delegated: true, Type: TypeResearcher, Mission: "Take forever"}),
	})
	require.NoError(t, err, "a timeout is a failed outcome, not a batch error")
	require.Len(t, outcomes, 1)

	out := outcomes[0]
	assert.False(t, out.Success)
	assert.True(t, out.TimedOut)
	assert.Contains(t, out.Output, "timed out")

	td, err := mgr.Get(ctx, out.TodoID)
	require.NoError(t, err)
	assert.True(t, td.Status.Terminal(),
		"a hung child must never leave its todo in_progress")
	assert.Equal(t, todo.StatusCancelled, td.Status)
	assert.Contains(t, td.Outcome, "timed out")
}

func TestCoordinatorChildFailure(t *testing.T) {
	ctx := context.Background()
	runner := RunnerFunc(func(context.Context, string, AgentType, string) (string, error) {
		return "", fmt.Errorf("model refused")
	})
	coord, mgr := newCoordinator(t, runner, time.Second)

	outcomes, err := coord.HandleBatch(ctx, "turn-1", []*tools.Result{
		descriptorResult("req-4", &Descriptor{
			Delegated: true, Type: TypeCoder, Mission: "Doomed work"}),
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	out := outcomes[0]
	assert.False(t, out.Success)
	assert.False(t, out.TimedOut)
	assert.Contains(t, out.Output, "model refused")

	td, err := mgr.Get(ctx, out.TodoID)
	require.NoError(t, err)
	assert.Equal(t, todo.StatusCancelled, td.Status)
}

func TestCoordinatorClaimConflictIsNotFatal(t *testing.T) {
	ctx := context.Background()
	runner := RunnerFunc(func(context.Context, string, AgentType, string) (string, error) {
		return "never runs", nil
	})
	coord, mgr := newCoordinator(t, runner, time.Second)

	td, err := mgr.Create(ctx, todo.CreateParams{Title: "Contested", Scope: todo.ScopeTurn})
	require.NoError(t, err)
	_, err = mgr.Begin(ctx, td.ID, "someone-else")
	require.NoError(t, err)

	outcomes, err := coord.HandleBatch(ctx, "turn-1", []*tools.Result{
		descriptorResult("req-5", &Descriptor{
			Delegated: true, Type: TypeCoder, Mission: "Contested", TodoID: td.ID}),
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Contains(t, outcomes[0].Output, string(todo.StatusInProgress))
}

// failingStore reports outright storage failure on every write.
type failingStore struct {
	todo.Store
}

func (f *failingStore) Create(context.Context, *todo.Todo) error {
	return errors.System(errors.CodeTodoStoreFailed, "storage unavailable")
}

func TestCoordinatorStoreFailureIsFatal(t *testing.T) {
	runner := RunnerFunc(func(context.Context, string, AgentType, string) (string, error) {
		return "never runs", nil
	})
	mgr := todo.NewManager(&failingStore{Store: todo.NewMemoryStore()}, logging.Discard())
	coord := NewCoordinator(CoordinatorOptions{
		Todos: mgr, Runner: runner, Timeout: time.Second,
		AgentID: "conductor", Logger: logging.Discard(),
	})

	_, err := coord.HandleBatch(context.Background(), "turn-1", []*tools.Result{
		descriptorResult("req-6", &Descriptor{
			Delegated: true, Type: TypeCoder, Mission: "Anything"}),
	})
	require.Error(t, err, "a dead store aborts the batch instead of faking an outcome")
	assert.Equal(t, errors.CodeTodoStoreFailed, errors.GetCode(err))
}

func TestMissionTitle(t *testing.T) {
	assert.Equal(t, "Fix bug", missionTitle("Fix bug"))
	assert.Equal(t, "Fix bug", missionTitle("Fix bug\nContext: details"))
	assert.Equal(t, "delegated work", missionTitle("   \n"))

	long := strings.Repeat("x", 200)
	assert.Len(t, missionTitle(long), 120)
}
