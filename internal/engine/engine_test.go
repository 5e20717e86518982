package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/events"
	"github.com/otto-ai/otto/internal/logging"
	"github.com/otto-ai/otto/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder collects bus events so tests can assert sequences.
type recorder struct {
	mu  sync.Mutex
	all []events.Event
}

func (r *recorder) handle(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, ev)
	return nil
}

func (r *recorder) forRequest(id string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.all {
		if events.RequestID(ev) == id {
			out = append(out, ev)
		}
	}
	return out
}

func echoTool(name string) tools.Tool {
	return tools.NewFunc(
		tools.NewSchema(name, "echoes its value parameter").
			AddParam("value", "string", "value to echo", true).
			Build(),
		func(_ context.Context, call *tools.Call) (*tools.Result, error) {
			v, _ := tools.StringParam(call.Params, "value")
			return tools.NewSuccessResult(v), nil
		})
}

func newTestEngine(t *testing.T) (*Engine, *recorder) {
	t.Helper()
	reg := tools.NewRegistry(logging.Discard())
	eng := New(Options{Registry: reg, Logger: logging.Discard()})
	rec := &recorder{}
	eng.Bus().Subscribe(rec.handle)
	return eng, rec
}

func TestDispatchSuccess(t *testing.T) {
	eng, rec := newTestEngine(t)
	require.NoError(t, eng.Registry().Register(tools.SourceNative, echoTool("echo")))

	res := eng.Dispatch(context.Background(), tools.Request{
		ToolName:   "echo",
		Source:     tools.SourceNative,
		Parameters: map[string]any{"value": "hello"},
		CallerID:   "turn-1",
	})

	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, "hello", res.Output)
	assert.Equal(t, "echo", res.ToolName)
	assert.NotEmpty(t, res.RequestID, "blank request IDs get assigned")
	assert.False(t, res.StartTime.IsZero())
	assert.False(t, res.EndTime.Before(res.StartTime))

	seq := rec.forRequest(res.RequestID)
	require.Len(t, seq, 2)
	assert.Equal(t, events.KindRequested, seq[0].Kind())
	assert.Equal(t, events.KindFinished, seq[1].Kind())

	fin := seq[1].(events.Finished)
	assert.True(t, fin.Success)
	assert.Equal(t, "echo", fin.ToolName)
}

func TestDispatchKeepsCallerID(t *testing.T) {
	eng, rec := newTestEngine(t)
	require.NoError(t, eng.Registry().Register(tools.SourceNative, echoTool("echo")))

	res := eng.Dispatch(context.Background(), tools.Request{
		ID:         "req-7",
		ToolName:   "echo",
		Source:     tools.SourceNative,
		Parameters: map[string]any{"value": "x"},
		CallerID:   "child-3",
	})

	assert.Equal(t, "req-7", res.RequestID)
	req := rec.forRequest("req-7")[0].(events.Requested)
	assert.Equal(t, "child-3", req.CallerID)
	assert.Equal(t, tools.SourceNative, req.Source)
}

func TestDispatchToolNotFound(t *testing.T) {
	eng, rec := newTestEngine(t)

	res := eng.Dispatch(context.Background(), tools.Request{
		ToolName: "missing",
		Source:   tools.SourceNative,
	})

	require.NotNil(t, res)
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, errors.CodeToolNotFound, res.Error.Code)
	assert.Contains(t, res.Error.Message, "missing")

	seq := rec.forRequest(res.RequestID)
	require.Len(t, seq, 2, "lookup failures still emit Requested and Finished")
	fin := seq[1].(events.Finished)
	assert.False(t, fin.Success)
	assert.Equal(t, errors.CodeToolNotFound, fin.Error.Code)
}

func TestDispatchRequestedCarriesDeclaredSource(t *testing.T) {
	eng, rec := newTestEngine(t)
	require.NoError(t, eng.Registry().Register(tools.SourceNative, echoTool("echo")))

	// Resolution is scoped to the declared namespace, so asking the user
	// namespace for a native-only tool fails, but the Requested event
	// still reports what the caller asked for.
	res := eng.Dispatch(context.Background(), tools.Request{
		ToolName: "echo",
		Source:   tools.SourceUser,
	})

	assert.False(t, res.Success)
	assert.Equal(t, errors.CodeToolNotFound, res.Error.Code)
	req := rec.forRequest(res.RequestID)[0].(events.Requested)
	assert.Equal(t, tools.SourceUser, req.Source)
}

func TestDispatchExecutionError(t *testing.T) {
	eng, rec := newTestEngine(t)
	failing := tools.NewFunc(
		tools.NewSchema("broken", "always fails").Build(),
		func(context.Context, *tools.Call) (*tools.Result, error) {
			return nil, errors.Permanent(errors.CodeFileNotFound, "no such file: /tmp/nope")
		})
	require.NoError(t, eng.Registry().Register(tools.SourceNative, failing))

	res := eng.Dispatch(context.Background(), tools.Request{
		ToolName: "broken",
		Source:   tools.SourceNative,
	})

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, errors.CodeFileNotFound, res.Error.Code)
	assert.Contains(t, res.Error.Message, "/tmp/nope")

	fin := rec.forRequest(res.RequestID)[1].(events.Finished)
	assert.False(t, fin.Success)
}

func TestDispatchPanicBecomesFailure(t *testing.T) {
	eng, rec := newTestEngine(t)
	panicky := tools.NewFunc(
		tools.NewSchema("panicky", "panics on execute").Build(),
		func(context.Context, *tools.Call) (*tools.Result, error) {
			panic("index out of range")
		})
	require.NoError(t, eng.Registry().Register(tools.SourceNative, panicky))

	res := eng.Dispatch(context.Background(), tools.Request{
		ToolName: "panicky",
		Source:   tools.SourceNative,
	})

	require.NotNil(t, res)
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, errors.CodeToolExecutionFailed, res.Error.Code)
	assert.Contains(t, res.Error.Message, "index out of range")

	seq := rec.forRequest(res.RequestID)
	require.Len(t, seq, 2, "a panicking tool still yields exactly one Finished")
	assert.Equal(t, events.KindFinished, seq[1].Kind())
}

func TestDispatchNilResult(t *testing.T) {
	eng, _ := newTestEngine(t)
	hollow := tools.NewFunc(
		tools.NewSchema("hollow", "returns nothing").Build(),
		func(context.Context, *tools.Call) (*tools.Result, error) {
			return nil, nil
		})
	require.NoError(t, eng.Registry().Register(tools.SourceNative, hollow))

	res := eng.Dispatch(context.Background(), tools.Request{
		ToolName: "hollow",
		Source:   tools.SourceNative,
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error.Message, "no result")
}

func TestDispatchProgressEvents(t *testing.T) {
	eng, rec := newTestEngine(t)
	stepper := tools.NewFunc(
		tools.NewSchema("stepper", "reports progress").Build(),
		func(_ context.Context, call *tools.Call) (*tools.Result, error) {
			call.ReportProgress(1, 3, "reading")
			call.ReportProgress(2, 3, "parsing")
			call.ReportProgress(3, 3, "done")
			return tools.NewSuccessResult("ok"), nil
		})
	require.NoError(t, eng.Registry().Register(tools.SourceNative, stepper))

	res := eng.Dispatch(context.Background(), tools.Request{
		ToolName: "stepper",
		Source:   tools.SourceNative,
	})
	require.True(t, res.Success)

	seq := rec.forRequest(res.RequestID)
	require.Len(t, seq, 5)
	assert.Equal(t, events.KindRequested, seq[0].Kind())
	for i, want := range []string{"reading", "parsing", "done"} {
		prog, ok := seq[i+1].(events.Progress)
		require.True(t, ok)
		assert.Equal(t, i+1, prog.Current)
		assert.Equal(t, 3, prog.Total)
		assert.Equal(t, want, prog.Message)
	}
	assert.Equal(t, events.KindFinished, seq[4].Kind())
}

func TestDispatchTimingWrapsImplementationOnly(t *testing.T) {
	eng, _ := newTestEngine(t)
	slow := tools.NewFunc(
		tools.NewSchema("slow", "sleeps briefly").Build(),
		func(context.Context, *tools.Call) (*tools.Result, error) {
			time.Sleep(30 * time.Millisecond)
			return tools.NewSuccessResult("ok"), nil
		})
	require.NoError(t, eng.Registry().Register(tools.SourceNative, slow))

	res := eng.Dispatch(context.Background(), tools.Request{
		ToolName: "slow",
		Source:   tools.SourceNative,
	})

	assert.GreaterOrEqual(t, res.DurationMs, int64(25))
	assert.Equal(t, res.DurationMs, res.EndTime.Sub(res.StartTime).Milliseconds())
}

func TestStatsSnapshot(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.Registry().Register(tools.SourceNative, echoTool("echo")))

	for i := 0; i < 3; i++ {
		eng.Dispatch(context.Background(), tools.Request{
			ToolName:   "echo",
			Source:     tools.SourceNative,
			Parameters: map[string]any{"value": "x"},
		})
	}
	eng.Dispatch(context.Background(), tools.Request{
		ToolName: "missing",
		Source:   tools.SourceNative,
	})

	snap := eng.Stats()
	assert.Equal(t, int64(4), snap.DispatchCount)
	assert.Equal(t, int64(1), snap.FailureCount)
	assert.Equal(t, int64(3), snap.PerTool["echo"])
	assert.Greater(t, snap.Goroutines, 0)
}
