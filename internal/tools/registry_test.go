package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otto-ai/otto/internal/errors"
)

func echoTool(name string) Tool {
	return NewFunc(
		NewSchema(name, "echoes its input").AddParam("text", "string", "text to echo", true).Build(),
		func(ctx context.Context, call *Call) (*Result, error) {
			text, _ := StringParam(call.Params, "text")
			return NewSuccessResult(text), nil
		},
	)
}

func privateTool(name string) Tool {
	return NewFunc(
		NewSchema(name, "hidden from constrained listings").Private().Build(),
		func(ctx context.Context, call *Call) (*Result, error) {
			return NewSuccessResult(nil), nil
		},
	)
}

func TestRegisterAndResolve(t *testing.T) {
	reg := NewRegistry(nil)

	require.NoError(t, reg.Register(SourceNative, echoTool("echo")))
	require.NoError(t, reg.Register(SourceUser, echoTool("shout")))
	require.NoError(t, reg.Register(SourceRemote, echoTool("search__web")))

	tool, err := reg.Resolve(SourceNative, "echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", tool.Name())

	_, err = reg.Resolve(SourceUser, "echo")
	require.Error(t, err)
	assert.Equal(t, errors.CodeToolNotFound, errors.GetCode(err))
}

func TestNamespacesAreDisjoint(t *testing.T) {
	reg := NewRegistry(nil)

	require.NoError(t, reg.Register(SourceUser, echoTool("summarize")))

	_, err := reg.Resolve(SourceNative, "summarize")
	require.Error(t, err)
	_, err = reg.Resolve(SourceRemote, "summarize")
	require.Error(t, err)

	tool, err := reg.Resolve(SourceUser, "summarize")
	require.NoError(t, err)
	assert.Equal(t, "summarize", tool.Name())
}

func TestNativeWinsUserCollision(t *testing.T) {
	reg := NewRegistry(nil)

	require.NoError(t, reg.Register(SourceNative, echoTool("file_read")))

	err := reg.Register(SourceUser, echoTool("file_read"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeToolNameConflict, errors.GetCode(err))

	// The native implementation is untouched and the user namespace empty.
	_, resolveErr := reg.Resolve(SourceNative, "file_read")
	assert.NoError(t, resolveErr)
	assert.Empty(t, reg.Names(SourceUser))
}

func TestRemoteCollisionRejected(t *testing.T) {
	reg := NewRegistry(nil)

	require.NoError(t, reg.Register(SourceNative, echoTool("web_fetch")))
	require.NoError(t, reg.Register(SourceUser, echoTool("notes")))

	require.Error(t, reg.Register(SourceRemote, echoTool("web_fetch")))
	require.Error(t, reg.Register(SourceRemote, echoTool("notes")))
	require.NoError(t, reg.Register(SourceRemote, echoTool("srv__notes")))
}

func TestLookupPrecedence(t *testing.T) {
	reg := NewRegistry(nil)

	require.NoError(t, reg.Register(SourceRemote, echoTool("probe")))
	_, source, ok := reg.Lookup("probe")
	require.True(t, ok)
	assert.Equal(t, SourceRemote, source)

	require.NoError(t, reg.Register(SourceUser, echoTool("probe")))
	_, source, ok = reg.Lookup("probe")
	require.True(t, ok)
	assert.Equal(t, SourceUser, source)

	_, _, ok = reg.Lookup("absent")
	assert.False(t, ok)
}

func TestListExcludesPrivateForConstrainedCallers(t *testing.T) {
	reg := NewRegistry(nil)

	require.NoError(t, reg.Register(SourceNative, echoTool("echo")))
	require.NoError(t, reg.Register(SourceNative, privateTool("delegate")))

	visible := reg.List(false)
	require.Len(t, visible, 1)
	assert.Equal(t, "echo", visible[0].Name())

	all := reg.List(true)
	assert.Len(t, all, 2)

	// Private tools stay resolvable.
	_, err := reg.Resolve(SourceNative, "delegate")
	assert.NoError(t, err)
}

func TestListSorted(t *testing.T) {
	reg := NewRegistry(nil)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(SourceNative, echoTool(name)))
	}

	listed := reg.List(true)
	require.Len(t, listed, 3)
	assert.Equal(t, "alpha", listed[0].Name())
	assert.Equal(t, "mid", listed[1].Name())
	assert.Equal(t, "zeta", listed[2].Name())
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "native", SourceNative.String())
	assert.Equal(t, "user", SourceUser.String())
	assert.Equal(t, "remote", SourceRemote.String())

	src, ok := ParseSource("remote")
	require.True(t, ok)
	assert.Equal(t, SourceRemote, src)
	_, ok = ParseSource("cloud")
	assert.False(t, ok)
}

func TestResultModelPayload(t *testing.T) {
	plain := NewSuccessResult(map[string]any{"n": 1})
	assert.Equal(t, map[string]any{"n": 1}, plain.ModelPayload())

	display := NewDisplayResult("<html>big page</html>", "Page summary")
	assert.Equal(t, "Page summary", display.ModelPayload())

	failed := NewErrorResult(errors.Permanent(errors.CodeToolNotFound, "tool not found: x"))
	assert.Contains(t, failed.ModelPayload().(string), "TOOL_NOT_FOUND")
}

func TestNewErrorResultCapturesCode(t *testing.T) {
	res := NewErrorResult(errors.Validation("mission", "must not be empty"))

	require.NotNil(t, res.Error)
	assert.False(t, res.Success)
	assert.Equal(t, errors.CodeValidationFailed, res.Error.Code)
	assert.Contains(t, res.Error.Message, "mission")
}
