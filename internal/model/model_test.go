package model

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeModel scripts Generate outcomes for router tests.
type fakeModel struct {
	name  string
	resp  *Response
	err   error
	calls int
}

func (f *fakeModel) Generate(ctx context.Context, req *Request) (*Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeModel) Name() string { return f.name }

func TestRouterUsesPrimary(t *testing.T) {
	primary := &fakeModel{name: "a/one", resp: &Response{Text: "primary"}}
	fallback := &fakeModel{name: "b/two", resp: &Response{Text: "fallback"}}
	r := NewRouter(primary, fallback, logging.Discard())

	resp, err := r.Generate(context.Background(), &Request{Messages: []Message{UserMessage("hi")}})

	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
	assert.Equal(t, 0, fallback.calls)
	assert.Equal(t, "a/one", r.Name())
}

func TestRouterFallsBackOnServerError(t *testing.T) {
	primary := &fakeModel{
		name: "a/one",
		err:  errors.Temporary(errors.CodeModelUnavailable, "503 service unavailable"),
	}
	fallback := &fakeModel{name: "b/two", resp: &Response{Text: "fallback"}}
	r := NewRouter(primary, fallback, logging.Discard())

	resp, err := r.Generate(context.Background(), &Request{Messages: []Message{UserMessage("hi")}})

	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestRouterSkipsFallbackOnCallerError(t *testing.T) {
	primary := &fakeModel{
		name: "a/one",
		err:  errors.User(errors.CodeInvalidInput, "malformed request"),
	}
	fallback := &fakeModel{name: "b/two", resp: &Response{Text: "fallback"}}
	r := NewRouter(primary, fallback, logging.Discard())

	_, err := r.Generate(context.Background(), &Request{Messages: []Message{UserMessage("hi")}})

	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
	assert.Equal(t, 0, fallback.calls)
}

func TestRouterSkipsFallbackWhenContextDone(t *testing.T) {
	primary := &fakeModel{
		name: "a/one",
		err:  errors.Temporary(errors.CodeModelUnavailable, "timed out"),
	}
	fallback := &fakeModel{name: "b/two", resp: &Response{Text: "fallback"}}
	r := NewRouter(primary, fallback, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Generate(ctx, &Request{Messages: []Message{UserMessage("hi")}})

	require.Error(t, err)
	assert.Equal(t, 0, fallback.calls)
}

func TestRouterSurfacesPrimaryErrorWhenFallbackFails(t *testing.T) {
	primary := &fakeModel{
		name: "a/one",
		err:  errors.Temporary(errors.CodeModelUnavailable, "primary down"),
	}
	fallback := &fakeModel{
		name: "b/two",
		err:  errors.Temporary(errors.CodeModelUnavailable, "fallback down"),
	}
	r := NewRouter(primary, fallback, logging.Discard())

	_, err := r.Generate(context.Background(), &Request{Messages: []Message{UserMessage("hi")}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary down")
	assert.Equal(t, 1, fallback.calls)
}

func TestRouterWithoutFallback(t *testing.T) {
	primary := &fakeModel{
		name: "a/one",
		err:  errors.Temporary(errors.CodeModelUnavailable, "down"),
	}
	r := NewRouter(primary, nil, logging.Discard())

	_, err := r.Generate(context.Background(), &Request{Messages: []Message{UserMessage("hi")}})

	require.Error(t, err)
	assert.Equal(t, errors.CodeModelUnavailable, errors.GetCode(err))
}

func TestClassifyProviderErr(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		code      string
		retryable bool
	}{
		{"rate limit", "429 Too Many Requests", errors.CodeModelRateLimit, true},
		{"overloaded", "anthropic: overloaded_error", errors.CodeModelRateLimit, true},
		{"server error", "upstream returned 502 Bad Gateway", errors.CodeModelUnavailable, true},
		{"unavailable", "service unavailable, try again later", errors.CodeModelUnavailable, true},
		{"billing", "Billing hard limit reached", errors.CodeModelUnavailable, false},
		{"quota", "quota exceeded for this account", errors.CodeModelUnavailable, false},
		{"auth", "Invalid API key provided", errors.CodeModelUnavailable, false},
		{"unknown", "unexpected end of stream", errors.CodeModelInvalidResponse, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyProviderErr(stderrors.New(tc.raw))
			require.Error(t, err)
			assert.Equal(t, tc.code, errors.GetCode(err))
			assert.Equal(t, tc.retryable, errors.IsRetryable(err))
			assert.Contains(t, err.Error(), tc.raw)
		})
	}

	assert.NoError(t, classifyProviderErr(nil))
}

func TestParseToolCallArgs(t *testing.T) {
	m := &FantasyModel{logger: logging.Discard()}

	tc := m.parseToolCall("c1", "file_read", `{"path":"notes.txt","limit":3}`)
	assert.Equal(t, "c1", tc.ID)
	assert.Equal(t, "file_read", tc.Name)
	assert.Equal(t, "notes.txt", tc.Args["path"])
	assert.EqualValues(t, 3, tc.Args["limit"])

	malformed := m.parseToolCall("c2", "file_read", `{"path": unquoted}`)
	assert.Nil(t, malformed.Args)

	empty := m.parseToolCall("c3", "todo_list", "")
	assert.Nil(t, empty.Args)
}

func TestBuildCallShapesPrompt(t *testing.T) {
	m := &FantasyModel{maxTokens: 4096, logger: logging.Discard()}
	req := &Request{
		System: "be brief",
		Messages: []Message{
			UserMessage("read the file"),
			{
				Role:    RoleAssistant,
				Content: "on it",
				ToolCalls: []ToolCall{
					{ID: "c1", Name: "file_read", Args: map[string]any{"path": "a.txt"}},
				},
			},
			ToolMessage("c1", "file contents"),
		},
		Tools: []Tool{
			{Name: "file_read", Description: "reads files", Parameters: map[string]any{"type": "object"}},
		},
	}

	call := m.buildCall(req)

	assert.Len(t, call.Prompt, 4)
	assert.Len(t, call.Tools, 1)
	require.NotNil(t, call.MaxOutputTokens)
	assert.EqualValues(t, 4096, *call.MaxOutputTokens)

	req.MaxTokens = 128
	call = m.buildCall(req)
	assert.EqualValues(t, 128, *call.MaxOutputTokens)
}

func TestTranscriptHelpers(t *testing.T) {
	resp := &Response{
		Text:      "done",
		ToolCalls: []ToolCall{{ID: "c1", Name: "web_fetch", Args: map[string]any{"url": "https://example.com"}}},
	}

	msg := AssistantMessage(resp)
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, "done", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "web_fetch", msg.ToolCalls[0].Name)

	user := UserMessage("hello")
	assert.Equal(t, RoleUser, user.Role)

	tool := ToolMessage("c1", "<html>")
	assert.Equal(t, RoleTool, tool.Role)
	assert.Equal(t, "c1", tool.ToolCallID)
}
