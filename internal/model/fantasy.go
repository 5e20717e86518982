package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/google"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openaicompat"
	"github.com/charmbracelet/log"

	"github.com/otto-ai/otto/internal/config"
	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/logging"
)

const defaultMaxTokens = 8192

// FantasyModel adapts a fantasy language model to the Model interface.
type FantasyModel struct {
	model     fantasy.LanguageModel
	name      string
	maxTokens int
	retry     *errors.Policy
	logger    *log.Logger
}

// NewFantasy builds a model client for the configured provider.
func NewFantasy(ctx context.Context, cfg config.ModelConfig, logger *log.Logger) (*FantasyModel, error) {
	provider, err := newProvider(cfg.Provider, resolveAPIKey(cfg.Provider, cfg.APIKeyEnv), cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	lm, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeModelUnavailable,
			fmt.Sprintf("model %s not available from %s", cfg.Model, cfg.Provider),
			errors.CategorySystem)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &FantasyModel{
		model:     lm,
		name:      cfg.Provider + "/" + cfg.Model,
		maxTokens: maxTokens,
		retry:     errors.SlowPolicy(),
		logger:    logging.Or(logger),
	}, nil
}

// newProvider constructs the fantasy provider for a provider name.
func newProvider(name, key, baseURL string) (fantasy.Provider, error) {
	switch name {
	case "anthropic":
		return anthropic.New(anthropic.WithAPIKey(key))
	case "openai":
		return openai.New(openai.WithAPIKey(key))
	case "google":
		return google.New(google.WithGeminiAPIKey(key))
	case "openaicompat":
		if baseURL == "" {
			return nil, errors.Validation("model.base_url", "required for openaicompat providers")
		}
		return openaicompat.New(
			openaicompat.WithBaseURL(baseURL),
			openaicompat.WithAPIKey(key),
			openaicompat.WithName("openaicompat"),
		)
	default:
		return nil, errors.Validation("model.provider", fmt.Sprintf("unknown provider %q", name),
			"anthropic", "openai", "google", "openaicompat")
	}
}

// resolveAPIKey reads the key from the configured env var, falling back
// to the provider's conventional variable.
func resolveAPIKey(provider, explicitEnv string) string {
	if explicitEnv != "" {
		return os.Getenv(explicitEnv)
	}
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai", "openaicompat":
		return os.Getenv("OPENAI_API_KEY")
	case "google":
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

// Name returns the provider-qualified model name.
func (m *FantasyModel) Name() string { return m.name }

// Generate implements Model. Rate limits and server errors are retried
// with backoff; billing and auth failures fail immediately.
func (m *FantasyModel) Generate(ctx context.Context, req *Request) (*Response, error) {
	call := m.buildCall(req)

	resp, err := errors.DoWithResult(ctx, m.retry, func() (*fantasy.Response, error) {
		resp, genErr := m.model.Generate(ctx, call)
		if genErr != nil {
			classified := classifyProviderErr(genErr)
			m.logger.Warn("model generate failed",
				"model", m.name,
				"code", errors.GetCode(classified),
				"error", classified)
			return nil, classified
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	return m.parseResponse(resp), nil
}

// buildCall converts a Request into the fantasy wire shape.
func (m *FantasyModel) buildCall(req *Request) fantasy.Call {
	prompt := make(fantasy.Prompt, 0, len(req.Messages)+1)
	if req.System != "" {
		prompt = append(prompt, fantasy.NewSystemMessage(req.System))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			prompt = append(prompt, fantasy.NewSystemMessage(msg.Content))
		case RoleUser:
			prompt = append(prompt, fantasy.NewUserMessage(msg.Content))
		case RoleAssistant:
			var parts []fantasy.MessagePart
			if msg.Content != "" {
				parts = append(parts, fantasy.TextPart{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				input, _ := json.Marshal(tc.Args)
				parts = append(parts, fantasy.ToolCallPart{
					ToolCallID: tc.ID,
					ToolName:   tc.Name,
					Input:      string(input),
				})
			}
			prompt = append(prompt, fantasy.Message{Role: fantasy.MessageRoleAssistant, Content: parts})
		case RoleTool:
			prompt = append(prompt, fantasy.Message{
				Role: fantasy.MessageRoleTool,
				Content: []fantasy.MessagePart{
					fantasy.ToolResultPart{
						ToolCallID: msg.ToolCallID,
						Output:     fantasy.ToolResultOutputContentText{Text: msg.Content},
					},
				},
			})
		}
	}

	var modelTools []fantasy.Tool
	for _, t := range req.Tools {
		modelTools = append(modelTools, fantasy.FunctionTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	maxTokens := int64(m.maxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	return fantasy.Call{
		Prompt:          prompt,
		Tools:           modelTools,
		MaxOutputTokens: &maxTokens,
	}
}

// parseResponse flattens fantasy content blocks into a Response.
// Content items surface as both pointer and value shapes depending on
// the provider.
func (m *FantasyModel) parseResponse(resp *fantasy.Response) *Response {
	out := &Response{
		StopReason:   string(resp.FinishReason),
		InputTokens:  int64(resp.Usage.InputTokens),
		OutputTokens: int64(resp.Usage.OutputTokens),
		Model:        m.model.Model(),
	}

	for _, content := range resp.Content {
		switch c := content.(type) {
		case *fantasy.TextContent:
			out.Text += c.Text
		case fantasy.TextContent:
			out.Text += c.Text
		case *fantasy.ReasoningContent:
			out.Thinking += c.Text
		case fantasy.ReasoningContent:
			out.Thinking += c.Text
		case *fantasy.ToolCallContent:
			out.ToolCalls = append(out.ToolCalls, m.parseToolCall(c.ToolCallID, c.ToolName, c.Input))
		case fantasy.ToolCallContent:
			out.ToolCalls = append(out.ToolCalls, m.parseToolCall(c.ToolCallID, c.ToolName, c.Input))
		}
	}
	return out
}

// parseToolCall decodes a model-issued call's JSON arguments. Malformed
// arguments become a nil map and the tool's own validation reports it.
func (m *FantasyModel) parseToolCall(id, name, input string) ToolCall {
	var args map[string]any
	if strings.TrimSpace(input) != "" {
		if err := json.Unmarshal([]byte(input), &args); err != nil {
			m.logger.Warn("tool call arguments are not valid JSON",
				"tool", name, "error", err)
			args = nil
		}
	}
	return ToolCall{ID: id, Name: name, Args: args}
}

// classifyProviderErr maps raw provider failures onto retryable and
// terminal categories. Providers expose no typed errors, so this
// matches on message text.
func classifyProviderErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "billing", "payment", "quota", "credit", "insufficient funds"):
		return errors.NewBuilder(errors.CodeModelUnavailable, "model billing error").
			Permanent().Wrap(err).Build()
	case containsAny(msg, "invalid api key", "unauthorized", "authentication", "401", "403"):
		return errors.NewBuilder(errors.CodeModelUnavailable, "model auth error").
			Permanent().Wrap(err).Build()
	case containsAny(msg, "rate limit", "too many requests", "429", "overloaded", "capacity"):
		return errors.NewBuilder(errors.CodeModelRateLimit, "model rate limited").
			RateLimit().Wrap(err).Build()
	case containsAny(msg, "500", "502", "503", "504", "internal server", "bad gateway",
		"service unavailable", "gateway timeout", "temporarily unavailable"):
		return errors.NewBuilder(errors.CodeModelUnavailable, "model server error").
			Temporary().Wrap(err).Build()
	default:
		return errors.NewBuilder(errors.CodeModelInvalidResponse, "model request failed").
			Permanent().Wrap(err).Build()
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
