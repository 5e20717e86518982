// Package remote connects Otto to MCP tool servers and projects the tools
// they serve into the registry's remote namespace.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/otto-ai/otto/internal/config"
	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/logging"
	"github.com/otto-ai/otto/internal/tools"
)

// namePrefix joins a server name and a served tool name into the
// registry-visible identifier, e.g. "github__search_issues".
const namePrefix = "__"

// ============================================================
// Manager
// ============================================================

// Options configures a Manager.
type Options struct {
	Servers []config.RemoteServerConfig
	Logger  *log.Logger
}

// Manager owns one client session per configured MCP server. Sessions are
// opened lazily on first use and shared by every tool the server exposes.
type Manager struct {
	logger  *log.Logger
	servers []*server
}

// NewManager builds a manager for the enabled server entries. Disabled or
// unnamed entries are skipped.
func NewManager(opts Options) *Manager {
	logger := logging.Or(opts.Logger)
	m := &Manager{logger: logger}
	for _, cfg := range opts.Servers {
		if !cfg.Enabled || cfg.Name == "" {
			continue
		}
		m.servers = append(m.servers, &server{
			name:    cfg.Name,
			spec:    cfg.Transport,
			logger:  logger.With("server", cfg.Name),
			breaker: errors.NewCircuitBreaker("mcp:"+cfg.Name, nil),
		})
	}
	return m
}

// Sync connects to every server, lists its tools and registers them into
// the remote namespace under "<server>__<tool>" names. A server that fails
// to connect or list is skipped so one dead endpoint does not take the
// rest down; the combined failure is returned after all servers were tried.
func (m *Manager) Sync(ctx context.Context, reg *tools.Registry) error {
	var failed []string
	for _, srv := range m.servers {
		listed, err := srv.listTools(ctx)
		if err != nil {
			srv.logger.Warn("remote server unavailable", "error", err)
			failed = append(failed, fmt.Sprintf("%s (%v)", srv.name, err))
			continue
		}
		for _, t := range listed {
			wrapped := &remoteTool{srv: srv, remote: t.Name, schema: schemaFromTool(srv.name, t)}
			if err := reg.Register(tools.SourceRemote, wrapped); err != nil {
				srv.logger.Warn("remote tool rejected", "tool", wrapped.Name(), "error", err)
			}
		}
		srv.logger.Info("remote server synced", "tools", len(listed))
	}
	if len(failed) > 0 {
		return errors.NewBuilder(errors.CodeRemoteUnavailable,
			fmt.Sprintf("remote sync incomplete: %s", strings.Join(failed, "; "))).
			Temporary().
			Build()
	}
	return nil
}

// Close shuts down every open session.
func (m *Manager) Close() error {
	var firstErr error
	for _, srv := range m.servers {
		if err := srv.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ============================================================
// Server Session
// ============================================================

// server is one configured MCP endpoint. The session is established at
// most once; a failed connect stays failed until the process restarts,
// which keeps a misconfigured endpoint from being redialed on every call.
type server struct {
	name    string
	spec    string
	logger  *log.Logger
	breaker *errors.CircuitBreaker

	connectOnce sync.Once
	connectErr  error
	session     *mcpsdk.ClientSession
}

func (s *server) connect(ctx context.Context) error {
	s.connectOnce.Do(func() {
		transport, err := transportBuilder(ctx, s.spec)
		if err != nil {
			s.connectErr = errors.NewBuilder(errors.CodeConfigInvalid,
				fmt.Sprintf("bad transport spec for server %s", s.name)).
				Permanent().
				Wrap(err).
				Build()
			return
		}
		client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "otto", Version: "1.0.0"}, nil)
		session, err := client.Connect(ctx, transport, nil)
		if err != nil {
			s.connectErr = errors.NewBuilder(errors.CodeRemoteUnavailable,
				fmt.Sprintf("connect to server %s failed", s.name)).
				Temporary().
				Wrap(err).
				Build()
			return
		}
		s.session = session
		s.logger.Debug("session established")
	})
	return s.connectErr
}

func (s *server) listTools(ctx context.Context) ([]*mcpsdk.Tool, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	var listed []*mcpsdk.Tool
	for t, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return nil, errors.NewBuilder(errors.CodeRemoteUnavailable,
				fmt.Sprintf("listing tools on server %s failed", s.name)).
				Temporary().
				Wrap(err).
				Build()
		}
		listed = append(listed, t)
	}
	return listed, nil
}

// callTool invokes a served tool. Transport failures are retried under the
// fast policy; the breaker opens after repeated failures so a flapping
// server stops consuming retry budget.
func (s *server) callTool(ctx context.Context, name string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	var result *mcpsdk.CallToolResult
	err := errors.Do(ctx, errors.FastPolicy(), func() error {
		res, callErr := errors.ExecuteCircuitBreakerWithResult(s.breaker, func() (*mcpsdk.CallToolResult, error) {
			res, err := s.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
			if err != nil {
				return nil, errors.NewBuilder(errors.CodeRemoteCallFailed,
					fmt.Sprintf("%s on server %s failed", name, s.name)).
					Temporary().
					Wrap(err).
					Build()
			}
			return res, nil
		})
		if callErr != nil {
			return callErr
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *server) close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	return err
}

// ============================================================
// Tool Wrapper
// ============================================================

// remoteTool adapts one served tool to the Tool interface. The registry
// name carries the server prefix; the unprefixed name is what goes on the
// wire.
type remoteTool struct {
	srv    *server
	remote string
	schema *tools.Schema
}

func (t *remoteTool) Name() string          { return t.schema.Name }
func (t *remoteTool) Description() string   { return t.schema.Description }
func (t *remoteTool) Schema() *tools.Schema { return t.schema }

func (t *remoteTool) Execute(ctx context.Context, call *tools.Call) (*tools.Result, error) {
	call.ReportProgress(0, 0, fmt.Sprintf("calling %s on %s", t.remote, t.srv.name))
	res, err := t.srv.callTool(ctx, t.remote, call.Params)
	if err != nil {
		return nil, err
	}
	text := textContent(res)
	if res.IsError {
		if text == "" {
			text = "remote tool reported an error"
		}
		return tools.NewErrorResult(errors.Permanent(errors.CodeRemoteCallFailed, text)), nil
	}
	return tools.NewSuccessResult(text), nil
}

// schemaFromTool converts a served tool descriptor into a registry schema
// under the prefixed name. The input schema round-trips through JSON so
// whatever concrete type the SDK hands back lands as a plain map.
func schemaFromTool(serverName string, t *mcpsdk.Tool) *tools.Schema {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	if t.InputSchema != nil {
		if raw, err := json.Marshal(t.InputSchema); err == nil {
			var decoded map[string]any
			if json.Unmarshal(raw, &decoded) == nil && len(decoded) > 0 {
				params = decoded
			}
		}
	}
	return &tools.Schema{
		Name:        serverName + namePrefix + t.Name,
		Description: t.Description,
		Parameters:  params,
	}
}

// textContent concatenates the text items of a call result. Non-text
// content is dropped; the model only consumes text.
func textContent(res *mcpsdk.CallToolResult) string {
	if res == nil {
		return ""
	}
	var parts []string
	for _, item := range res.Content {
		if tc, ok := item.(*mcpsdk.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ============================================================
// Transports
// ============================================================

// transportBuilder is swapped out by tests to splice in an in-memory
// transport.
var transportBuilder = buildTransport

const (
	stdioPrefix = "stdio://"
	ssePrefix   = "sse://"
)

// buildTransport maps a transport spec onto an SDK transport:
//
//	stdio://<command line>     child process speaking stdio
//	sse://<host or url>        SSE endpoint, https assumed without a scheme
//	http+<hint>://<url>        hint selects sse or streamable http
//	http(s)://<url>            SSE endpoint
//	<command line>             child process speaking stdio
func buildTransport(ctx context.Context, spec string) (mcpsdk.Transport, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("transport spec is empty")
	}

	lowered := strings.ToLower(spec)
	switch {
	case strings.HasPrefix(lowered, stdioPrefix):
		return stdioTransport(ctx, spec[len(stdioPrefix):])
	case strings.HasPrefix(lowered, ssePrefix):
		endpoint, err := normalizeEndpoint(spec[len(ssePrefix):], true)
		if err != nil {
			return nil, fmt.Errorf("invalid sse endpoint: %w", err)
		}
		return &mcpsdk.SSEClientTransport{Endpoint: endpoint}, nil
	}

	if transport, matched, err := hintedHTTPTransport(spec); matched {
		return transport, err
	}

	if strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://") {
		endpoint, err := normalizeEndpoint(spec, false)
		if err != nil {
			return nil, fmt.Errorf("invalid http endpoint: %w", err)
		}
		return &mcpsdk.SSEClientTransport{Endpoint: endpoint}, nil
	}

	return stdioTransport(ctx, spec)
}

func stdioTransport(ctx context.Context, commandLine string) (mcpsdk.Transport, error) {
	parts := strings.Fields(strings.TrimSpace(commandLine))
	if len(parts) == 0 {
		return nil, fmt.Errorf("stdio command is empty")
	}
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	return &mcpsdk.CommandTransport{Command: cmd}, nil
}

// hintedHTTPTransport handles "http+<hint>://" and "https+<hint>://"
// schemes. The hint picks the wire style; the base scheme survives into
// the endpoint.
func hintedHTTPTransport(spec string) (mcpsdk.Transport, bool, error) {
	u, err := url.Parse(strings.TrimSpace(spec))
	if err != nil || u.Scheme == "" {
		return nil, false, nil
	}
	base, hint, found := strings.Cut(strings.ToLower(u.Scheme), "+")
	if !found || (base != "http" && base != "https") {
		return nil, false, nil
	}

	rebased := *u
	rebased.Scheme = base
	endpoint, err := normalizeEndpoint(rebased.String(), false)
	if err != nil {
		return nil, true, fmt.Errorf("invalid %s endpoint: %w", hint, err)
	}

	switch hint {
	case "sse":
		return &mcpsdk.SSEClientTransport{Endpoint: endpoint}, true, nil
	case "stream", "streamable", "http", "json":
		return &mcpsdk.StreamableClientTransport{Endpoint: endpoint}, true, nil
	default:
		return nil, true, fmt.Errorf("unsupported transport hint %q", hint)
	}
}

func normalizeEndpoint(raw string, guessScheme bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("endpoint is empty")
	}
	if guessScheme && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	parsed.Scheme = scheme
	return parsed.String(), nil
}
