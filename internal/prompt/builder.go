// Package prompt builds system prompts for Otto agents.
package prompt

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// Builder composes sectioned system prompts shared by the conductor
// and its child agents.
type Builder struct {
	Workspace string
	Timezone  string
}

// AgentContext carries the per-agent sections of a system prompt.
type AgentContext struct {
	Identity   string
	Tooling    string
	Protocol   string
	Delegation string
}

// NewBuilder creates a prompt builder rooted at the given workspace.
func NewBuilder(workspace string) *Builder {
	return &Builder{Workspace: workspace}
}

// Build assembles the system prompt from its sections. Empty sections
// fall back to a safe default or are omitted.
func (b *Builder) Build(ctx AgentContext) string {
	var sections []string
	sections = append(sections, "Identity:\n"+nonEmpty(ctx.Identity,
		"You are an Otto agent. Be concise and action-oriented."))
	sections = append(sections, "Tooling:\n"+nonEmpty(ctx.Tooling,
		"Call the available tools when they help; never invent tool names."))
	sections = append(sections, "Completion:\n"+nonEmpty(ctx.Protocol,
		"When the work is done, reply with plain text only: what you did and what you found."))
	if ctx.Delegation != "" {
		sections = append(sections, "Delegation:\n"+ctx.Delegation)
	}
	sections = append(sections, "Workspace:\n"+b.workspaceLine())
	sections = append(sections, "Runtime:\n"+b.runtimeLine())
	sections = append(sections, "Current Date & Time:\n"+b.timeLine())
	return strings.Join(sections, "\n\n")
}

func (b *Builder) workspaceLine() string {
	if b.Workspace != "" {
		return b.Workspace
	}
	wd, _ := os.Getwd()
	if wd == "" {
		return "unknown"
	}
	return wd
}

func (b *Builder) runtimeLine() string {
	return fmt.Sprintf("%s/%s go=%s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func (b *Builder) timeLine() string {
	now := time.Now()
	tz := now.Location().String()
	if b.Timezone != "" {
		tz = b.Timezone
		if loc, err := time.LoadLocation(b.Timezone); err == nil {
			now = now.In(loc)
		}
	}
	return fmt.Sprintf("%s (Timezone: %s)", now.Format("Monday, January 2, 2006 15:04"), tz)
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
