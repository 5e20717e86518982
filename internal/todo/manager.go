package todo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/internal/logging"
)

// Manager enforces the todo state machine on top of a Store. Transition
// rules live here; the store only supplies guarded persistence.
type Manager struct {
	store  Store
	logger *log.Logger
}

func NewManager(store Store, logger *log.Logger) *Manager {
	return &Manager{store: store, logger: logging.Or(logger)}
}

// Store exposes the underlying store, mainly for lifecycle management.
func (m *Manager) Store() Store {
	return m.store
}

// CreateParams describes a new todo. Title and Scope are required; an
// empty Priority defaults to medium.
type CreateParams struct {
	Title              string
	Context            string
	CompletionCriteria string
	AgentTypeHint      string
	Priority           Priority
	Scope              Scope
	ScopeID            string
	CreatorID          string
}

// Create registers a new pending todo.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*Todo, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, errors.Validation("title", "must not be empty")
	}
	if _, ok := ParseScope(string(p.Scope)); !ok {
		return nil, errors.Validation("scope", fmt.Sprintf("unknown scope %q", p.Scope),
			string(ScopeTurn), string(ScopeMission))
	}
	priority := p.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if _, ok := ParsePriority(string(priority)); !ok {
		return nil, errors.Validation("priority", fmt.Sprintf("unknown priority %q", priority),
			string(PriorityLow), string(PriorityMedium), string(PriorityHigh))
	}

	now := time.Now()
	td := &Todo{
		ID:                 uuid.NewString(),
		Scope:              p.Scope,
		ScopeID:            p.ScopeID,
		Title:              title,
		Context:            p.Context,
		CompletionCriteria: p.CompletionCriteria,
		AgentTypeHint:      p.AgentTypeHint,
		Priority:           priority,
		Status:             StatusPending,
		CreatorID:          p.CreatorID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := m.store.Create(ctx, td); err != nil {
		return nil, err
	}

	m.logger.Debug("todo created", "id", td.ID, "scope", td.Scope, "title", td.Title)
	return td, nil
}

// Get returns a single todo by ID.
func (m *Manager) Get(ctx context.Context, id string) (*Todo, error) {
	return m.store.Get(ctx, id)
}

// List returns todos matching the filter.
func (m *Manager) List(ctx context.Context, filter Filter) ([]*Todo, error) {
	return m.store.List(ctx, filter)
}

// CountByStatus returns how many todos sit in each status.
func (m *Manager) CountByStatus(ctx context.Context) (map[Status]int, error) {
	return m.store.CountByStatus(ctx)
}

// Begin claims a pending todo for executorID. The started timestamp is
// recorded once, on this first claim, and never refreshed.
func (m *Manager) Begin(ctx context.Context, id, executorID string) (*Todo, error) {
	td, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if td.Status != StatusPending {
		return nil, errors.InvalidTransition(
			string(td.Status), string(StatusPending), string(StatusInProgress))
	}

	now := time.Now()
	td.Status = StatusInProgress
	td.ExecutorID = executorID
	td.UpdatedAt = now
	if td.StartedAt == nil {
		td.StartedAt = &now
	}

	if err := m.store.Update(ctx, td, StatusPending); err != nil {
		return nil, err
	}

	m.logger.Debug("todo claimed", "id", td.ID, "executor", executorID)
	return td, nil
}

// Complete closes an in-progress todo with an outcome. Mission-scoped
// todos require the completer to differ from the executor.
func (m *Manager) Complete(ctx context.Context, id, completerID, outcome string) (*Todo, error) {
	td, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if td.Status != StatusInProgress {
		return nil, errors.InvalidTransition(
			string(td.Status), string(StatusInProgress), string(StatusCompleted))
	}
	if td.Scope == ScopeMission && completerID != "" && completerID == td.ExecutorID {
		return nil, errors.User(errors.CodeValidationFailed,
			fmt.Sprintf("mission todo %s must be completed by an agent other than its executor %s", id, td.ExecutorID))
	}

	now := time.Now()
	td.Status = StatusCompleted
	td.Outcome = outcome
	td.UpdatedAt = now
	td.CompletedAt = &now

	if err := m.store.Update(ctx, td, StatusInProgress); err != nil {
		return nil, err
	}

	m.logger.Debug("todo completed", "id", td.ID, "completer", completerID)
	return td, nil
}

// Cancel abandons a todo from pending or in_progress.
func (m *Manager) Cancel(ctx context.Context, id, reason string) (*Todo, error) {
	td, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if td.Status.Terminal() {
		return nil, errors.InvalidTransition(
			string(td.Status), string(StatusPending)+" or "+string(StatusInProgress),
			string(StatusCancelled))
	}

	prior := td.Status
	now := time.Now()
	td.Status = StatusCancelled
	td.Outcome = reason
	td.UpdatedAt = now
	td.CompletedAt = &now

	if err := m.store.Update(ctx, td, prior); err != nil {
		return nil, err
	}

	m.logger.Debug("todo cancelled", "id", td.ID, "from", prior, "reason", reason)
	return td, nil
}
