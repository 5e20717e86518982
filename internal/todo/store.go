package todo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/otto-ai/otto/internal/errors"
)

func notFoundErr(id string) error {
	return errors.Permanent(errors.CodeTodoNotFound, fmt.Sprintf("todo not found: %s", id))
}

func conflictErr(msg string) error {
	return errors.Temporary(errors.CodeTodoConflict, msg)
}

func storeErr(op string, err error) error {
	return errors.Wrap(err, errors.CodeTodoStoreFailed,
		fmt.Sprintf("todo store %s failed", op), errors.CategorySystem)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status    Status
	Scope     Scope
	CreatorID string
}

func (f Filter) matches(td *Todo) bool {
	if f.Status != "" && td.Status != f.Status {
		return false
	}
	if f.Scope != "" && td.Scope != f.Scope {
		return false
	}
	if f.CreatorID != "" && td.CreatorID != f.CreatorID {
		return false
	}
	return true
}

// Store persists todos. Update takes the status the caller read and
// must fail with a conflict when the stored status no longer matches,
// so transitions are atomic even across processes.
type Store interface {
	Create(ctx context.Context, td *Todo) error
	Get(ctx context.Context, id string) (*Todo, error)
	Update(ctx context.Context, td *Todo, expect Status) error
	List(ctx context.Context, filter Filter) ([]*Todo, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	Close() error
}

// MemoryStore keeps todos in process memory. Suitable for tests and
// single-instance runs.
type MemoryStore struct {
	mu    sync.RWMutex
	todos map[string]*Todo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{todos: make(map[string]*Todo)}
}

func (s *MemoryStore) Create(_ context.Context, td *Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.todos[td.ID]; exists {
		return conflictErr(fmt.Sprintf("todo already exists: %s", td.ID))
	}
	s.todos[td.ID] = td.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	td, ok := s.todos[id]
	if !ok {
		return nil, notFoundErr(id)
	}
	return td.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, td *Todo, expect Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.todos[td.ID]
	if !ok {
		return notFoundErr(td.ID)
	}
	if current.Status != expect {
		return conflictErr(fmt.Sprintf(
			"todo %s is %s, expected %s", td.ID, current.Status, expect))
	}
	s.todos[td.ID] = td.Clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]*Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Todo, 0, len(s.todos))
	for _, td := range s.todos {
		if filter.matches(td) {
			out = append(out, td.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CountByStatus(_ context.Context) (map[Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Status]int)
	for _, td := range s.todos {
		counts[td.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) Close() error { return nil }
