package criteria

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store manages criterion persistence and retrieval.
type Store interface {
	// Add a new criterion. An empty ID is filled with a fresh UUID.
	Add(c *Criterion) error

	// Get a criterion by ID
	Get(id string) (*Criterion, error)

	// List all criteria, active or not
	List() ([]*Criterion, error)

	// ListActive returns the active criteria that apply to a project and
	// ruleset. Empty ids match only global criteria on that axis.
	ListActive(projectID, rulesetID string) ([]*Criterion, error)

	// Update an existing criterion
	Update(c *Criterion) error

	// Delete a criterion
	Delete(id string) error
}

// Applies reports whether c is in scope for the project and ruleset. A nil
// ProjectID or RulesetID on the criterion matches anything.
func Applies(c *Criterion, projectID, rulesetID string) bool {
	if c.ProjectID != nil && *c.ProjectID != projectID {
		return false
	}
	if c.RulesetID != nil && *c.RulesetID != rulesetID {
		return false
	}
	return true
}

// InMemoryStore implements Store using a map. Safe for concurrent use.
type InMemoryStore struct {
	criteria map[string]*Criterion
	now      func() time.Time
	mu       sync.RWMutex
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		criteria: make(map[string]*Criterion),
		now:      time.Now,
	}
}

// Add stores c and sets its timestamps.
func (s *InMemoryStore) Add(c *Criterion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := s.criteria[c.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, c.ID)
	}

	now := s.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	stored := *c
	s.criteria[c.ID] = &stored
	return nil
}

// Get returns a copy of the stored criterion.
func (s *InMemoryStore) Get(id string) (*Criterion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.criteria[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := *c
	return &out, nil
}

// List returns every criterion ordered by creation time.
func (s *InMemoryStore) List() ([]*Criterion, error) {
	return s.collect(func(*Criterion) bool { return true }), nil
}

// ListActive filters to active criteria in scope.
func (s *InMemoryStore) ListActive(projectID, rulesetID string) ([]*Criterion, error) {
	return s.collect(func(c *Criterion) bool {
		return c.IsActive && Applies(c, projectID, rulesetID)
	}), nil
}

func (s *InMemoryStore) collect(keep func(*Criterion) bool) []*Criterion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Criterion
	for _, c := range s.criteria {
		if keep(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Update replaces a stored criterion, preserving CreatedAt.
func (s *InMemoryStore) Update(c *Criterion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.criteria[c.ID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, c.ID)
	}

	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now()
	stored := *c
	s.criteria[c.ID] = &stored
	return nil
}

// Delete removes a criterion.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.criteria[id]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.criteria, id)
	return nil
}
