package criteria

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/liamcoop/precheck/internal/logger"
)

// Service validates criteria on write and serves the active criteria for a
// scope from a cache that is invalidated on every mutation.
type Service struct {
	store Store
	cache Cache
	log   *slog.Logger
}

// NewService wires a store and a cache. A nil cache gets the default
// in-memory cache.
func NewService(store Store, cache Cache) *Service {
	if cache == nil {
		cache = NewInMemoryCache(DefaultCacheConfig())
	}
	return &Service{store: store, cache: cache, log: logger.Logger}
}

// Add validates and stores a new criterion.
func (s *Service) Add(c *Criterion) error {
	if err := ValidateCriterion(c); err != nil {
		return err
	}
	if err := s.store.Add(c); err != nil {
		return err
	}
	s.cache.Invalidate()
	s.log.Info("criterion added", "criterion_id", c.ID, "logic_type", c.LogicType)
	return nil
}

// Update validates and replaces an existing criterion.
func (s *Service) Update(c *Criterion) error {
	if err := ValidateCriterion(c); err != nil {
		return err
	}
	if err := s.store.Update(c); err != nil {
		return err
	}
	s.cache.Invalidate()
	s.log.Info("criterion updated", "criterion_id", c.ID)
	return nil
}

// Delete removes a criterion.
func (s *Service) Delete(id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.cache.Invalidate()
	s.log.Info("criterion deleted", "criterion_id", id)
	return nil
}

// Get returns one criterion.
func (s *Service) Get(id string) (*Criterion, error) {
	return s.store.Get(id)
}

// List returns every stored criterion.
func (s *Service) List() ([]*Criterion, error) {
	return s.store.List()
}

// Active returns the active criteria in scope, from cache when possible.
func (s *Service) Active(projectID, rulesetID string) ([]Criterion, error) {
	list, ok := s.cache.Get(projectID, rulesetID)
	if !ok {
		gen := s.cache.Generation()
		var err error
		list, err = s.store.ListActive(projectID, rulesetID)
		if err != nil {
			return nil, fmt.Errorf("failed to load active criteria: %w", err)
		}
		s.cache.Set(projectID, rulesetID, gen, list)
	}

	out := make([]Criterion, len(list))
	for i, c := range list {
		out[i] = *c
	}
	return out, nil
}

// Evaluate runs every active criterion in scope against data.
func (s *Service) Evaluate(en *Engine, projectID, rulesetID string, data map[string]any) ([]CriterionResult, error) {
	active, err := s.Active(projectID, rulesetID)
	if err != nil {
		return nil, err
	}
	return en.EvaluateAll(active, data), nil
}

// Seed adds criteria loaded from a file. Criteria that fail validation or
// already exist are reported together; the rest are stored.
func (s *Service) Seed(criteria []*Criterion) error {
	var failed []error
	for _, c := range criteria {
		if err := s.Add(c); err != nil {
			failed = append(failed, fmt.Errorf("criterion %q: %w", c.Name, err))
		}
	}
	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	return nil
}
