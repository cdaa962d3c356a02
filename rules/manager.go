package rules

import (
	"fmt"
	"sync"

	"github.com/liamcoop/precheck/rulesets"
)

// engineSlot builds the engine for one ruleset on first use.
type engineSlot struct {
	once   sync.Once
	id     string
	engine *Engine
	err    error
}

func (s *engineSlot) get() (*Engine, error) {
	s.once.Do(func() {
		s.engine, s.err = NewEngine(s.id)
	})
	return s.engine, s.err
}

// engines has one slot per registered ruleset. The map itself is never
// written after package init, so lookups need no lock.
var engines = func() map[string]*engineSlot {
	m := make(map[string]*engineSlot)
	for _, id := range rulesets.IDs() {
		m[id] = &engineSlot{id: id}
	}
	return m
}()

// ForRuleset returns the shared engine for rulesetID, creating it on the
// first call. It is safe for concurrent use.
func ForRuleset(rulesetID string) (*Engine, error) {
	slot, ok := engines[rulesetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRuleset, rulesetID)
	}
	return slot.get()
}

// Precheck is shorthand for ForRuleset(rulesetID) followed by Engine.Precheck.
func Precheck(rulesetID string, fields Fields) (PrecheckResult, error) {
	en, err := ForRuleset(rulesetID)
	if err != nil {
		return PrecheckResult{}, err
	}
	return en.Precheck(fields), nil
}
