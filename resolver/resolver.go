package resolver

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/liamcoop/precheck/internal/logger"
)

// Resolver picks the authoritative value per field using the fixed priority
// USER > RULE > LLM. It holds no state between calls.
type Resolver struct {
	now func() time.Time
	log *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the source of resolution timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithLogger overrides the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.log = l
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		now: func() time.Time { return time.Now().UTC() },
		log: logger.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultResolver = New()

// Resolve resolves one field with the default Resolver.
func Resolve(rule, llm, user *SourceValue) (ResolvedValue, error) {
	return defaultResolver.Resolve(rule, llm, user)
}

// MergeResults resolves a batch of fields with the default Resolver.
func MergeResults(rule, llm, user map[string]SourceValue) map[string]ResolvedValue {
	return defaultResolver.MergeResults(rule, llm, user)
}

// Resolve merges up to three candidates for a single field. Each argument is
// tagged with the source of its slot, whatever Source it carries. At least one
// candidate must be present.
func (r *Resolver) Resolve(rule, llm, user *SourceValue) (ResolvedValue, error) {
	candidates := map[Source]*SourceValue{
		SourceRule: tag(rule, SourceRule),
		SourceLLM:  tag(llm, SourceLLM),
		SourceUser: tag(user, SourceUser),
	}

	var all []SourceValue
	for _, src := range []Source{SourceRule, SourceLLM, SourceUser} {
		if sv := candidates[src]; sv != nil {
			all = append(all, *sv)
		}
	}
	if len(all) == 0 {
		return ResolvedValue{}, ErrNoCandidates
	}

	var winner *SourceValue
	for _, src := range priority {
		if sv := candidates[src]; sv != nil {
			winner = sv
			break
		}
	}

	var overridden []SourceValue
	for _, src := range priority {
		sv := candidates[src]
		if sv == nil || sv == winner || equal(sv, winner) {
			continue
		}
		overridden = append(overridden, *sv)
	}

	status := classify(candidates[SourceRule], candidates[SourceLLM], candidates[SourceUser])
	res := ResolvedValue{
		FinalValue:          winner.Value,
		Source:              winner.Source,
		ConflictStatus:      status,
		AllValues:           all,
		Overridden:          overridden,
		ResolutionReasoning: reasoning(winner, len(all), overridden),
		ResolutionTimestamp: r.now(),
	}
	if status != NoConflict {
		r.log.Debug("field conflict resolved",
			"status", string(status),
			"source", string(winner.Source),
			"overridden", len(overridden))
	}
	return res, nil
}

// MergeResults resolves every field named in any of the three maps.
func (r *Resolver) MergeResults(rule, llm, user map[string]SourceValue) map[string]ResolvedValue {
	names := make(map[string]struct{}, len(rule)+len(llm)+len(user))
	for _, m := range []map[string]SourceValue{rule, llm, user} {
		for name := range m {
			names[name] = struct{}{}
		}
	}

	out := make(map[string]ResolvedValue, len(names))
	for name := range names {
		res, err := r.Resolve(pick(rule, name), pick(llm, name), pick(user, name))
		if err != nil {
			// Unreachable: every name comes from at least one map.
			continue
		}
		out[name] = res
	}
	return out
}

// Fields returns the resolved field names in sorted order.
func Fields(resolved map[string]ResolvedValue) []string {
	names := make([]string, 0, len(resolved))
	for name := range resolved {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func pick(m map[string]SourceValue, name string) *SourceValue {
	sv, ok := m[name]
	if !ok {
		return nil
	}
	return &sv
}

func tag(sv *SourceValue, src Source) *SourceValue {
	if sv == nil {
		return nil
	}
	c := *sv
	c.Source = src
	return &c
}

// classify names the disagreement among the present candidates. A user value
// that matches the rule value leaves only the model in disagreement.
func classify(rule, llm, user *SourceValue) ConflictStatus {
	present := make([]*SourceValue, 0, 3)
	for _, sv := range []*SourceValue{rule, llm, user} {
		if sv != nil {
			present = append(present, sv)
		}
	}
	if len(present) < 2 {
		return NoConflict
	}
	agree := true
	for _, sv := range present[1:] {
		if !equal(present[0], sv) {
			agree = false
			break
		}
	}

	switch {
	case agree:
		return NoConflict
	case user != nil && rule != nil && !equal(user, rule):
		return ConflictRuleUser
	case user != nil && llm != nil && rule == nil:
		return ConflictLLMUser
	case rule != nil && llm != nil && !equal(rule, llm):
		return ConflictRuleLLM
	}
	return NoConflict
}

var precedence = map[Source]string{
	SourceUser: "user corrections take precedence over automated sources",
	SourceRule: "deterministic rule results take precedence over model output",
}

func reasoning(winner *SourceValue, count int, overridden []SourceValue) string {
	switch {
	case count == 1:
		return fmt.Sprintf("Only a %s value was available", winner.Source)
	case len(overridden) == 0:
		return fmt.Sprintf("All %d sources agree; using the %s value", count, winner.Source)
	}
	names := make([]string, len(overridden))
	for i, sv := range overridden {
		names[i] = fmt.Sprintf("%s (%v)", sv.Source, sv.Value)
	}
	return fmt.Sprintf("Using the %s value %v over %s because %s",
		winner.Source, winner.Value, strings.Join(names, ", "), precedence[winner.Source])
}
