// Package resolver merges competing candidate values for a document field
// into one authoritative value. Candidates come from the deterministic rule
// engine, from an AI model and from a human reviewer; the result records
// which candidate won, whether the candidates disagreed and which ones were
// overridden.
package resolver

import (
	"errors"
	"time"
)

// ErrNoCandidates is returned when a field has no candidate value at all.
// It signals a caller bug, not a data-quality problem.
var ErrNoCandidates = errors.New("no candidate values to resolve")

// Source identifies where a candidate value came from.
type Source string

const (
	SourceRule Source = "RULE"
	SourceLLM  Source = "LLM"
	SourceUser Source = "USER"
)

// priority lists sources from most to least authoritative.
var priority = []Source{SourceUser, SourceRule, SourceLLM}

// ConflictStatus classifies how the candidates of a field disagreed.
type ConflictStatus string

const (
	NoConflict       ConflictStatus = "NO_CONFLICT"
	ConflictRuleLLM  ConflictStatus = "CONFLICT_RULE_LLM"
	ConflictRuleUser ConflictStatus = "CONFLICT_RULE_USER"
	ConflictLLMUser  ConflictStatus = "CONFLICT_LLM_USER"
)

// SourceValue is one candidate value for a field.
type SourceValue struct {
	Source     Source    `json:"source"`
	Value      any       `json:"value"`
	Confidence *float64  `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
	Reasoning  string    `json:"reasoning,omitempty"`
}

// ResolvedValue is the outcome of resolving one field.
type ResolvedValue struct {
	FinalValue          any            `json:"final_value"`
	Source              Source         `json:"source"`
	ConflictStatus      ConflictStatus `json:"conflict_status"`
	AllValues           []SourceValue  `json:"all_values"`
	Overridden          []SourceValue  `json:"overridden,omitempty"`
	ResolutionReasoning string         `json:"resolution_reasoning"`
	ResolutionTimestamp time.Time      `json:"resolution_timestamp"`
}

// HasConflict reports whether the candidates disagreed.
func (r ResolvedValue) HasConflict() bool {
	return r.ConflictStatus != NoConflict
}
