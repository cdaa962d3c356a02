// Package rules runs the jurisdiction precheck: one pass of a document's
// extracted fields against a ruleset from the rulesets catalog.
package rules

import (
	"errors"

	"github.com/liamcoop/precheck/validators"
)

// ErrUnknownRuleset is returned when no ruleset is registered under an id.
var ErrUnknownRuleset = errors.New("unknown ruleset")

// ExtractedField is one value produced by the external document parser.
type ExtractedField struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence,omitempty"`
	RawText    string  `json:"raw_text,omitempty"`
}

// Fields maps feature ids to extracted values.
type Fields map[string]ExtractedField

// lookup returns the field and whether it carries a usable value.
func (f Fields) lookup(id string) (ExtractedField, bool) {
	field, ok := f[id]
	if !ok {
		return ExtractedField{}, false
	}
	return field, !validators.IsAbsent(field.Value)
}

func (f Fields) value(id string) any {
	if field, ok := f.lookup(id); ok {
		return field.Value
	}
	return nil
}

// Severity ranks a feature check for reporting.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ErrorSource says which stage produced a problem.
type ErrorSource string

const (
	SourceExtraction  ErrorSource = "extraction"
	SourceFormat      ErrorSource = "format"
	SourceCalculation ErrorSource = "calculation"
	SourceCompliance  ErrorSource = "compliance"
)

// Error types attached to failing checks.
const (
	ErrorMissingField      = "missing_required_field"
	ErrorInvalidFormat     = "invalid_format"
	ErrorNonStandardValue  = "non_standard_value"
	ErrorCalculation       = "calculation_mismatch"
	ErrorIncompleteAmounts = "incomplete_amounts"
	ErrorMissingTaxID      = "missing_tax_id"
	ErrorInvalidTaxID      = "invalid_tax_id"
)

// Ids of the ruleset-wide cross-field checks.
const (
	CheckAmountCalculation = "amount_calculation"
	CheckTaxIdentification = "tax_identification"
)

// FeatureCheck is the outcome for one feature or cross-field check.
type FeatureCheck struct {
	FeatureID   string            `json:"feature_id"`
	Status      validators.Status `json:"status"`
	Value       any               `json:"value,omitempty"`
	RawText     string            `json:"raw_text,omitempty"`
	ErrorType   string            `json:"error_type,omitempty"`
	ErrorSource ErrorSource       `json:"error_source,omitempty"`
	Severity    Severity          `json:"severity"`
	Message     string            `json:"message"`
	LegalBasis  string            `json:"legal_basis,omitempty"`
	Relaxed     bool              `json:"relaxed,omitempty"`
	Details     map[string]any    `json:"details,omitempty"`
}

// PrecheckResult is the report for one (document, ruleset) evaluation.
// Errors and Warnings are subsets of Checks, in the same order.
type PrecheckResult struct {
	RulesetID     string         `json:"ruleset_id"`
	IsSmallAmount bool           `json:"is_small_amount"`
	Checks        []FeatureCheck `json:"checks"`
	Errors        []FeatureCheck `json:"errors"`
	Warnings      []FeatureCheck `json:"warnings"`
	Passed        bool           `json:"passed"`
}

// Values returns the normalized value of every feature whose check accepted
// it (VALID or WARNING). Cross-field checks are skipped.
func (r PrecheckResult) Values() map[string]any {
	out := make(map[string]any)
	for _, c := range r.Checks {
		if c.FeatureID == CheckAmountCalculation || c.FeatureID == CheckTaxIdentification {
			continue
		}
		if c.Status == validators.StatusValid || c.Status == validators.StatusWarning {
			out[c.FeatureID] = c.Value
		}
	}
	return out
}

// Check returns the check recorded for a feature id.
func (r PrecheckResult) Check(featureID string) (FeatureCheck, bool) {
	for _, c := range r.Checks {
		if c.FeatureID == featureID {
			return c, true
		}
	}
	return FeatureCheck{}, false
}
