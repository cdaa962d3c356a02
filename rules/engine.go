package rules

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/liamcoop/precheck/internal/logger"
	"github.com/liamcoop/precheck/rulesets"
	"github.com/liamcoop/precheck/validators"
)

// Engine prechecks documents against a single ruleset. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	ruleset rulesets.Ruleset
	log     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(en *Engine) {
		en.log = l
	}
}

// NewEngine builds an engine for the ruleset registered under rulesetID.
// Most callers should use ForRuleset, which shares one engine per id.
func NewEngine(rulesetID string, opts ...Option) (*Engine, error) {
	rs, ok := rulesets.Get(rulesetID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRuleset, rulesetID)
	}
	en := &Engine{ruleset: rs, log: logger.Logger}
	for _, opt := range opts {
		opt(en)
	}
	return en, nil
}

// Ruleset returns the ruleset this engine checks against.
func (en *Engine) Ruleset() rulesets.Ruleset {
	return en.ruleset
}

// pass carries the state of one precheck call.
type pass struct {
	rs       rulesets.Ruleset
	fields   Fields
	required map[string]bool
	result   PrecheckResult
	statuses map[string]validators.Status
}

// Precheck runs the presence, per-field and cross-field passes over fields.
// Malformed input never fails the call; it shows up as check statuses.
func (en *Engine) Precheck(fields Fields) PrecheckResult {
	p := &pass{
		rs:       en.ruleset,
		fields:   fields,
		statuses: make(map[string]validators.Status, len(en.ruleset.Features)),
		result: PrecheckResult{
			RulesetID: en.ruleset.ID,
			Checks:    []FeatureCheck{},
			Errors:    []FeatureCheck{},
			Warnings:  []FeatureCheck{},
		},
	}

	// The small-amount decision must come first: it swaps the required set.
	if p.rs.SmallAmount != nil {
		p.result.IsSmallAmount = validators.IsSmallAmountInvoice(fields.value("gross_amount"), p.rs.Jurisdiction)
	}
	p.required = p.rs.RequiredFeatures(p.result.IsSmallAmount)

	for _, f := range p.rs.Features {
		p.checkFeature(f)
	}
	p.checkAmounts()
	p.checkTaxIdentification()

	p.result.Passed = len(p.result.Errors) == 0
	if !p.result.Passed {
		logger.WarnPrecheckFailed()
	}
	en.log.Debug("precheck completed",
		"ruleset_id", p.rs.ID,
		"small_amount", p.result.IsSmallAmount,
		"passed", p.result.Passed,
		"errors", len(p.result.Errors),
		"warnings", len(p.result.Warnings))
	return p.result
}

func (p *pass) record(c FeatureCheck) {
	p.result.Checks = append(p.result.Checks, c)
	switch c.Severity {
	case SeverityError:
		p.result.Errors = append(p.result.Errors, c)
	case SeverityWarning:
		p.result.Warnings = append(p.result.Warnings, c)
	}
}

// relaxed reports whether a normally REQUIRED feature was dropped by the
// small-amount rule.
func (p *pass) relaxed(f rulesets.FeatureDefinition) bool {
	return p.result.IsSmallAmount && f.RequiredLevel == rulesets.Required && !p.required[f.ID]
}

func (p *pass) checkFeature(f rulesets.FeatureDefinition) {
	required := p.required[f.ID]
	field, present := p.fields.lookup(f.ID)
	check := FeatureCheck{
		FeatureID:  f.ID,
		RawText:    field.RawText,
		LegalBasis: f.LegalBasis,
		Relaxed:    p.relaxed(f),
	}

	if !present {
		p.statuses[f.ID] = validators.StatusMissing
		check.Status = validators.StatusMissing
		switch {
		case required:
			check.Severity = SeverityError
			check.ErrorType = ErrorMissingField
			check.ErrorSource = SourceExtraction
			check.Message = fmt.Sprintf("required feature %s is missing", f.ID)
		case check.Relaxed:
			check.Severity = SeverityInfo
			check.Message = fmt.Sprintf("%s is not required on a small-amount invoice", f.ID)
		default:
			check.Severity = SeverityInfo
			check.Message = fmt.Sprintf("%s feature %s is not present", strings.ToLower(string(f.RequiredLevel)), f.ID)
		}
		p.record(check)
		return
	}

	vr := f.Validate(f.ID, field.Value)
	p.statuses[f.ID] = vr.Status
	check.Status = vr.Status
	check.Value = vr.Value
	check.Message = vr.Message
	check.Details = vr.Details

	switch {
	case vr.Status == validators.StatusValid:
		check.Severity = SeverityInfo
	case vr.Status.Failed() && required:
		check.Severity = SeverityError
		check.ErrorType = ErrorInvalidFormat
		check.ErrorSource = SourceFormat
	case vr.Status == validators.StatusWarning:
		check.Severity = SeverityWarning
		check.ErrorType = ErrorNonStandardValue
		check.ErrorSource = SourceFormat
	default:
		check.Severity = SeverityWarning
		check.ErrorType = ErrorInvalidFormat
		check.ErrorSource = SourceFormat
	}
	p.record(check)
}

func (p *pass) checkAmounts() {
	tolerance := p.rs.AmountTolerance
	opts := validators.CalculationOptions{
		VATRate:   p.fields.value("vat_rate"),
		Tolerance: &tolerance,
	}
	vr := validators.ValidateAmountCalculation(
		p.fields.value("net_amount"),
		p.fields.value("vat_amount"),
		p.fields.value("gross_amount"),
		opts,
	)

	check := FeatureCheck{
		FeatureID: CheckAmountCalculation,
		Status:    vr.Status,
		Value:     vr.Value,
		Message:   vr.Message,
		Details:   vr.Details,
	}
	if f, ok := p.rs.Feature("vat_amount"); ok {
		check.LegalBasis = f.LegalBasis
	}

	switch vr.Status {
	case validators.StatusValid:
		check.Severity = SeverityInfo
	case validators.StatusInvalid:
		check.Severity = SeverityError
		check.ErrorType = ErrorCalculation
		check.ErrorSource = SourceCalculation
	case validators.StatusMissing:
		// The missing amounts themselves are already reported per feature.
		check.ErrorType = ErrorIncompleteAmounts
		check.ErrorSource = SourceCalculation
		if p.result.IsSmallAmount {
			check.Severity = SeverityInfo
		} else {
			check.Severity = SeverityWarning
		}
	default:
		check.Severity = SeverityWarning
		check.ErrorType = ErrorCalculation
		check.ErrorSource = SourceCalculation
	}
	p.record(check)
}

// checkTaxIdentification requires at least one of the ruleset's tax id
// features to validate. It is skipped when a tax id feature is itself
// required in this pass, since that feature already reports its own error.
func (p *pass) checkTaxIdentification() {
	ids := p.rs.TaxIDFeatures
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		if p.required[id] {
			return
		}
	}

	check := FeatureCheck{
		FeatureID: CheckTaxIdentification,
		Relaxed:   p.result.IsSmallAmount,
	}
	if f, ok := p.rs.Feature(ids[0]); ok {
		check.LegalBasis = f.LegalBasis
	}

	status := validators.StatusMissing
	var via string
	for _, id := range ids {
		switch p.statuses[id] {
		case validators.StatusValid, validators.StatusWarning:
			status, via = validators.StatusValid, id
		case validators.StatusInvalid:
			if status == validators.StatusMissing {
				status = validators.StatusInvalid
			}
		}
		if status == validators.StatusValid {
			break
		}
	}
	check.Status = status

	names := strings.Join(ids, " or ")
	switch status {
	case validators.StatusValid:
		check.Severity = SeverityInfo
		check.Value = p.fields.value(via)
		check.Message = fmt.Sprintf("tax identification present via %s", via)
	case validators.StatusInvalid:
		check.ErrorType = ErrorInvalidTaxID
		check.ErrorSource = SourceCompliance
		check.Message = fmt.Sprintf("no valid %s found", names)
		check.Severity = SeverityError
		if check.Relaxed {
			check.Severity = SeverityWarning
		}
	default:
		check.ErrorType = ErrorMissingTaxID
		check.ErrorSource = SourceCompliance
		check.Message = fmt.Sprintf("either %s is required", names)
		check.Severity = SeverityError
		if check.Relaxed {
			check.Severity = SeverityInfo
			check.Message = fmt.Sprintf("%s not required on a small-amount invoice", names)
		}
	}
	p.record(check)
}
