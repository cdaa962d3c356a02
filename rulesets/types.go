// Package rulesets is the read-only catalog of jurisdiction rulesets: which
// invoice features each jurisdiction demands, the validator for each feature,
// and the relaxed requirements that apply to small-amount invoices.
package rulesets

import (
	"slices"

	"github.com/liamcoop/precheck/validators"
	"github.com/shopspring/decimal"
)

// RequiredLevel says how strictly a feature is demanded.
type RequiredLevel string

const (
	Required    RequiredLevel = "REQUIRED"
	Conditional RequiredLevel = "CONDITIONAL"
	Optional    RequiredLevel = "OPTIONAL"
)

// Feature categories.
const (
	CategoryParty          = "party"
	CategoryTaxID          = "tax_id"
	CategoryDates          = "dates"
	CategoryIdentification = "identification"
	CategoryService        = "service"
	CategoryAmounts        = "amounts"
	CategoryPayment        = "payment"
)

// ValidateFunc validates the extracted value of one feature.
type ValidateFunc func(featureID string, value any) validators.Result

// FeatureDefinition is one auditable invoice attribute.
type FeatureDefinition struct {
	ID            string        `json:"feature_id"`
	RequiredLevel RequiredLevel `json:"required_level"`
	Category      string        `json:"category"`
	LegalBasis    string        `json:"legal_basis"`
	Description   string        `json:"description"`
	Validate      ValidateFunc  `json:"-"`
}

// SmallAmountRule replaces the required feature set for invoices whose gross
// amount is at or below Threshold.
type SmallAmountRule struct {
	Threshold        decimal.Decimal `json:"threshold"`
	RequiredFeatures []string        `json:"required_features"`
	LegalBasis       string          `json:"legal_basis"`
}

// Ruleset is a named, versioned catalog of features for one jurisdiction.
type Ruleset struct {
	ID              string              `json:"ruleset_id"`
	Name            string              `json:"name"`
	Jurisdiction    string              `json:"jurisdiction"`
	Version         string              `json:"version"`
	Features        []FeatureDefinition `json:"features"`
	SmallAmount     *SmallAmountRule    `json:"small_amount,omitempty"`
	TaxIDFeatures   []string            `json:"tax_id_features"`
	AmountTolerance decimal.Decimal     `json:"amount_tolerance"`
}

// Feature looks up a feature definition by id.
func (r Ruleset) Feature(id string) (FeatureDefinition, bool) {
	for _, f := range r.Features {
		if f.ID == id {
			return f, true
		}
	}
	return FeatureDefinition{}, false
}

// RequiredFeatures returns the ids that are mandatory for this pass. For a
// small-amount invoice the reduced set replaces the REQUIRED features.
func (r Ruleset) RequiredFeatures(smallAmount bool) map[string]bool {
	required := make(map[string]bool)
	if smallAmount && r.SmallAmount != nil {
		for _, id := range r.SmallAmount.RequiredFeatures {
			required[id] = true
		}
		return required
	}
	for _, f := range r.Features {
		if f.RequiredLevel == Required {
			required[f.ID] = true
		}
	}
	return required
}

// clone copies the slices so callers cannot reach the catalog's backing arrays.
func (r Ruleset) clone() Ruleset {
	r.Features = slices.Clone(r.Features)
	r.TaxIDFeatures = slices.Clone(r.TaxIDFeatures)
	if r.SmallAmount != nil {
		sa := *r.SmallAmount
		sa.RequiredFeatures = slices.Clone(sa.RequiredFeatures)
		r.SmallAmount = &sa
	}
	return r
}
