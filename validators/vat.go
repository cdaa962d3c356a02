package validators

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Jurisdiction keys used for rate tables and small-amount thresholds.
const (
	JurisdictionDE = "DE"
	JurisdictionEU = "EU"
	JurisdictionUK = "UK"
)

// NormalizeJurisdiction maps ruleset ids and country aliases to a jurisdiction
// key: DE_USTG -> DE, EU_VAT -> EU, UK_VAT and GB -> UK.
func NormalizeJurisdiction(j string) string {
	j = strings.ToUpper(strings.TrimSpace(j))
	if i := strings.IndexByte(j, '_'); i > 0 {
		j = j[:i]
	}
	if j == "GB" {
		return JurisdictionUK
	}
	return j
}

func rates(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

// knownVATRates lists standard, reduced and zero rates in percent.
var knownVATRates = map[string][]decimal.Decimal{
	JurisdictionDE: rates(19, 7, 0),
	JurisdictionUK: rates(20, 5, 0),
	"AT":           rates(20, 13, 10, 0),
	"FR":           rates(20, 10, 5.5, 2.1, 0),
	"NL":           rates(21, 9, 0),
	"BE":           rates(21, 12, 6, 0),
	"IT":           rates(22, 10, 5, 4, 0),
	"ES":           rates(21, 10, 4, 0),
	"PL":           rates(23, 8, 5, 0),
	JurisdictionEU: rates(0, 2.1, 3, 4, 5, 5.5, 6, 7, 8, 9, 10, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 25.5, 27),
}

var maxPlausibleRate = decimal.NewFromInt(30)

// ParseVATRate reads a rate given as 19, "19%", "19,0" or the fraction 0.19 and
// returns it in percent.
func ParseVATRate(rate any) (decimal.Decimal, bool) {
	if s, ok := rate.(string); ok {
		rate = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	}
	r, ok := ParseAmount(rate, LocaleDE)
	if !ok {
		return decimal.Zero, false
	}
	if r.IsPositive() && r.LessThan(decimal.NewFromInt(1)) {
		r = r.Mul(decimal.NewFromInt(100))
	}
	return r, true
}

// ValidateVATRate accepts the jurisdiction's known rates. A rate between 0 and
// 30 percent that is not on the list is a warning; it never hard-fails a
// plausible number.
func ValidateVATRate(rate any, jurisdiction string) Result {
	const field = "vat_rate"
	if IsAbsent(rate) {
		return missing(field)
	}
	r, ok := ParseVATRate(rate)
	if !ok {
		return invalid(field, text(rate), "VAT rate %q is not a number", text(rate))
	}
	value := r.String()
	if r.IsNegative() || r.GreaterThan(maxPlausibleRate) {
		return invalid(field, value, "VAT rate %s%% is not plausible", value)
	}
	key := NormalizeJurisdiction(jurisdiction)
	for _, known := range knownVATRates[key] {
		if r.Equal(known) {
			return valid(field, value, fmt.Sprintf("VAT rate %s%% is a standard rate for %s", value, key))
		}
	}
	return warning(field, value, "VAT rate %s%% is not a standard rate for %s", value, key).
		withDetail("jurisdiction", key)
}

// DefaultTolerance is the absolute tolerance of the amount calculation check.
var DefaultTolerance = decimal.NewFromFloat(0.01)

// CalculationOptions tunes ValidateAmountCalculation.
type CalculationOptions struct {
	// VATRate enables the net x rate = vat cross-check when set.
	VATRate any
	// Tolerance defaults to DefaultTolerance when nil.
	Tolerance *decimal.Decimal
	Locale    string
}

// ValidateAmountCalculation checks net + vat = gross within the tolerance. When
// exactly one of the three amounts is absent it is derived from the other two;
// with fewer than two amounts the result is MISSING.
func ValidateAmountCalculation(net, vat, gross any, opts CalculationOptions) Result {
	const field = "amount_calculation"
	tolerance := DefaultTolerance
	if opts.Tolerance != nil {
		tolerance = *opts.Tolerance
	}
	locale := opts.Locale
	if locale == "" {
		locale = LocaleDE
	}

	n, hasNet := parsePresent(net, locale)
	v, hasVAT := parsePresent(vat, locale)
	g, hasGross := parsePresent(gross, locale)

	var absent []string
	for name, ok := range map[string]bool{"net_amount": hasNet, "vat_amount": hasVAT, "gross_amount": hasGross} {
		if !ok {
			absent = append(absent, name)
		}
	}
	if len(absent) > 1 {
		sort.Strings(absent)
		return Result{
			Status:  StatusMissing,
			Field:   field,
			Message: fmt.Sprintf("cannot check amounts, missing %s", strings.Join(absent, ", ")),
			Details: map[string]any{"missing": absent},
		}
	}

	details := map[string]any{"tolerance": tolerance.String()}
	switch {
	case !hasNet:
		n = g.Sub(v)
		details["derived"] = "net_amount"
	case !hasVAT:
		v = g.Sub(n)
		details["derived"] = "vat_amount"
	case !hasGross:
		g = n.Add(v)
		details["derived"] = "gross_amount"
	}
	details["net_amount"] = n.StringFixed(2)
	details["vat_amount"] = v.StringFixed(2)
	details["gross_amount"] = g.StringFixed(2)

	diff := n.Add(v).Sub(g).Abs()
	if diff.GreaterThan(tolerance) {
		details["difference"] = diff.StringFixed(2)
		return Result{
			Status: StatusInvalid,
			Field:  field,
			Value:  g.StringFixed(2),
			Message: fmt.Sprintf("net %s + vat %s = %s does not match gross %s",
				n.StringFixed(2), v.StringFixed(2), n.Add(v).StringFixed(2), g.StringFixed(2)),
			Details: details,
		}
	}

	if !IsAbsent(opts.VATRate) {
		rate, ok := ParseVATRate(opts.VATRate)
		if !ok {
			details["vat_rate_ignored"] = text(opts.VATRate)
		} else {
			expected := n.Mul(rate).Div(decimal.NewFromInt(100))
			details["expected_vat_amount"] = expected.StringFixed(2)
			if expected.Sub(v).Abs().GreaterThan(tolerance) {
				return Result{
					Status: StatusInvalid,
					Field:  field,
					Value:  v.StringFixed(2),
					Message: fmt.Sprintf("vat %s does not match %s%% of net %s (expected %s)",
						v.StringFixed(2), rate.String(), n.StringFixed(2), expected.StringFixed(2)),
					Details: details,
				}
			}
		}
	}

	return Result{
		Status:  StatusValid,
		Field:   field,
		Value:   g.StringFixed(2),
		Message: "amounts are consistent",
		Details: details,
	}
}

func parsePresent(v any, locale string) (decimal.Decimal, bool) {
	if IsAbsent(v) {
		return decimal.Zero, false
	}
	return ParseAmount(v, locale)
}

// smallAmountThresholds holds the gross limits for simplified invoices:
// §33 UStDV (DE), Art. 238 VAT Directive (EU), VAT Notice 700/21 (UK).
var smallAmountThresholds = map[string]decimal.Decimal{
	JurisdictionDE: decimal.NewFromInt(250),
	JurisdictionEU: decimal.NewFromInt(400),
	JurisdictionUK: decimal.NewFromInt(250),
}

// SmallAmountThreshold returns the simplified-invoice limit for a jurisdiction.
func SmallAmountThreshold(jurisdiction string) (decimal.Decimal, bool) {
	t, ok := smallAmountThresholds[NormalizeJurisdiction(jurisdiction)]
	return t, ok
}

// IsSmallAmountInvoice reports whether gross is at or below the jurisdiction's
// threshold. Unparsable amounts and unknown jurisdictions are never small.
func IsSmallAmountInvoice(gross any, jurisdiction string) bool {
	threshold, ok := SmallAmountThreshold(jurisdiction)
	if !ok {
		return false
	}
	g, ok := parsePresent(gross, LocaleDE)
	if !ok {
		return false
	}
	return g.LessThanOrEqual(threshold)
}
