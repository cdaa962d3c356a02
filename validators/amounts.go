package validators

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Supported number locales for ParseAmount.
const (
	LocaleDE = "de"
	LocaleEN = "en"
)

var currencyStripper = strings.NewReplacer(
	"EUR", "", "USD", "", "GBP", "", "CHF", "",
	"€", "", "$", "", "£", "",
	" ", "", "\u00a0", "", "\u202f", "", "\t", "", "'", "",
)

var (
	amountChars         = regexp.MustCompile(`^[0-9.,]+$`)
	dottedThousandsOnly = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
)

// ParseAmount converts an extracted amount to a decimal. Strings are stripped of
// currency markers and whitespace; locale "de" reads '.' as thousands and ','
// as decimal separator, "en" the reverse. A string containing a single comma
// and no dot always treats the comma as the decimal separator. When both
// separators occur, the rightmost one is the decimal separator.
func ParseAmount(v any, locale string) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return t, true
	case *decimal.Decimal:
		if t == nil {
			return decimal.Zero, false
		}
		return *t, true
	case float64:
		return decimal.NewFromFloat(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case int32:
		return decimal.NewFromInt(int64(t)), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	}

	s := strings.TrimSpace(currencyStripper.Replace(text(v)))
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	switch {
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		negative, s = true, s[1:len(s)-1]
	case strings.HasPrefix(s, "-"):
		negative, s = true, s[1:]
	case strings.HasSuffix(s, "-"):
		negative, s = true, s[:len(s)-1]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !amountChars.MatchString(s) {
		return decimal.Zero, false
	}

	s = normalizeSeparators(s, locale)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

func normalizeSeparators(s, locale string) string {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			return strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.Replace(s, ",", ".", 1)
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	case dots == 1 && locale != LocaleEN && dottedThousandsOnly.MatchString(s):
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// AmountOptions bounds ValidateAmount. Nil bounds are not checked.
type AmountOptions struct {
	Locale       string
	Min          *decimal.Decimal
	Max          *decimal.Decimal
	MinInclusive bool
	MaxInclusive bool
}

// MonetaryAmount is the default for monetary fields: strictly positive, German
// number format, no upper bound.
func MonetaryAmount() AmountOptions {
	zero := decimal.Zero
	return AmountOptions{
		Locale:       LocaleDE,
		Min:          &zero,
		MinInclusive: false,
		MaxInclusive: true,
	}
}

// ValidateAmount parses v and checks it against opts.
func ValidateAmount(v any, field string, opts AmountOptions) Result {
	if IsAbsent(v) {
		return missing(field)
	}
	d, ok := ParseAmount(v, opts.Locale)
	if !ok {
		return invalid(field, text(v), "%s %q is not a valid amount", field, text(v))
	}
	value := d.StringFixed(2)
	if opts.Min != nil {
		if d.LessThan(*opts.Min) || (!opts.MinInclusive && d.Equal(*opts.Min)) {
			return invalid(field, value, "%s %s is below the minimum %s", field, value, opts.Min.String())
		}
	}
	if opts.Max != nil {
		if d.GreaterThan(*opts.Max) || (!opts.MaxInclusive && d.Equal(*opts.Max)) {
			return invalid(field, value, "%s %s is above the maximum %s", field, value, opts.Max.String())
		}
	}
	return valid(field, value, "amount is valid")
}
