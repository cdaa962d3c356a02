package validators

import (
	"math/big"
	"regexp"
	"strings"
)

// ibanLengths maps SEPA country codes to the total IBAN length.
var ibanLengths = map[string]int{
	"AD": 24, "AT": 20, "BE": 16, "BG": 22, "CH": 21, "CY": 28, "CZ": 24,
	"DE": 22, "DK": 18, "EE": 20, "ES": 24, "FI": 18, "FR": 27, "GB": 22,
	"GI": 23, "GR": 27, "HR": 21, "HU": 28, "IE": 22, "IS": 26, "IT": 27,
	"LI": 21, "LT": 20, "LU": 20, "LV": 21, "MC": 27, "MT": 31, "NL": 18,
	"NO": 15, "PL": 28, "PT": 25, "RO": 24, "SE": 24, "SI": 19, "SK": 24,
	"SM": 27, "VA": 22,
}

var ibanPattern = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]+$`)

// ValidateIBAN checks the structure and country length of an IBAN. A value with
// a correct layout but a failing mod-97 check digit is reported as a warning.
func ValidateIBAN(v any) Result {
	const field = "iban"
	if IsAbsent(v) {
		return missing(field)
	}
	s := strings.ToUpper(strings.NewReplacer(" ", "", "\u00a0", "").Replace(text(v)))
	if !ibanPattern.MatchString(s) {
		return invalid(field, s, "IBAN %q contains invalid characters or layout", s)
	}

	country := s[:2]
	want, known := ibanLengths[country]
	switch {
	case known && len(s) != want:
		return invalid(field, s, "IBAN for %s must be %d characters, got %d", country, want, len(s)).
			withDetail("country", country)
	case !known && (len(s) < 15 || len(s) > 34):
		return invalid(field, s, "IBAN length %d is outside 15-34", len(s))
	}

	if !ibanChecksumOK(s) {
		return warning(field, s, "IBAN check digits do not verify").withDetail("country", country)
	}
	return valid(field, s, "IBAN format is valid").withDetail("country", country)
}

// ibanChecksumOK runs the ISO 7064 mod-97 check.
func ibanChecksumOK(iban string) bool {
	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			digits.WriteString(big.NewInt(int64(r-'A') + 10).String())
			continue
		}
		digits.WriteRune(r)
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}
