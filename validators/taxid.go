package validators

import (
	"regexp"
	"strings"
)

// German Steuernummer layouts: the state-specific slash formats and the
// bare 11-digit form.
var germanTaxIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{2}/\d{3}/\d{5}$`),
	regexp.MustCompile(`^\d{3}/\d{3}/\d{5}$`),
	regexp.MustCompile(`^\d{3}/\d{4}/\d{4}$`),
	regexp.MustCompile(`^\d{11}$`),
}

var germanVATIDPattern = regexp.MustCompile(`^DE\d{9}$`)

// euVATIDPatterns holds the official per-member-state VAT number layouts,
// country prefix included. EL is Greece, XI is Northern Ireland.
var euVATIDPatterns = map[string]*regexp.Regexp{
	"AT": regexp.MustCompile(`^ATU\d{8}$`),
	"BE": regexp.MustCompile(`^BE[01]\d{9}$`),
	"BG": regexp.MustCompile(`^BG\d{9,10}$`),
	"CY": regexp.MustCompile(`^CY\d{8}[A-Z]$`),
	"CZ": regexp.MustCompile(`^CZ\d{8,10}$`),
	"DE": germanVATIDPattern,
	"DK": regexp.MustCompile(`^DK\d{8}$`),
	"EE": regexp.MustCompile(`^EE\d{9}$`),
	"EL": regexp.MustCompile(`^EL\d{9}$`),
	"ES": regexp.MustCompile(`^ES[A-Z0-9]\d{7}[A-Z0-9]$`),
	"FI": regexp.MustCompile(`^FI\d{8}$`),
	"FR": regexp.MustCompile(`^FR[A-HJ-NP-Z0-9]{2}\d{9}$`),
	"HR": regexp.MustCompile(`^HR\d{11}$`),
	"HU": regexp.MustCompile(`^HU\d{8}$`),
	"IE": regexp.MustCompile(`^IE(\d{7}[A-W][A-I]?|\d[A-Z+*]\d{5}[A-W])$`),
	"IT": regexp.MustCompile(`^IT\d{11}$`),
	"LT": regexp.MustCompile(`^LT(\d{9}|\d{12})$`),
	"LU": regexp.MustCompile(`^LU\d{8}$`),
	"LV": regexp.MustCompile(`^LV\d{11}$`),
	"MT": regexp.MustCompile(`^MT\d{8}$`),
	"NL": regexp.MustCompile(`^NL\d{9}B\d{2}$`),
	"PL": regexp.MustCompile(`^PL\d{10}$`),
	"PT": regexp.MustCompile(`^PT\d{9}$`),
	"RO": regexp.MustCompile(`^RO\d{2,10}$`),
	"SE": regexp.MustCompile(`^SE\d{12}$`),
	"SI": regexp.MustCompile(`^SI\d{8}$`),
	"SK": regexp.MustCompile(`^SK\d{10}$`),
	"XI": regexp.MustCompile(`^XI(\d{9}|\d{12}|GD\d{3}|HA\d{3})$`),
}

var ukVATIDPattern = regexp.MustCompile(`^GB(\d{9}|\d{12})$`)

// normalizeVATID upper-cases the value and drops spaces, dots and dashes that
// OCR commonly leaves inside VAT numbers.
func normalizeVATID(v any) string {
	s := strings.ToUpper(text(v))
	return strings.NewReplacer(" ", "", "\u00a0", "", ".", "", "-", "").Replace(s)
}

// ValidateGermanTaxID checks a German Steuernummer.
func ValidateGermanTaxID(v any) Result {
	const field = "tax_number"
	if IsAbsent(v) {
		return missing(field)
	}
	s := strings.ReplaceAll(text(v), " ", "")
	for _, p := range germanTaxIDPatterns {
		if p.MatchString(s) {
			return valid(field, s, "tax number format is valid")
		}
	}
	return invalid(field, text(v), "invalid German tax number format: %q", text(v))
}

// ValidateGermanVATID checks a German USt-IdNr (DE followed by nine digits).
func ValidateGermanVATID(v any) Result {
	const field = "vat_id"
	if IsAbsent(v) {
		return missing(field)
	}
	s := normalizeVATID(v)
	if germanVATIDPattern.MatchString(s) {
		return valid(field, s, "German VAT ID format is valid")
	}
	if !strings.HasPrefix(s, "DE") {
		return invalid(field, s, "German VAT ID must start with DE, got %q", s)
	}
	digits := strings.TrimPrefix(s, "DE")
	return invalid(field, s, "German VAT ID must have 9 digits after DE, got %d characters", len(digits)).
		withDetail("country", "DE")
}

// ValidateEUVATID checks the value against the pattern of the member state named
// by its prefix. A non-empty countryFilter additionally pins the country.
func ValidateEUVATID(v any, countryFilter string) Result {
	const field = "vat_id"
	if IsAbsent(v) {
		return missing(field)
	}
	s := normalizeVATID(v)
	if len(s) < 2 {
		return invalid(field, s, "VAT ID %q is too short", s)
	}
	if strings.HasPrefix(s, "GR") {
		s = "EL" + s[2:]
	}
	country := s[:2]
	pattern, ok := euVATIDPatterns[country]
	if !ok {
		return invalid(field, s, "unsupported VAT country prefix %q", country)
	}
	if !pattern.MatchString(s) {
		return invalid(field, s, "VAT ID %q does not match the %s format", s, country).
			withDetail("country", country)
	}
	if filter := strings.ToUpper(strings.TrimSpace(countryFilter)); filter != "" && filter != country {
		return invalid(field, s, "VAT ID country %s does not match expected %s", country, filter).
			withDetail("country", country)
	}
	return valid(field, s, "EU VAT ID format is valid").withDetail("country", country)
}

// ValidateUKVATID checks a UK VAT registration number: GB plus 9 or 12 digits.
func ValidateUKVATID(v any) Result {
	const field = "vat_id"
	if IsAbsent(v) {
		return missing(field)
	}
	s := normalizeVATID(v)
	if ukVATIDPattern.MatchString(s) {
		return valid(field, s, "UK VAT ID format is valid")
	}
	if !strings.HasPrefix(s, "GB") {
		return invalid(field, s, "UK VAT ID must start with GB, got %q", s)
	}
	return invalid(field, s, "UK VAT ID must have 9 or 12 digits after GB")
}
