package validators

import "regexp"

const minInvoiceNumberLength = 3

var invoiceNumberPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-/.]*$`)

// ValidateInvoiceNumber accepts alphanumeric invoice numbers of at least three
// characters that may contain '-', '/' and '.'.
func ValidateInvoiceNumber(v any) Result {
	const field = "invoice_number"
	if IsAbsent(v) {
		return missing(field)
	}
	s := text(v)
	if len(s) < minInvoiceNumberLength {
		return invalid(field, s, "invoice number %q is shorter than %d characters", s, minInvoiceNumberLength)
	}
	if !invoiceNumberPattern.MatchString(s) {
		return invalid(field, s, "invoice number %q contains unsupported characters", s)
	}
	return valid(field, s, "invoice number format is valid")
}

// ValidatePresent is the validator for free-text features (names, addresses,
// descriptions) where only presence matters.
func ValidatePresent(field string, v any) Result {
	if IsAbsent(v) {
		return missing(field)
	}
	return valid(field, text(v), "value present")
}
