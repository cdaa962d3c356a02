// Package validators holds the stateless field validators used by the precheck
// engine: identifier formats, IBANs, dates, amounts, VAT rates and the
// net/vat/gross consistency check.
//
// Every validator accepts a raw extracted value (possibly nil) and reports the
// outcome as a Result. Malformed input never produces an error or a panic; it
// funnels into a status.
package validators

import (
	"fmt"
	"strings"
)

// Status is the outcome of a single validation.
type Status string

const (
	StatusValid   Status = "VALID"
	StatusInvalid Status = "INVALID"
	StatusMissing Status = "MISSING"
	StatusWarning Status = "WARNING"
)

// Failed reports whether the status blocks a required field.
func (s Status) Failed() bool {
	return s == StatusInvalid || s == StatusMissing
}

// Result is produced fresh by every validation call.
type Result struct {
	Status  Status         `json:"status"`
	Field   string         `json:"field"`
	Value   any            `json:"value,omitempty"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func valid(field string, value any, msg string) Result {
	return Result{Status: StatusValid, Field: field, Value: value, Message: msg}
}

func invalid(field string, value any, format string, args ...any) Result {
	return Result{Status: StatusInvalid, Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

func missing(field string) Result {
	return Result{Status: StatusMissing, Field: field, Message: fmt.Sprintf("%s is missing", field)}
}

func warning(field string, value any, format string, args ...any) Result {
	return Result{Status: StatusWarning, Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

// withDetail returns a copy of r carrying one more detail entry.
func (r Result) withDetail(key string, value any) Result {
	details := make(map[string]any, len(r.Details)+1)
	for k, v := range r.Details {
		details[k] = v
	}
	details[key] = value
	r.Details = details
	return r
}

// IsAbsent reports whether an extracted value counts as not present: nil, or a
// string that is empty after trimming.
func IsAbsent(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case *string:
		return t == nil || strings.TrimSpace(*t) == ""
	}
	return false
}

// text converts a raw value to its trimmed string form.
func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case *string:
		if t == nil {
			return ""
		}
		return strings.TrimSpace(*t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
