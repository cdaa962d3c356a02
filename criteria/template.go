package criteria

import (
	"strings"
)

// render fills {name}, {message}, {actual}, {expected} and {field} in the
// criterion's template. Without a template the evaluator's message is used.
// Unknown placeholders are left as written.
func render(c Criterion, out outcome) string {
	if strings.TrimSpace(c.ErrorMessageTemplate) == "" {
		if out.message != "" {
			return out.message
		}
		return c.Name + " failed"
	}
	r := strings.NewReplacer(
		"{name}", c.Name,
		"{message}", out.message,
		"{actual}", display(out.actual),
		"{expected}", display(out.expected),
		"{field}", out.field,
	)
	return r.Replace(c.ErrorMessageTemplate)
}

func display(v any) string {
	if v == nil {
		return "-"
	}
	return describe(v)
}
