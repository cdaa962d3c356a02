package criteria

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/liamcoop/precheck/validators"
	"github.com/shopspring/decimal"
)

// Comparison operators understood by SIMPLE_COMPARISON, CONDITIONAL and
// AGGREGATE.
var comparisonOperators = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"in": true, "not_in": true, "contains": true, "starts_with": true, "ends_with": true,
}

// FIELD_REQUIRED checks.
const (
	CheckNotNull        = "not_null"
	CheckNotEmpty       = "not_empty"
	CheckMatchesPattern = "matches_pattern"
)

// Value types for SIMPLE_COMPARISON coercion.
const (
	ValueNumber = "number"
	ValueDate   = "date"
	ValueString = "string"
)

func (en *Engine) evalComparison(cfg *SimpleComparison, data map[string]any) (outcome, error) {
	out := outcome{field: cfg.Field, expected: cfg.Value}
	actual, ok := lookupField(data, cfg.Field)
	if !ok || actual == nil {
		out.message = fmt.Sprintf("%s is missing", cfg.Field)
		return out, nil
	}
	out.actual = actual

	holds, err := en.compare(actual, cfg.Operator, cfg.Value, cfg.ValueType)
	if err != nil {
		return outcome{}, err
	}
	out.passed = holds
	if !holds {
		out.message = fmt.Sprintf("%s is %s, expected %s %s", cfg.Field, toText(actual), cfg.Operator, describe(cfg.Value))
	}
	return out, nil
}

func describe(v any) string {
	if l, ok := asList(v); ok {
		parts := make([]string, len(l))
		for i, item := range l {
			parts[i] = toText(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return toText(v)
}

// compare applies op to actual and expected.
func (en *Engine) compare(actual any, op string, expected any, valueType string) (bool, error) {
	switch op {
	case "in", "not_in":
		list, ok := asList(expected)
		if !ok {
			return false, fmt.Errorf("%w: operator %s needs a list value", ErrInvalidConfig, op)
		}
		found := false
		for _, item := range list {
			c, err := en.order(actual, item, valueType)
			if err != nil {
				return false, err
			}
			if c == 0 {
				found = true
				break
			}
		}
		return found == (op == "in"), nil
	case "contains":
		if l, ok := asList(actual); ok {
			for _, item := range l {
				if c, err := en.order(item, expected, valueType); err == nil && c == 0 {
					return true, nil
				}
			}
			return false, nil
		}
		return strings.Contains(toText(actual), toText(expected)), nil
	case "starts_with":
		return strings.HasPrefix(toText(actual), toText(expected)), nil
	case "ends_with":
		return strings.HasSuffix(toText(actual), toText(expected)), nil
	case "==", "!=", "<", "<=", ">", ">=":
		c, err := en.order(actual, expected, valueType)
		if err != nil {
			return false, err
		}
		switch op {
		case "==":
			return c == 0, nil
		case "!=":
			return c != 0, nil
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	}
	return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidConfig, op)
}

// order compares a and b as numbers, dates or strings. With no explicit
// value type the mode is inferred from the operands.
func (en *Engine) order(a, b any, valueType string) (int, error) {
	switch valueType {
	case ValueNumber:
		x, okA := toNumber(a)
		y, okB := toNumber(b)
		if !okA || !okB {
			return 0, fmt.Errorf("cannot compare %v and %v as numbers", a, b)
		}
		return x.Cmp(y), nil
	case ValueDate:
		x, ok := validators.ParseDate(a)
		if !ok {
			return 0, fmt.Errorf("cannot parse date %v", a)
		}
		y, err := en.resolveDate(b)
		if err != nil {
			return 0, err
		}
		return x.Compare(y), nil
	case ValueString:
		return strings.Compare(toText(a), toText(b)), nil
	case "":
	default:
		return 0, fmt.Errorf("%w: unknown value_type %q", ErrInvalidConfig, valueType)
	}

	if isDateRef(b) {
		return en.order(a, b, ValueDate)
	}
	if isNumeric(a) || isNumeric(b) {
		if x, ok := toNumber(a); ok {
			if y, ok := toNumber(b); ok {
				return x.Cmp(y), nil
			}
		}
	}
	if _, ok := a.(time.Time); ok {
		return en.order(a, b, ValueDate)
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			if x, err := decimal.NewFromString(strings.TrimSpace(sa)); err == nil {
				if y, err := decimal.NewFromString(strings.TrimSpace(sb)); err == nil {
					return x.Cmp(y), nil
				}
			}
			if x, ok := validators.ParseDate(sa); ok {
				if y, ok := validators.ParseDate(sb); ok {
					return x.Compare(y), nil
				}
			}
		}
	}
	return strings.Compare(toText(a), toText(b)), nil
}

func evalRequired(cfg *FieldRequired, data map[string]any) (outcome, error) {
	out := outcome{field: cfg.Field, expected: cfg.Check}
	v, ok := lookupField(data, cfg.Field)
	if ok {
		out.actual = v
	}

	check := cfg.Check
	if check == "" {
		check = CheckNotEmpty
		out.expected = check
	}
	switch check {
	case CheckNotNull:
		out.passed = ok && v != nil
		if !out.passed {
			out.message = fmt.Sprintf("%s is required", cfg.Field)
		}
	case CheckNotEmpty:
		out.passed = ok && !isEmpty(v)
		if !out.passed {
			out.message = fmt.Sprintf("%s must not be empty", cfg.Field)
		}
	case CheckMatchesPattern:
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return outcome{}, fmt.Errorf("%w: pattern %q: %v", ErrInvalidConfig, cfg.Pattern, err)
		}
		out.expected = cfg.Pattern
		out.passed = ok && !validators.IsAbsent(v) && re.MatchString(toText(v))
		if !out.passed {
			out.message = fmt.Sprintf("%s does not match pattern %s", cfg.Field, cfg.Pattern)
		}
	default:
		return outcome{}, fmt.Errorf("%w: unknown check %q", ErrInvalidConfig, cfg.Check)
	}
	return out, nil
}

func (en *Engine) evalDateRange(cfg *DateRange, data map[string]any) (outcome, error) {
	inclusive := cfg.IncludeBoundaries == nil || *cfg.IncludeBoundaries

	var minDate, maxDate *time.Time
	if cfg.MinDate != "" {
		d, err := en.resolveDate(cfg.MinDate)
		if err != nil {
			return outcome{}, fmt.Errorf("min_date: %w", err)
		}
		minDate = &d
	}
	if cfg.MaxDate != "" {
		d, err := en.resolveDate(cfg.MaxDate)
		if err != nil {
			return outcome{}, fmt.Errorf("max_date: %w", err)
		}
		maxDate = &d
	}

	out := outcome{field: cfg.Field, expected: rangeText(minDate, maxDate, inclusive)}
	v, ok := lookupField(data, cfg.Field)
	if !ok || validators.IsAbsent(v) {
		out.message = fmt.Sprintf("%s is missing", cfg.Field)
		return out, nil
	}
	out.actual = v
	d, ok := validators.ParseDate(v)
	if !ok {
		out.message = fmt.Sprintf("%s is not a valid date", cfg.Field)
		return out, nil
	}
	out.actual = d.Format(time.DateOnly)

	out.passed = true
	if minDate != nil {
		c := d.Compare(*minDate)
		if c < 0 || (c == 0 && !inclusive) {
			out.passed = false
		}
	}
	if maxDate != nil {
		c := d.Compare(*maxDate)
		if c > 0 || (c == 0 && !inclusive) {
			out.passed = false
		}
	}
	if !out.passed {
		out.message = fmt.Sprintf("%s %s is outside %s", cfg.Field, out.actual, out.expected)
	}
	return out, nil
}

func rangeText(minDate, maxDate *time.Time, inclusive bool) string {
	lo, hi := "[", "]"
	if !inclusive {
		lo, hi = "(", ")"
	}
	format := func(t *time.Time) string {
		if t == nil {
			return "*"
		}
		return t.Format(time.DateOnly)
	}
	return lo + format(minDate) + ", " + format(maxDate) + hi
}

func evalPattern(cfg *PatternMatch, data map[string]any) (outcome, error) {
	pattern := cfg.Pattern
	if cfg.CaseSensitive != nil && !*cfg.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return outcome{}, fmt.Errorf("%w: pattern %q: %v", ErrInvalidConfig, cfg.Pattern, err)
	}

	out := outcome{field: cfg.Field, expected: cfg.Pattern}
	v, ok := lookupField(data, cfg.Field)
	if !ok || validators.IsAbsent(v) {
		out.passed = true
		out.message = fmt.Sprintf("%s not present, pattern not applied", cfg.Field)
		return out, nil
	}
	out.actual = v
	out.passed = re.MatchString(toText(v))
	if !out.passed {
		out.message = fmt.Sprintf("%s %q does not match %s", cfg.Field, toText(v), cfg.Pattern)
	}
	return out, nil
}

func lookupKey(v any, caseSensitive bool) string {
	if isNumeric(v) {
		if d, ok := toNumber(v); ok {
			return d.String()
		}
	}
	s := toText(v)
	if !caseSensitive {
		s = strings.ToLower(s)
	}
	return s
}

func evalLookup(cfg *Lookup, data map[string]any) (outcome, error) {
	mode := strings.ToLower(cfg.LookupType)
	if mode != LookupBlacklist && mode != LookupWhitelist {
		return outcome{}, fmt.Errorf("%w: lookup_type must be %s or %s, got %q",
			ErrInvalidConfig, LookupBlacklist, LookupWhitelist, cfg.LookupType)
	}
	if len(cfg.LookupValues) == 0 {
		return outcome{}, fmt.Errorf("%w: lookup_values is empty", ErrInvalidConfig)
	}

	out := outcome{field: cfg.Field, expected: describe(cfg.LookupValues)}
	v, ok := lookupField(data, cfg.Field)
	if !ok || validators.IsAbsent(v) {
		out.passed = true
		out.message = fmt.Sprintf("%s not present, lookup not applied", cfg.Field)
		return out, nil
	}
	out.actual = v

	key := lookupKey(v, cfg.CaseSensitive)
	found := false
	for _, item := range cfg.LookupValues {
		if lookupKey(item, cfg.CaseSensitive) == key {
			found = true
			break
		}
	}

	if mode == LookupWhitelist {
		out.passed = found
		if !found {
			out.message = fmt.Sprintf("%s %q is not an allowed value", cfg.Field, toText(v))
		}
		return out, nil
	}
	out.passed = !found
	if found {
		out.message = fmt.Sprintf("%s %q is blacklisted", cfg.Field, toText(v))
	}
	return out, nil
}

func (en *Engine) evalConditional(cfg *Conditional, data map[string]any) (outcome, error) {
	holds := false
	if actual, ok := lookupField(data, cfg.If.Field); ok && actual != nil {
		var err error
		holds, err = en.compare(actual, cfg.If.Operator, cfg.If.Value, cfg.If.ValueType)
		if err != nil {
			return outcome{}, fmt.Errorf("if: %w", err)
		}
	}
	if !holds {
		return outcome{
			passed:  true,
			field:   cfg.Then.Field,
			message: fmt.Sprintf("condition on %s not met", cfg.If.Field),
		}, nil
	}
	out, err := evalRequired(&cfg.Then, data)
	if err != nil {
		return outcome{}, fmt.Errorf("then: %w", err)
	}
	return out, nil
}

// AggregatesKey is where callers supply pre-aggregated metrics in the
// document data.
const AggregatesKey = "aggregates"

func (en *Engine) evalAggregate(cfg *Aggregate, data map[string]any) (outcome, error) {
	out := outcome{field: cfg.Metric, expected: cfg.Value}
	v, ok := lookupField(data, AggregatesKey+"."+cfg.Metric)
	if !ok || v == nil {
		out.passed = true
		out.message = fmt.Sprintf("aggregate %s not supplied, criterion skipped", cfg.Metric)
		return out, nil
	}
	out.actual = v
	holds, err := en.compare(v, cfg.Operator, cfg.Value, ValueNumber)
	if err != nil {
		return outcome{}, err
	}
	out.passed = holds
	if !holds {
		out.message = fmt.Sprintf("aggregate %s is %s, expected %s %s", cfg.Metric, toText(v), cfg.Operator, toText(cfg.Value))
	}
	return out, nil
}
