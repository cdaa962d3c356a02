package criteria

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const maxNameLength = 200

var errorCodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ValidateCriterion checks a criterion before it is stored. It catches the
// configuration errors the engine would otherwise only find at evaluation
// time. All problems are joined into one error wrapping ErrInvalidConfig.
func ValidateCriterion(c *Criterion) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	name := strings.TrimSpace(c.Name)
	switch {
	case name == "":
		add("name cannot be empty")
	case len(name) > maxNameLength:
		add("name length %d exceeds maximum of %d characters", len(name), maxNameLength)
	}

	if c.ErrorCode != "" && !errorCodePattern.MatchString(c.ErrorCode) {
		add("error_code %q must match %s", c.ErrorCode, errorCodePattern)
	}

	switch c.Severity {
	case SeverityError, SeverityWarning, SeverityInfo:
	default:
		add("severity %q must be one of error, warning, info", c.Severity)
	}

	if c.RuleConfig == nil {
		if _, err := newRuleConfig(c.LogicType); err != nil {
			errs = append(errs, err)
		}
		add("rule_config is required")
	} else {
		if c.LogicType != c.RuleConfig.LogicType() {
			add("logic_type %q does not match rule_config of type %s", c.LogicType, c.RuleConfig.LogicType())
		}
		errs = append(errs, validateConfig(c.RuleConfig)...)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func validateConfig(cfg RuleConfig) []error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	requireField := func(field string) {
		if strings.TrimSpace(field) == "" {
			add("field cannot be empty")
		}
	}
	checkComparison := func(sc *SimpleComparison) {
		requireField(sc.Field)
		if !comparisonOperators[sc.Operator] {
			add("unknown operator %q", sc.Operator)
		}
		if sc.Operator == "in" || sc.Operator == "not_in" {
			if _, ok := asList(sc.Value); !ok {
				add("operator %s needs a list value", sc.Operator)
			}
		}
		switch sc.ValueType {
		case "", ValueNumber, ValueDate, ValueString:
		default:
			add("unknown value_type %q", sc.ValueType)
		}
	}
	checkRequired := func(fr *FieldRequired) {
		requireField(fr.Field)
		switch fr.Check {
		case "", CheckNotNull, CheckNotEmpty:
		case CheckMatchesPattern:
			if _, err := regexp.Compile(fr.Pattern); err != nil {
				add("pattern %q does not compile: %v", fr.Pattern, err)
			}
		default:
			add("unknown check %q", fr.Check)
		}
	}

	switch c := cfg.(type) {
	case *SimpleComparison:
		checkComparison(c)
	case *FieldRequired:
		checkRequired(c)
	case *DateRange:
		requireField(c.Field)
		if c.MinDate == "" && c.MaxDate == "" {
			add("date range needs min_date or max_date")
		}
	case *PatternMatch:
		requireField(c.Field)
		if _, err := regexp.Compile(c.Pattern); err != nil {
			add("pattern %q does not compile: %v", c.Pattern, err)
		}
	case *Formula:
		if _, err := parseFormula(c.Expression); err != nil {
			add("%v", err)
		}
		if c.Tolerance != nil && *c.Tolerance < 0 {
			add("tolerance cannot be negative")
		}
	case *Lookup:
		requireField(c.Field)
		if len(c.LookupValues) == 0 {
			add("lookup_values cannot be empty")
		}
		if t := strings.ToLower(c.LookupType); t != LookupBlacklist && t != LookupWhitelist {
			add("lookup_type must be %s or %s", LookupBlacklist, LookupWhitelist)
		}
	case *Conditional:
		checkComparison(&c.If)
		checkRequired(&c.Then)
	case *Aggregate:
		if strings.TrimSpace(c.Metric) == "" {
			add("metric cannot be empty")
		}
		switch c.Operator {
		case "==", "!=", "<", "<=", ">", ">=":
		default:
			add("aggregate operator %q must be a numeric comparison", c.Operator)
		}
		if _, ok := toNumber(c.Value); !ok {
			add("aggregate value %v is not numeric", c.Value)
		}
	}
	return errs
}
