package criteria

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RuleConfig is the logic-type specific configuration of a criterion. The set
// of implementations is closed; the evaluator switches over it exhaustively.
type RuleConfig interface {
	LogicType() LogicType
	sealed()
}

// SimpleComparison compares one field against a literal.
// Operators: == != < <= > >= in not_in contains starts_with ends_with.
// ValueType forces "number", "date" or "string" coercion; empty means infer.
type SimpleComparison struct {
	Field     string `json:"field" yaml:"field"`
	Operator  string `json:"operator" yaml:"operator"`
	Value     any    `json:"value" yaml:"value"`
	ValueType string `json:"value_type,omitempty" yaml:"value_type,omitempty"`
}

// FieldRequired checks not_null, not_empty (default) or matches_pattern.
type FieldRequired struct {
	Field   string `json:"field" yaml:"field"`
	Check   string `json:"check,omitempty" yaml:"check,omitempty"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// DateRange bounds a date field. MinDate and MaxDate are literal dates or one
// of the references project_start, project_end, today.
type DateRange struct {
	Field             string `json:"field" yaml:"field"`
	MinDate           string `json:"min_date,omitempty" yaml:"min_date,omitempty"`
	MaxDate           string `json:"max_date,omitempty" yaml:"max_date,omitempty"`
	IncludeBoundaries *bool  `json:"include_boundaries,omitempty" yaml:"include_boundaries,omitempty"`
}

// PatternMatch tests a field against a regular expression.
type PatternMatch struct {
	Field         string `json:"field" yaml:"field"`
	Pattern       string `json:"pattern" yaml:"pattern"`
	CaseSensitive *bool  `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
}

// Formula evaluates an arithmetic comparison over numeric fields, for example
// "net_amount + vat_amount == gross_amount". Equality holds within Tolerance.
type Formula struct {
	Expression string   `json:"expression" yaml:"expression"`
	Tolerance  *float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	Field      string   `json:"field,omitempty" yaml:"field,omitempty"`
}

// Lookup modes.
const (
	LookupBlacklist = "blacklist"
	LookupWhitelist = "whitelist"
)

// Lookup tests membership of a field value in a literal list.
type Lookup struct {
	Field         string `json:"field" yaml:"field"`
	LookupValues  []any  `json:"lookup_values" yaml:"lookup_values"`
	LookupType    string `json:"lookup_type" yaml:"lookup_type"`
	CaseSensitive bool   `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
}

// Conditional applies Then only when If holds.
type Conditional struct {
	If   SimpleComparison `json:"if" yaml:"if"`
	Then FieldRequired    `json:"then" yaml:"then"`
}

// Aggregate compares a pre-aggregated metric supplied by the caller under
// document_data["aggregates"][Metric]. When the caller supplies no such value
// the criterion passes.
type Aggregate struct {
	Metric   string `json:"metric" yaml:"metric"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value" yaml:"value"`
}

func (*SimpleComparison) LogicType() LogicType { return LogicSimpleComparison }
func (*FieldRequired) LogicType() LogicType    { return LogicFieldRequired }
func (*DateRange) LogicType() LogicType        { return LogicDateRange }
func (*PatternMatch) LogicType() LogicType     { return LogicPatternMatch }
func (*Formula) LogicType() LogicType          { return LogicFormula }
func (*Lookup) LogicType() LogicType           { return LogicLookup }
func (*Conditional) LogicType() LogicType      { return LogicConditional }
func (*Aggregate) LogicType() LogicType        { return LogicAggregate }

func (*SimpleComparison) sealed() {}
func (*FieldRequired) sealed()    {}
func (*DateRange) sealed()        {}
func (*PatternMatch) sealed()     {}
func (*Formula) sealed()          {}
func (*Lookup) sealed()           {}
func (*Conditional) sealed()      {}
func (*Aggregate) sealed()        {}

// newRuleConfig returns an empty config of the shape lt requires.
func newRuleConfig(lt LogicType) (RuleConfig, error) {
	switch lt {
	case LogicSimpleComparison:
		return &SimpleComparison{}, nil
	case LogicFieldRequired:
		return &FieldRequired{}, nil
	case LogicDateRange:
		return &DateRange{}, nil
	case LogicPatternMatch:
		return &PatternMatch{}, nil
	case LogicFormula:
		return &Formula{}, nil
	case LogicLookup:
		return &Lookup{}, nil
	case LogicConditional:
		return &Conditional{}, nil
	case LogicAggregate:
		return &Aggregate{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLogicType, lt)
}

// DecodeRuleConfig decodes a JSON rule_config for the given logic type.
func DecodeRuleConfig(lt LogicType, raw []byte) (RuleConfig, error) {
	cfg, err := newRuleConfig(lt)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%w: rule_config for %s: %v", ErrInvalidConfig, lt, err)
	}
	return cfg, nil
}

// criterionAlias drops the methods of Criterion to avoid recursion.
type criterionAlias Criterion

type criterionJSON struct {
	criterionAlias
	RuleConfig json.RawMessage `json:"rule_config,omitempty"`
}

// MarshalJSON writes the rule config under "rule_config".
func (c Criterion) MarshalJSON() ([]byte, error) {
	out := criterionJSON{criterionAlias: criterionAlias(c)}
	if c.RuleConfig != nil {
		raw, err := json.Marshal(c.RuleConfig)
		if err != nil {
			return nil, err
		}
		out.RuleConfig = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes "rule_config" according to "logic_type".
func (c *Criterion) UnmarshalJSON(data []byte) error {
	var in criterionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Criterion(in.criterionAlias)
	if in.LogicType == "" {
		return nil
	}
	cfg, err := DecodeRuleConfig(in.LogicType, in.RuleConfig)
	if err != nil {
		return err
	}
	c.RuleConfig = cfg
	return nil
}

type criterionYAML struct {
	criterionAlias `yaml:",inline"`
	RuleConfig     yaml.Node `yaml:"rule_config"`
}

// UnmarshalYAML decodes "rule_config" according to "logic_type".
func (c *Criterion) UnmarshalYAML(node *yaml.Node) error {
	var in criterionYAML
	if err := node.Decode(&in); err != nil {
		return err
	}
	*c = Criterion(in.criterionAlias)
	if in.LogicType == "" {
		return nil
	}
	cfg, err := newRuleConfig(in.LogicType)
	if err != nil {
		return err
	}
	if !in.RuleConfig.IsZero() {
		if err := in.RuleConfig.Decode(cfg); err != nil {
			return fmt.Errorf("%w: rule_config for %s: %v", ErrInvalidConfig, in.LogicType, err)
		}
	}
	c.RuleConfig = cfg
	return nil
}
