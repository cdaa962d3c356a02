// Package criteria evaluates user-authored business rules ("custom criteria")
// against arbitrary document data. Criteria are data, not code: each one names
// a logic type and carries a configuration of the matching shape.
package criteria

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/liamcoop/precheck/validators"
)

var (
	ErrNotFound         = errors.New("criterion not found")
	ErrAlreadyExists    = errors.New("criterion already exists")
	ErrInvalidConfig    = errors.New("invalid criterion configuration")
	ErrUnknownLogicType = errors.New("unknown logic type")
)

// LogicType selects how a criterion's configuration is interpreted.
type LogicType string

const (
	LogicSimpleComparison LogicType = "SIMPLE_COMPARISON"
	LogicFieldRequired    LogicType = "FIELD_REQUIRED"
	LogicDateRange        LogicType = "DATE_RANGE"
	LogicPatternMatch     LogicType = "PATTERN_MATCH"
	LogicFormula          LogicType = "FORMULA"
	LogicLookup           LogicType = "LOOKUP"
	LogicConditional      LogicType = "CONDITIONAL"
	LogicAggregate        LogicType = "AGGREGATE"
)

// LogicTypes lists every supported logic type.
var LogicTypes = []LogicType{
	LogicSimpleComparison, LogicFieldRequired, LogicDateRange, LogicPatternMatch,
	LogicFormula, LogicLookup, LogicConditional, LogicAggregate,
}

// Severity of a failing criterion.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Status of one evaluation.
type Status string

const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusUnclear Status = "UNCLEAR"
)

// FailurePolicy decides what a criterion that cannot be evaluated reports.
type FailurePolicy int

const (
	// FailClosed reports the criterion as not passed and flags it for review.
	FailClosed FailurePolicy = iota
	// FailOpen reports the criterion as passed with a diagnostic message.
	FailOpen
)

func (p FailurePolicy) String() string {
	if p == FailOpen {
		return "open"
	}
	return "closed"
}

// ParseFailurePolicy accepts "open" or "closed"; anything else is closed.
func ParseFailurePolicy(s string) FailurePolicy {
	if s == "open" {
		return FailOpen
	}
	return FailClosed
}

// Criterion is a stored business rule. A nil ProjectID or RulesetID means
// the criterion applies globally along that axis.
type Criterion struct {
	ID                   string     `json:"id" yaml:"id"`
	ProjectID            *string    `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	RulesetID            *string    `json:"ruleset_id,omitempty" yaml:"ruleset_id,omitempty"`
	Name                 string     `json:"name" yaml:"name"`
	Description          string     `json:"description,omitempty" yaml:"description,omitempty"`
	ErrorCode            string     `json:"error_code" yaml:"error_code"`
	Severity             Severity   `json:"severity" yaml:"severity"`
	IsActive             bool       `json:"is_active" yaml:"is_active"`
	LogicType            LogicType  `json:"logic_type" yaml:"logic_type"`
	RuleConfig           RuleConfig `json:"-" yaml:"-"`
	ErrorMessageTemplate string     `json:"error_message_template,omitempty" yaml:"error_message_template,omitempty"`
	Priority             int        `json:"priority" yaml:"priority"`
	CreatedAt            time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt            time.Time  `json:"updated_at" yaml:"-"`
}

// CriterionResult is the outcome of evaluating one criterion.
type CriterionResult struct {
	CriterionID   string   `json:"criterion_id"`
	CriterionName string   `json:"criterion_name"`
	ErrorCode     string   `json:"error_code"`
	Passed        bool     `json:"passed"`
	Status        Status   `json:"status"`
	NeedsReview   bool     `json:"needs_review,omitempty"`
	Severity      Severity `json:"severity"`
	Message       string   `json:"message"`
	Field         string   `json:"field,omitempty"`
	Expected      any      `json:"expected,omitempty"`
	Actual        any      `json:"actual,omitempty"`
}

// ProjectContext holds the project dates that symbolic references resolve to.
type ProjectContext struct {
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

type projectContextJSON struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// MarshalJSON writes the dates as YYYY-MM-DD.
func (p ProjectContext) MarshalJSON() ([]byte, error) {
	var out projectContextJSON
	if p.StartDate != nil {
		out.StartDate = p.StartDate.Format(time.DateOnly)
	}
	if p.EndDate != nil {
		out.EndDate = p.EndDate.Format(time.DateOnly)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts any date form validators.ParseDate understands,
// including YYYY-MM-DD and RFC 3339 timestamps. Empty dates stay unset.
func (p *ProjectContext) UnmarshalJSON(data []byte) error {
	var in projectContextJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var err error
	if p.StartDate, err = contextDate("start_date", in.StartDate); err != nil {
		return err
	}
	p.EndDate, err = contextDate("end_date", in.EndDate)
	return err
}

func contextDate(name, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, ok := validators.ParseDate(s)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", name, s)
	}
	return &d, nil
}
