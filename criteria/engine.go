package criteria

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/liamcoop/precheck/internal/logger"
)

// Engine evaluates criteria against document data for one project. It keeps
// no state between calls and is safe for concurrent use.
type Engine struct {
	project ProjectContext
	now     func() time.Time
	log     *slog.Logger
	policy  FailurePolicy
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the source of "today".
func WithClock(now func() time.Time) Option {
	return func(en *Engine) {
		en.now = now
	}
}

// WithLogger overrides the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(en *Engine) {
		en.log = l
	}
}

// WithFailurePolicy sets how evaluation errors are reported. The default is
// FailClosed.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(en *Engine) {
		en.policy = p
	}
}

// NewEngine creates an engine bound to a project context.
func NewEngine(project ProjectContext, opts ...Option) *Engine {
	en := &Engine{
		project: project,
		now:     time.Now,
		log:     logger.Logger,
		policy:  FailClosed,
	}
	for _, opt := range opts {
		opt(en)
	}
	return en
}

// outcome is what a logic-type evaluator decides before rendering.
type outcome struct {
	passed   bool
	message  string
	field    string
	expected any
	actual   any
}

// EvaluateCriterion evaluates a single criterion. Errors in the criterion's
// configuration never escape; they are logged and reported per the engine's
// failure policy.
func (en *Engine) EvaluateCriterion(c Criterion, data map[string]any) CriterionResult {
	res := CriterionResult{
		CriterionID:   c.ID,
		CriterionName: c.Name,
		ErrorCode:     c.ErrorCode,
		Severity:      c.Severity,
	}
	if res.Severity == "" {
		res.Severity = SeverityError
	}

	out, err := en.dispatch(c, data)
	if err != nil {
		logger.ErrorCriterion(c.ID, err)
		en.log.Debug("criterion evaluation error", "criterion_id", c.ID, "logic_type", c.LogicType, "policy", en.policy.String())
		res.Message = fmt.Sprintf("criterion %q could not be evaluated: %v", c.Name, err)
		if en.policy == FailOpen {
			res.Passed = true
			res.Status = StatusPassed
			return res
		}
		res.Status = StatusUnclear
		res.NeedsReview = true
		return res
	}

	res.Passed = out.passed
	res.Field = out.field
	res.Expected = out.expected
	res.Actual = out.actual
	if out.passed {
		res.Status = StatusPassed
		res.Message = out.message
		return res
	}
	res.Status = StatusFailed
	res.Message = render(c, out)
	return res
}

// EvaluateAll evaluates the active criteria in descending priority order.
// Criteria with equal priority keep their input order. Every criterion is
// evaluated; a failure does not stop the batch.
func (en *Engine) EvaluateAll(criteria []Criterion, data map[string]any) []CriterionResult {
	active := make([]Criterion, 0, len(criteria))
	for _, c := range criteria {
		if c.IsActive {
			active = append(active, c)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})

	results := make([]CriterionResult, 0, len(active))
	for _, c := range active {
		results = append(results, en.EvaluateCriterion(c, data))
	}
	return results
}

// dispatch runs the evaluator for the criterion's config shape. A panic in an
// evaluator is converted into an error.
func (en *Engine) dispatch(c Criterion, data map[string]any) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluator panic: %v", r)
		}
	}()

	if c.RuleConfig == nil {
		return outcome{}, fmt.Errorf("%w: criterion has no rule_config", ErrInvalidConfig)
	}
	if c.LogicType != "" && c.LogicType != c.RuleConfig.LogicType() {
		return outcome{}, fmt.Errorf("%w: logic_type %s does not match config %s",
			ErrInvalidConfig, c.LogicType, c.RuleConfig.LogicType())
	}

	switch cfg := c.RuleConfig.(type) {
	case *SimpleComparison:
		return en.evalComparison(cfg, data)
	case *FieldRequired:
		return evalRequired(cfg, data)
	case *DateRange:
		return en.evalDateRange(cfg, data)
	case *PatternMatch:
		return evalPattern(cfg, data)
	case *Formula:
		return evalFormula(cfg, data)
	case *Lookup:
		return evalLookup(cfg, data)
	case *Conditional:
		return en.evalConditional(cfg, data)
	case *Aggregate:
		return en.evalAggregate(cfg, data)
	}
	return outcome{}, fmt.Errorf("%w: %T", ErrUnknownLogicType, c.RuleConfig)
}
