package criteria

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/liamcoop/precheck/validators"
	"github.com/shopspring/decimal"
)

// Formulas are parsed with the CEL parser but never run as CEL programs. The
// walker below accepts only arithmetic, one top-level comparison, numeric
// literals, field references and abs, round, min, max.

var parseEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv()
})

var arithmetic = map[string]bool{
	operators.Add:      true,
	operators.Subtract: true,
	operators.Multiply: true,
	operators.Divide:   true,
	operators.Negate:   true,
}

var comparisons = map[string]string{
	operators.Equals:        "==",
	operators.NotEquals:     "!=",
	operators.Less:          "<",
	operators.LessEquals:    "<=",
	operators.Greater:       ">",
	operators.GreaterEquals: ">=",
}

var formulaFunctions = map[string]bool{
	"abs":   true,
	"round": true,
	"min":   true,
	"max":   true,
}

// errMissingOperand marks a formula that references an absent field. It is
// a data problem, not a configuration one.
type errMissingOperand struct {
	field string
}

func (e errMissingOperand) Error() string {
	return fmt.Sprintf("field %s is missing", e.field)
}

// parseFormula parses expr and checks that it only uses the permitted subset.
// The root must be a comparison.
func parseFormula(expr string) (ast.Expr, error) {
	env, err := parseEnv()
	if err != nil {
		return nil, fmt.Errorf("formula parser: %w", err)
	}
	parsed, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: formula %q: %v", ErrInvalidConfig, expr, iss.Err())
	}
	root := parsed.NativeRep().Expr()

	if root.Kind() != ast.CallKind {
		return nil, fmt.Errorf("%w: formula %q must be a comparison", ErrInvalidConfig, expr)
	}
	call := root.AsCall()
	if _, ok := comparisons[call.FunctionName()]; !ok || len(call.Args()) != 2 {
		return nil, fmt.Errorf("%w: formula %q must be a comparison", ErrInvalidConfig, expr)
	}
	for _, arg := range call.Args() {
		if err := checkArithmetic(arg); err != nil {
			return nil, fmt.Errorf("%w: formula %q: %v", ErrInvalidConfig, expr, err)
		}
	}
	return root, nil
}

func checkArithmetic(e ast.Expr) error {
	switch e.Kind() {
	case ast.LiteralKind:
		if _, err := literalNumber(e); err != nil {
			return err
		}
		return nil
	case ast.IdentKind, ast.SelectKind:
		if _, ok := fieldPath(e); !ok {
			return errors.New("unsupported field reference")
		}
		return nil
	case ast.CallKind:
		call := e.AsCall()
		fn := call.FunctionName()
		if call.IsMemberFunction() {
			return fmt.Errorf("method call %s is not allowed", fn)
		}
		if !arithmetic[fn] && !formulaFunctions[fn] {
			return fmt.Errorf("operator or function %s is not allowed", displayName(fn))
		}
		if fn == "round" && len(call.Args()) != 1 && len(call.Args()) != 2 {
			return errors.New("round takes one or two arguments")
		}
		if fn == "abs" && len(call.Args()) != 1 {
			return errors.New("abs takes one argument")
		}
		if len(call.Args()) == 0 {
			return fmt.Errorf("%s needs arguments", fn)
		}
		for _, arg := range call.Args() {
			if err := checkArithmetic(arg); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported expression")
}

func displayName(fn string) string {
	if op, ok := operators.FindReverse(fn); ok {
		return op
	}
	return fn
}

// fieldPath turns an identifier or a chain of selections into a dot path.
func fieldPath(e ast.Expr) (string, bool) {
	switch e.Kind() {
	case ast.IdentKind:
		return e.AsIdent(), true
	case ast.SelectKind:
		sel := e.AsSelect()
		if sel.IsTestOnly() {
			return "", false
		}
		base, ok := fieldPath(sel.Operand())
		if !ok {
			return "", false
		}
		return base + "." + sel.FieldName(), true
	}
	return "", false
}

func literalNumber(e ast.Expr) (decimal.Decimal, error) {
	switch v := e.AsLiteral().Value().(type) {
	case int64:
		return decimal.NewFromInt(v), nil
	case uint64:
		return decimal.NewFromString(strconv.FormatUint(v, 10))
	case float64:
		return decimal.NewFromFloat(v), nil
	}
	return decimal.Decimal{}, errors.New("only numeric literals are allowed")
}

// firstField returns the first field referenced by e, depth first.
func firstField(e ast.Expr) string {
	if path, ok := fieldPath(e); ok {
		return path
	}
	if e.Kind() == ast.CallKind {
		for _, arg := range e.AsCall().Args() {
			if f := firstField(arg); f != "" {
				return f
			}
		}
	}
	return ""
}

func evalNumber(e ast.Expr, data map[string]any) (decimal.Decimal, error) {
	switch e.Kind() {
	case ast.LiteralKind:
		return literalNumber(e)
	case ast.IdentKind, ast.SelectKind:
		path, ok := fieldPath(e)
		if !ok {
			return decimal.Decimal{}, errors.New("unsupported field reference")
		}
		v, ok := lookupField(data, path)
		if !ok || validators.IsAbsent(v) {
			return decimal.Decimal{}, errMissingOperand{field: path}
		}
		d, ok := toNumber(v)
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("field %s is not numeric: %v", path, v)
		}
		return d, nil
	case ast.CallKind:
		return evalCall(e.AsCall(), data)
	}
	return decimal.Decimal{}, errors.New("unsupported expression")
}

func evalCall(call ast.CallExpr, data map[string]any) (decimal.Decimal, error) {
	args := make([]decimal.Decimal, 0, len(call.Args()))
	for _, a := range call.Args() {
		d, err := evalNumber(a, data)
		if err != nil {
			return decimal.Decimal{}, err
		}
		args = append(args, d)
	}

	switch fn := call.FunctionName(); fn {
	case operators.Add:
		return args[0].Add(args[1]), nil
	case operators.Subtract:
		return args[0].Sub(args[1]), nil
	case operators.Multiply:
		return args[0].Mul(args[1]), nil
	case operators.Divide:
		if args[1].IsZero() {
			return decimal.Decimal{}, errors.New("division by zero")
		}
		return args[0].Div(args[1]), nil
	case operators.Negate:
		return args[0].Neg(), nil
	case "abs":
		return args[0].Abs(), nil
	case "round":
		places := int32(0)
		if len(args) == 2 {
			places = int32(args[1].IntPart())
		}
		return args[0].Round(places), nil
	case "min":
		return decimal.Min(args[0], args[1:]...), nil
	case "max":
		return decimal.Max(args[0], args[1:]...), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("operator or function %s is not allowed", displayName(fn))
	}
}

func evalFormula(cfg *Formula, data map[string]any) (outcome, error) {
	root, err := parseFormula(cfg.Expression)
	if err != nil {
		return outcome{}, err
	}
	call := root.AsCall()
	op := comparisons[call.FunctionName()]
	tolerance := validators.DefaultTolerance
	if cfg.Tolerance != nil {
		tolerance = decimal.NewFromFloat(*cfg.Tolerance)
	}

	out := outcome{field: cfg.Field}
	if out.field == "" {
		out.field = firstField(root)
	}

	left, err := evalNumber(call.Args()[0], data)
	if err == nil {
		var right decimal.Decimal
		right, err = evalNumber(call.Args()[1], data)
		if err == nil {
			out.actual = left.String()
			out.expected = right.String()
			out.passed = holdsWithin(left, right, op, tolerance)
			if !out.passed {
				out.message = fmt.Sprintf("%s does not hold (%s %s %s)", cfg.Expression, left.String(), op, right.String())
			}
			return out, nil
		}
	}

	var missing errMissingOperand
	if errors.As(err, &missing) {
		out.message = fmt.Sprintf("cannot check %s: %v", cfg.Expression, missing)
		return out, nil
	}
	return outcome{}, err
}

func holdsWithin(left, right decimal.Decimal, op string, tolerance decimal.Decimal) bool {
	diff := left.Sub(right).Abs()
	switch op {
	case "==":
		return diff.LessThanOrEqual(tolerance)
	case "!=":
		return diff.GreaterThan(tolerance)
	case "<":
		return left.LessThan(right)
	case "<=":
		return left.LessThanOrEqual(right)
	case ">":
		return left.GreaterThan(right)
	default:
		return left.GreaterThanOrEqual(right)
	}
}
