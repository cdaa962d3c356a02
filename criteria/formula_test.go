package criteria

import (
	"errors"
	"testing"
)

func TestFormulaEvaluation(t *testing.T) {
	en := testEngine()
	data := map[string]any{
		"net_amount":   map[string]any{"value": "1.000,00"},
		"vat_amount":   190,
		"gross_amount": "1190.04",
		"totals":       map[string]any{"net": 500, "vat": 95},
		"discount":     0,
	}

	tests := []struct {
		name string
		cfg  Formula
		want bool
	}{
		{"sum within default tolerance fails", Formula{Expression: "net_amount + vat_amount == gross_amount"}, false},
		{"sum within wider tolerance", Formula{Expression: "net_amount + vat_amount == gross_amount", Tolerance: floatPtr(0.05)}, true},
		{"rate check", Formula{Expression: "round(net_amount * 0.19, 2) == vat_amount"}, true},
		{"nested fields", Formula{Expression: "totals.net * 0.19 == totals.vat"}, true},
		{"ordering", Formula{Expression: "gross_amount > net_amount"}, true},
		{"not equal", Formula{Expression: "net_amount != vat_amount"}, true},
		{"functions", Formula{Expression: "max(net_amount, vat_amount, 5) - min(vat_amount, 1000) == 810"}, true},
		{"abs and negation", Formula{Expression: "abs(-vat_amount) == 190"}, true},
		{"division", Formula{Expression: "vat_amount / net_amount * 100 == 19"}, true},
		{"missing operand fails", Formula{Expression: "shipping + net_amount == gross_amount"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			res := en.EvaluateCriterion(criterion("f", &cfg), data)
			if res.Status == StatusUnclear {
				t.Fatalf("unexpected evaluation error: %s", res.Message)
			}
			if res.Passed != tt.want {
				t.Errorf("Passed = %v, want %v (%s)", res.Passed, tt.want, res.Message)
			}
		})
	}
}

func TestFormulaEvaluationErrors(t *testing.T) {
	en := testEngine()
	data := map[string]any{"net_amount": 100, "discount": 0, "note": "n/a"}

	tests := []struct {
		name string
		expr string
	}{
		{"division by zero", "net_amount / discount == 1"},
		{"non-numeric field", "note + 1 == 2"},
		{"not a comparison", "net_amount + 1"},
		{"string literal", `net_amount == "100"`},
		{"function call outside subset", "size(note) == 3"},
		{"method call", "note.startsWith('n') == true"},
		{"logical operator", "net_amount > 1 && net_amount < 1000"},
		{"syntax error", "net_amount + == 3"},
		{"macro", "has(totals.net) == true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := en.EvaluateCriterion(criterion("f", &Formula{Expression: tt.expr}), data)
			if res.Status != StatusUnclear || res.Passed {
				t.Errorf("expected unclear result, got %+v", res)
			}
		})
	}
}

func TestParseFormula(t *testing.T) {
	if _, err := parseFormula("a + b.c * 2 <= round(d / 3, 1)"); err != nil {
		t.Errorf("parseFormula() error = %v", err)
	}
	_, err := parseFormula("a ? b : c")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ternary should be rejected with ErrInvalidConfig, got %v", err)
	}
}

func TestFormulaReportsOperands(t *testing.T) {
	c := criterion("f", &Formula{Expression: "net_amount + vat_amount == gross_amount"})
	res := testEngine().EvaluateCriterion(c, map[string]any{"net_amount": 100, "vat_amount": 19, "gross_amount": 120})

	if res.Passed {
		t.Fatal("119 != 120")
	}
	if res.Actual != "119" || res.Expected != "120" {
		t.Errorf("Actual = %v, Expected = %v", res.Actual, res.Expected)
	}
	if res.Field != "net_amount" {
		t.Errorf("Field = %q, want first referenced field", res.Field)
	}
}
