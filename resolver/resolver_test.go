package resolver

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var fixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testResolver() *Resolver {
	return New(WithClock(func() time.Time { return fixedTime }))
}

func sv(src Source, v any) *SourceValue {
	return &SourceValue{Source: src, Value: v}
}

func TestResolveScenarios(t *testing.T) {
	tests := []struct {
		name       string
		rule       *SourceValue
		llm        *SourceValue
		user       *SourceValue
		wantValue  any
		wantSource Source
		wantStatus ConflictStatus
	}{
		{"rule only", sv(SourceRule, "A"), nil, nil, "A", SourceRule, NoConflict},
		{"llm only", nil, sv(SourceLLM, "B"), nil, "B", SourceLLM, NoConflict},
		{"rule vs llm", sv(SourceRule, "A"), sv(SourceLLM, "B"), nil, "A", SourceRule, ConflictRuleLLM},
		{"rule vs user", sv(SourceRule, "A"), nil, sv(SourceUser, "C"), "C", SourceUser, ConflictRuleUser},
		{"llm vs user", nil, sv(SourceLLM, "B"), sv(SourceUser, "C"), "C", SourceUser, ConflictLLMUser},
		{"all differ", sv(SourceRule, "A"), sv(SourceLLM, "B"), sv(SourceUser, "C"), "C", SourceUser, ConflictRuleUser},
		{"user confirms rule", sv(SourceRule, "A"), sv(SourceLLM, "B"), sv(SourceUser, "A"), "A", SourceUser, ConflictRuleLLM},
		{"user confirms llm", sv(SourceRule, "A"), sv(SourceLLM, "B"), sv(SourceUser, "B"), "B", SourceUser, ConflictRuleUser},
		{"all agree", sv(SourceRule, "A"), sv(SourceLLM, "a "), sv(SourceUser, " A"), " A", SourceUser, NoConflict},
		{"rule and llm agree", sv(SourceRule, "DE123456789"), sv(SourceLLM, "de123456789"), nil, "DE123456789", SourceRule, NoConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testResolver().Resolve(tt.rule, tt.llm, tt.user)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.FinalValue != tt.wantValue {
				t.Errorf("FinalValue = %v, want %v", got.FinalValue, tt.wantValue)
			}
			if got.Source != tt.wantSource {
				t.Errorf("Source = %v, want %v", got.Source, tt.wantSource)
			}
			if got.ConflictStatus != tt.wantStatus {
				t.Errorf("ConflictStatus = %v, want %v", got.ConflictStatus, tt.wantStatus)
			}
			if got.HasConflict() != (tt.wantStatus != NoConflict) {
				t.Errorf("HasConflict() = %v", got.HasConflict())
			}
			if !got.ResolutionTimestamp.Equal(fixedTime) {
				t.Errorf("ResolutionTimestamp = %v", got.ResolutionTimestamp)
			}
		})
	}
}

func TestResolveNoCandidates(t *testing.T) {
	if _, err := testResolver().Resolve(nil, nil, nil); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("error = %v, want ErrNoCandidates", err)
	}
}

func TestResolveAuditTrail(t *testing.T) {
	got, err := testResolver().Resolve(sv(SourceRule, "A"), sv(SourceLLM, "B"), sv(SourceUser, "C"))
	if err != nil {
		t.Fatal(err)
	}

	sources := func(list []SourceValue) []Source {
		out := make([]Source, len(list))
		for i, v := range list {
			out[i] = v.Source
		}
		return out
	}
	if diff := cmp.Diff([]Source{SourceRule, SourceLLM, SourceUser}, sources(got.AllValues)); diff != "" {
		t.Errorf("AllValues mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Source{SourceRule, SourceLLM}, sources(got.Overridden)); diff != "" {
		t.Errorf("Overridden mismatch (-want +got):\n%s", diff)
	}
	for _, want := range []string{"USER", "RULE (A)", "LLM (B)", "user corrections"} {
		if !strings.Contains(got.ResolutionReasoning, want) {
			t.Errorf("reasoning %q does not mention %q", got.ResolutionReasoning, want)
		}
	}
}

func TestResolveAgreeingSourcesAreNotOverridden(t *testing.T) {
	got, err := testResolver().Resolve(sv(SourceRule, "A"), sv(SourceLLM, "B"), sv(SourceUser, "a"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Overridden) != 1 || got.Overridden[0].Source != SourceLLM {
		t.Errorf("Overridden = %+v", got.Overridden)
	}
}

func TestResolveTagsSlotSource(t *testing.T) {
	got, err := testResolver().Resolve(nil, &SourceValue{Source: SourceUser, Value: "x"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != SourceLLM || got.AllValues[0].Source != SourceLLM {
		t.Errorf("value in the llm slot must be tagged LLM, got %v", got.Source)
	}
}

func TestResolveReasoning(t *testing.T) {
	r := testResolver()

	single, _ := r.Resolve(sv(SourceRule, "A"), nil, nil)
	if single.ResolutionReasoning != "Only a RULE value was available" {
		t.Errorf("single reasoning = %q", single.ResolutionReasoning)
	}

	agree, _ := r.Resolve(sv(SourceRule, "A"), sv(SourceLLM, "A"), nil)
	if agree.ResolutionReasoning != "All 2 sources agree; using the RULE value" {
		t.Errorf("agree reasoning = %q", agree.ResolutionReasoning)
	}

	ruleWins, _ := r.Resolve(sv(SourceRule, "A"), sv(SourceLLM, "B"), nil)
	if !strings.Contains(ruleWins.ResolutionReasoning, "deterministic rule results") {
		t.Errorf("rule reasoning = %q", ruleWins.ResolutionReasoning)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		same bool
	}{
		{"trim and case", "  Acme GmbH ", "acme gmbh", true},
		{"numeric string vs float", "1190.00", 1190.0, true},
		{"int vs float", 19, 19.0, true},
		{"decimal vs string", decimal.RequireFromString("0.190"), "0.19", true},
		{"different numbers", 1190.0, 1190.01, false},
		{"unordered slices", []any{"b", "A"}, []string{"a", "B"}, true},
		{"maps", map[string]any{"x": 1, "y": "Z"}, map[string]any{"y": "z", "x": 1.0}, true},
		{"bools", true, "TRUE", true},
		{"nil vs empty", nil, "", true},
		{"different strings", "A", "B", false},
		{"nil decimal pointer", (*decimal.Decimal)(nil), "", true},
		{"decimal pointer", decimalPtr("1.50"), "1.5", true},
		{"nil time pointer", (*time.Time)(nil), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize(tt.a) == normalize(tt.b)
			if got != tt.same {
				t.Errorf("normalize(%v)=%q, normalize(%v)=%q", tt.a, normalize(tt.a), tt.b, normalize(tt.b))
			}
		})
	}
}

func TestMergeResults(t *testing.T) {
	rule := map[string]SourceValue{
		"invoice_number": {Value: "RE-1"},
		"gross_amount":   {Value: "1190.00"},
	}
	llm := map[string]SourceValue{
		"gross_amount":  {Value: 1190.0},
		"supplier_name": {Value: "Acme"},
	}
	user := map[string]SourceValue{
		"invoice_number": {Value: "RE-2"},
	}

	got := testResolver().MergeResults(rule, llm, user)
	if diff := cmp.Diff([]string{"gross_amount", "invoice_number", "supplier_name"}, Fields(got)); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	if got["invoice_number"].FinalValue != "RE-2" || got["invoice_number"].ConflictStatus != ConflictRuleUser {
		t.Errorf("invoice_number = %+v", got["invoice_number"])
	}
	if got["gross_amount"].Source != SourceRule || got["gross_amount"].ConflictStatus != NoConflict {
		t.Errorf("gross_amount = %+v", got["gross_amount"])
	}
	if got["supplier_name"].Source != SourceLLM {
		t.Errorf("supplier_name = %+v", got["supplier_name"])
	}
}

func TestMergeResultsEmpty(t *testing.T) {
	if got := MergeResults(nil, nil, nil); len(got) != 0 {
		t.Errorf("MergeResults(nil, nil, nil) = %v", got)
	}
}

func TestResolveIdempotent(t *testing.T) {
	r := testResolver()
	conf := 0.9
	llm := &SourceValue{Value: "B", Confidence: &conf, Reasoning: "read from header"}

	first, err := r.Resolve(sv(SourceRule, "A"), llm, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve(sv(SourceRule, "A"), llm, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated Resolve() differs (-first +second):\n%s", diff)
	}
	if llm.Source != "" {
		t.Error("Resolve() must not mutate its inputs")
	}
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestResolveNilPointerValue(t *testing.T) {
	got, err := testResolver().Resolve(sv(SourceRule, (*decimal.Decimal)(nil)), sv(SourceLLM, "1"), nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Source != SourceRule || got.ConflictStatus != ConflictRuleLLM {
		t.Errorf("Resolve() = %+v", got)
	}
}

func TestSourceValueJSONOmitsZeroTimestamp(t *testing.T) {
	raw, err := json.Marshal(SourceValue{Source: SourceLLM, Value: "ACME"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "timestamp") {
		t.Errorf("zero timestamp encoded: %s", raw)
	}

	raw, err = json.Marshal(SourceValue{Source: SourceUser, Value: "ACME", Timestamp: fixedTime})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"timestamp":"2025-03-01T12:00:00Z"`) {
		t.Errorf("timestamp missing: %s", raw)
	}
}
