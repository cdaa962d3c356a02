package criteria

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCriterionJSONDecodesRuleConfig(t *testing.T) {
	raw := `{
		"id": "c1",
		"ruleset_id": "DE_USTG",
		"name": "Invoice inside project period",
		"error_code": "DATE_OUT_OF_RANGE",
		"severity": "error",
		"is_active": true,
		"logic_type": "DATE_RANGE",
		"priority": 10,
		"rule_config": {"field": "invoice_date", "min_date": "project_start", "max_date": "project_end", "include_boundaries": true}
	}`

	var c Criterion
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	cfg, ok := c.RuleConfig.(*DateRange)
	if !ok {
		t.Fatalf("RuleConfig = %T, want *DateRange", c.RuleConfig)
	}
	want := &DateRange{Field: "invoice_date", MinDate: RefProjectStart, MaxDate: RefProjectEnd, IncludeBoundaries: boolPtr(true)}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if c.RulesetID == nil || *c.RulesetID != "DE_USTG" || c.ProjectID != nil {
		t.Errorf("scope = %v / %v", c.ProjectID, c.RulesetID)
	}
	if c.Priority != 10 || !c.IsActive {
		t.Errorf("criterion = %+v", c)
	}
}

func TestCriterionJSONWritesRuleConfig(t *testing.T) {
	c := criterion("c1", &Lookup{Field: "currency", LookupValues: []any{"EUR"}, LookupType: LookupWhitelist})
	out, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(out), `"rule_config":{"field":"currency"`) {
		t.Errorf("rule_config not written: %s", out)
	}

	var back Criterion
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if diff := cmp.Diff(c.RuleConfig, back.RuleConfig); diff != "" {
		t.Errorf("rule_config changed (-before +after):\n%s", diff)
	}
}

func TestCriterionJSONUnknownLogicType(t *testing.T) {
	var c Criterion
	err := json.Unmarshal([]byte(`{"name": "x", "logic_type": "ML_MODEL", "rule_config": {}}`), &c)
	if !errors.Is(err, ErrUnknownLogicType) {
		t.Errorf("error = %v, want ErrUnknownLogicType", err)
	}
}

func TestCriterionJSONBadConfig(t *testing.T) {
	var c Criterion
	err := json.Unmarshal([]byte(`{"name": "x", "logic_type": "LOOKUP", "rule_config": {"lookup_values": "EUR"}}`), &c)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadYAML(t *testing.T) {
	doc := `
criteria:
  - id: period
    name: Invoice inside project period
    error_code: DATE_OUT_OF_RANGE
    severity: error
    is_active: true
    priority: 5
    logic_type: DATE_RANGE
    error_message_template: "{name}: {actual} not in {expected}"
    rule_config:
      field: invoice_date
      min_date: project_start
      max_date: project_end
  - id: po
    name: PO number above 1000
    severity: warning
    is_active: true
    logic_type: CONDITIONAL
    project_id: p1
    rule_config:
      if: {field: gross_amount, operator: ">", value: 1000}
      then: {field: po_number, check: not_empty}
`
	list, err := LoadYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadYAML() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("loaded %d criteria, want 2", len(list))
	}

	if _, ok := list[0].RuleConfig.(*DateRange); !ok {
		t.Errorf("first config = %T", list[0].RuleConfig)
	}
	cond, ok := list[1].RuleConfig.(*Conditional)
	if !ok {
		t.Fatalf("second config = %T", list[1].RuleConfig)
	}
	if cond.If.Operator != ">" || cond.Then.Check != CheckNotEmpty {
		t.Errorf("conditional = %+v", cond)
	}
	if list[1].ProjectID == nil || *list[1].ProjectID != "p1" {
		t.Error("project_id not decoded")
	}

	for _, c := range list {
		if err := ValidateCriterion(c); err != nil {
			t.Errorf("%s: %v", c.ID, err)
		}
	}

	res := testEngine().EvaluateCriterion(*list[0], map[string]any{"invoice_date": "2026-02-01"})
	if res.Passed || res.Message != "Invoice inside project period: 2026-02-01 not in [2025-01-01, 2025-12-31]" {
		t.Errorf("result = %+v", res)
	}
}

func TestLoadYAMLRejectsUnknownKeys(t *testing.T) {
	doc := "criterias:\n  - name: x\n"
	if _, err := LoadYAML(strings.NewReader(doc)); err == nil {
		t.Error("unknown top-level key should be rejected")
	}
}

func TestLoadYAMLEmpty(t *testing.T) {
	list, err := LoadYAML(strings.NewReader(""))
	if err != nil || len(list) != 0 {
		t.Errorf("LoadYAML(\"\") = %v, %v", list, err)
	}
}

func TestProjectContextJSON(t *testing.T) {
	var pc ProjectContext
	if err := json.Unmarshal([]byte(`{"start_date": "2025-01-01", "end_date": "31.12.2025"}`), &pc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	want := ProjectContext{StartDate: date(2025, 1, 1), EndDate: date(2025, 12, 31)}
	if diff := cmp.Diff(want, pc); diff != "" {
		t.Errorf("ProjectContext mismatch (-want +got):\n%s", diff)
	}

	raw, err := json.Marshal(pc)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"start_date":"2025-01-01","end_date":"2025-12-31"}` {
		t.Errorf("Marshal() = %s", raw)
	}

	var open ProjectContext
	if err := json.Unmarshal([]byte(`{"end_date": "2025-12-31T00:00:00Z"}`), &open); err != nil {
		t.Fatal(err)
	}
	if open.StartDate != nil || open.EndDate == nil || !open.EndDate.Equal(*date(2025, 12, 31)) {
		t.Errorf("open-ended context = %+v", open)
	}

	if err := json.Unmarshal([]byte(`{"start_date": "2025-02-30"}`), &pc); err == nil {
		t.Error("an impossible date should be rejected")
	}
}
