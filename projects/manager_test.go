package projects

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/liamcoop/precheck/criteria"
)

func periodCriterion() criteria.Criterion {
	return criteria.Criterion{
		ID:        "period",
		Name:      "Invoice inside project period",
		Severity:  criteria.SeverityError,
		IsActive:  true,
		LogicType: criteria.LogicDateRange,
		RuleConfig: &criteria.DateRange{
			Field:   "invoice_date",
			MinDate: criteria.RefProjectStart,
			MaxDate: criteria.RefProjectEnd,
		},
	}
}

func TestManagerPutAndEvaluate(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Put(Project{ID: "p1", Name: "Grant", StartDate: day("2025-01-01"), EndDate: day("2025-12-31")}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	en, err := m.Engine("p1")
	if err != nil {
		t.Fatalf("Engine() error = %v", err)
	}
	c := periodCriterion()
	if res := en.EvaluateCriterion(c, map[string]any{"invoice_date": "2025-06-15"}); !res.Passed {
		t.Errorf("2025-06-15 should pass: %+v", res)
	}
	if res := en.EvaluateCriterion(c, map[string]any{"invoice_date": "2026-01-01"}); res.Passed {
		t.Errorf("2026-01-01 should fail: %+v", res)
	}
}

func TestManagerPutSwapsEngine(t *testing.T) {
	m := NewManager(nil)
	clock := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	first, err := m.Put(Project{ID: "p1", Name: "Grant", StartDate: day("2025-01-01"), EndDate: day("2025-06-30")})
	if err != nil {
		t.Fatal(err)
	}
	old, _ := m.Engine("p1")

	clock = clock.Add(time.Hour)
	second, err := m.Put(Project{ID: "p1", Name: "Grant extended", StartDate: day("2025-01-01"), EndDate: day("2025-12-31")})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) || !second.UpdatedAt.Equal(clock) {
		t.Errorf("timestamps: created %v updated %v", second.CreatedAt, second.UpdatedAt)
	}

	current, _ := m.Engine("p1")
	if current == old {
		t.Fatal("Put() should build a new engine")
	}
	data := map[string]any{"invoice_date": "2025-09-01"}
	if res := old.EvaluateCriterion(periodCriterion(), data); res.Passed {
		t.Error("old engine keeps the old end date")
	}
	if res := current.EvaluateCriterion(periodCriterion(), data); !res.Passed {
		t.Error("new engine uses the extended end date")
	}
}

func TestManagerRejectsInvalidProject(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Put(Project{ID: "p1", Name: ""}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := m.Get("p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("invalid project must not be stored, Get() error = %v", err)
	}
}

func TestManagerNormalizesDates(t *testing.T) {
	m := NewManager(nil)
	start := time.Date(2025, 3, 4, 17, 30, 0, 0, time.UTC)
	p, err := m.Put(Project{ID: "p1", Name: "Grant", StartDate: &start})
	if err != nil {
		t.Fatal(err)
	}
	if !p.StartDate.Equal(*day("2025-03-04")) {
		t.Errorf("StartDate = %v", p.StartDate)
	}
	if start.Hour() != 17 {
		t.Error("Put() must not modify the caller's time")
	}
}

func TestManagerListAndDelete(t *testing.T) {
	m := NewManager(nil)
	for _, id := range []string{"b", "a", "c"} {
		if _, err := m.Put(Project{ID: id, Name: id}); err != nil {
			t.Fatal(err)
		}
	}

	list := m.List()
	if len(list) != 3 || list[0].ID != "a" || list[2].ID != "c" {
		t.Errorf("List() = %+v", list)
	}

	if err := m.Delete("b"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Engine("b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Engine() after delete error = %v", err)
	}
	if err := m.Delete("b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestManagerLoadAllWithoutDB(t *testing.T) {
	if err := NewManager(nil).LoadAll(); err != nil {
		t.Errorf("LoadAll() error = %v", err)
	}
}

func TestManagerConcurrentAccess(t *testing.T) {
	m := NewManager(nil, criteria.WithFailurePolicy(criteria.FailOpen))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := m.Put(Project{ID: "shared", Name: "Shared"}); err != nil {
				t.Errorf("Put() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			m.List()
			_, _ = m.Engine("shared")
		}()
	}
	wg.Wait()

	if len(m.List()) != 1 {
		t.Errorf("List() = %+v", m.List())
	}
}
