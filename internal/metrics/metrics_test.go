package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObservePrecheck("DE_USTG", true, time.Millisecond)
	m.ObservePrecheck("DE_USTG", false, time.Millisecond)
	m.ObservePrecheck("DE_USTG", false, time.Millisecond)
	m.IncrementCriterion("FAILED", "error")
	m.IncrementResolution("CONFLICT_RULE_LLM", "RULE")
	m.ObserveRequest("/api/v1/precheck", "POST", 200, 2*time.Millisecond)

	if got := testutil.ToFloat64(m.PrecheckOutcome.WithLabelValues("DE_USTG", "false")); got != 2 {
		t.Errorf("failed prechecks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CriterionOutcome.WithLabelValues("FAILED", "error")); got != 1 {
		t.Errorf("criterion results = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Resolution.WithLabelValues("CONFLICT_RULE_LLM", "RULE")); got != 1 {
		t.Errorf("resolutions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/v1/precheck", "POST", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
}

func TestMetricsSeparateRegistries(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.ObservePrecheck("DE_USTG", true, time.Second)
	m.IncrementCriterion("PASSED", "info")
	m.IncrementResolution("NO_CONFLICT", "USER")
	m.ObserveRequest("/", "GET", 200, time.Second)
}
