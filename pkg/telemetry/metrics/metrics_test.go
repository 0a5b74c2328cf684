package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/vigil/pkg/config"
	"mercator-hq/vigil/pkg/policy/engine"
)

var _ engine.MetricsRecorder = (*Collector)(nil)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:             true,
		Namespace:           "test",
		RuleDurationBuckets: []float64{0.001, 0.01, 0.1},
	}
}

func TestNewCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	c := NewCollector(cfg, nil)

	if c.Registry() == nil {
		t.Fatal("Registry() is nil")
	}
	if cfg.Namespace != "" {
		t.Error("NewCollector modified the caller's config")
	}
	c.RecordRun("orders", engine.RunSuccess, 0, 0, time.Millisecond)

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "vigil_audit_runs_total" {
			found = true
		}
	}
	if !found {
		t.Error("vigil_audit_runs_total not registered with the default namespace")
	}
}

func TestCollector_RecordRule(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordRule("orders", "row_count", engine.OutcomePass, 2*time.Millisecond)
	c.RecordRule("orders", "row_count", engine.OutcomePass, 3*time.Millisecond)
	c.RecordRule("orders", "nulls", engine.OutcomeViolation, time.Millisecond)

	tests := []struct {
		rule, outcome string
		want          float64
	}{
		{"row_count", engine.OutcomePass, 2},
		{"nulls", engine.OutcomeViolation, 1},
		{"nulls", engine.OutcomePass, 0},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(c.audit.ruleEvaluations.WithLabelValues("orders", tt.rule, tt.outcome))
		if got != tt.want {
			t.Errorf("rule_evaluations_total{%s,%s} = %v, want %v", tt.rule, tt.outcome, got, tt.want)
		}
	}
	if n := testutil.CollectAndCount(c.audit.ruleDuration); n != 1 {
		t.Errorf("rule_duration_seconds series = %d, want 1", n)
	}
}

func TestCollector_RecordRun(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordRun("orders", engine.RunFailure, 2, 3, time.Second)
	c.RecordRun("orders", engine.RunSuccess, 0, 1, time.Second)
	c.RecordFailFast("orders", "row_count")

	if got := testutil.ToFloat64(c.audit.runsTotal.WithLabelValues("orders", engine.RunFailure)); got != 1 {
		t.Errorf("runs_total{failure} = %v", got)
	}
	if got := testutil.ToFloat64(c.audit.violationsTotal.WithLabelValues("orders")); got != 4 {
		t.Errorf("violations_total = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.audit.lastExitCode.WithLabelValues("orders")); got != 0 {
		t.Errorf("last_exit_code = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.audit.failFastTotal.WithLabelValues("orders", "row_count")); got != 1 {
		t.Errorf("fail_fast_total = %v", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, prometheus.NewRegistry())

	c.RecordRule("orders", "r", engine.OutcomePass, time.Millisecond)
	c.RecordRun("orders", engine.RunSuccess, 0, 0, time.Millisecond)
	c.RecordJobRun("nightly", "success", time.Now())
	if err := c.RegisterParseCache(fakeCache{}); err != nil {
		t.Fatal(err)
	}

	if n := testutil.CollectAndCount(c.audit.ruleEvaluations); n != 0 {
		t.Errorf("disabled collector recorded %d series", n)
	}
	if n := testutil.CollectAndCount(c.schedule.jobRuns); n != 0 {
		t.Errorf("disabled collector recorded %d job series", n)
	}
}

func TestCollector_RuleCardinality(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.cardinalityLimiter = NewCardinalityLimiter(2)

	for _, rule := range []string{"a", "b", "c", "d", "a"} {
		c.RecordRule("p", rule, engine.OutcomePass, time.Millisecond)
	}

	if got := testutil.ToFloat64(c.audit.ruleEvaluations.WithLabelValues("p", "a", engine.OutcomePass)); got != 2 {
		t.Errorf("rule a = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.audit.ruleEvaluations.WithLabelValues("p", otherLabel, engine.OutcomePass)); got != 2 {
		t.Errorf("rule other = %v, want 2", got)
	}
}

func TestCollector_ScheduleMetrics(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	at := time.Unix(1700000000, 0)

	c.RecordJobRun("nightly", "success", at)
	c.RecordJobRun("nightly", "failure", at.Add(time.Hour))
	c.RecordPolicyReload("git", nil)
	c.RecordPolicyReload("git", errors.New("bad yaml"))
	c.RecordPolicyReload("file", nil)

	if got := testutil.ToFloat64(c.schedule.jobLastRun.WithLabelValues("nightly")); got != float64(at.Add(time.Hour).Unix()) {
		t.Errorf("job_last_run_timestamp_seconds = %v", got)
	}
	if got := testutil.ToFloat64(c.schedule.jobRuns.WithLabelValues("nightly", "success")); got != 1 {
		t.Errorf("job_runs_total{success} = %v", got)
	}
	if got := testutil.ToFloat64(c.schedule.reloadsTotal.WithLabelValues("git", "error")); got != 1 {
		t.Errorf("reloads_total{git,error} = %v", got)
	}
	if n := testutil.CollectAndCount(c.schedule.reloadsTotal); n != 3 {
		t.Errorf("reloads_total series = %d, want 3", n)
	}
}

type fakeCache struct{ hits, misses int64 }

func (f fakeCache) Stats() (int64, int64) { return f.hits, f.misses }
func (f fakeCache) Len() int              { return int(f.misses) }

func TestCollector_ParseCache(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	if err := c.RegisterParseCache(fakeCache{hits: 7, misses: 3}); err != nil {
		t.Fatalf("RegisterParseCache() error = %v", err)
	}
	if err := c.RegisterParseCache(fakeCache{}); err == nil {
		t.Error("second RegisterParseCache() succeeded")
	}

	expected := `
# HELP test_parse_cache_hits_total Total number of parse cache hits
# TYPE test_parse_cache_hits_total counter
test_parse_cache_hits_total 7
# HELP test_parse_cache_entries Number of parsed conditions in the cache
# TYPE test_parse_cache_entries gauge
test_parse_cache_entries 3
`
	err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected),
		"test_parse_cache_hits_total", "test_parse_cache_entries")
	if err != nil {
		t.Error(err)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.RecordRun("orders", engine.RunSuccess, 0, 0, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_audit_runs_total{outcome="success",policy="orders"} 1`) {
		t.Errorf("body missing runs_total:\n%s", rec.Body.String())
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)
	if !cl.Allow("a") || !cl.Allow("b") || !cl.Allow("a") {
		t.Error("Allow() rejected a label set under the limit")
	}
	if cl.Allow("c") {
		t.Error("Allow() accepted a label set over the limit")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d", cl.Count())
	}
}
