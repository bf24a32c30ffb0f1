package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kairo-hq/guardrails/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:              true,
		Namespace:            "test",
		Subsystem:            "guardrails",
		CheckDurationBuckets: []float64{0.001, 0.01, 0.1, 1},
	}
}

func TestCollectorRecordCheck(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordCheck("full", "block", 2*time.Millisecond)
	c.RecordCheck("full", "block", 3*time.Millisecond)
	c.RecordCheck("jailbreak-only", "allow", time.Millisecond)
	c.RecordRejected("input_error")

	if got := testutil.ToFloat64(c.checkMetrics.checksTotal.WithLabelValues("full", "block")); got != 2 {
		t.Errorf("checks_total{full,block} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.checkMetrics.checksTotal.WithLabelValues("jailbreak-only", "allow")); got != 1 {
		t.Errorf("checks_total{jailbreak-only,allow} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.checkMetrics.rejected.WithLabelValues("input_error")); got != 1 {
		t.Errorf("checks_rejected_total = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.checkMetrics.checkDuration); n != 2 {
		t.Errorf("check_duration_seconds series = %d, want 2", n)
	}
}

func TestCollectorRuleMetrics(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordViolation("jailbreak-override-phrases", "critical")
	c.RecordInconclusive("fact-check")
	c.RecordInconclusive("fact-check")
	c.RecordEvaluationError("broken")

	if got := testutil.ToFloat64(c.ruleMetrics.violationsTotal.WithLabelValues("jailbreak-override-phrases", "critical")); got != 1 {
		t.Errorf("rule_violations_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ruleMetrics.inconclusiveTotal.WithLabelValues("fact-check")); got != 2 {
		t.Errorf("rule_inconclusive_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.ruleMetrics.errorsTotal.WithLabelValues("broken")); got != 1 {
		t.Errorf("rule_errors_total = %v, want 1", got)
	}
}

func TestCollectorRecordReload(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordReload("file", ReloadSuccess, 5*time.Millisecond, 12)
	c.RecordReload("file", ReloadFailure, time.Millisecond, 0)

	if got := testutil.ToFloat64(c.reloadMetrics.reloadsTotal.WithLabelValues("file", ReloadSuccess)); got != 1 {
		t.Errorf("rule_reloads_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.reloadMetrics.reloadsTotal.WithLabelValues("file", ReloadFailure)); got != 1 {
		t.Errorf("rule_reloads_total{failure} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.reloadMetrics.rulesLoaded); got != 12 {
		t.Errorf("rules_loaded = %v, want 12 (failure must not reset it)", got)
	}
	if got := testutil.ToFloat64(c.reloadMetrics.lastReload); got == 0 {
		t.Error("rules_last_reload_timestamp_seconds not set")
	}
}

func TestCollectorCacheMetrics(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordCacheHit("seda")
	c.RecordCacheMiss("seda")
	c.RecordCacheMiss("seda")

	if got := testutil.ToFloat64(c.cacheMetrics.hitsTotal.WithLabelValues("seda")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.cacheMetrics.missesTotal.WithLabelValues("seda")); got != 2 {
		t.Errorf("misses = %v, want 2", got)
	}
}

func TestCollectorDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, prometheus.NewRegistry())

	c.RecordCheck("full", "allow", time.Millisecond)
	c.RecordViolation("r", "low")
	c.RecordReload("builtin", ReloadSuccess, time.Millisecond, 3)

	if n := testutil.CollectAndCount(c.checkMetrics.checksTotal); n != 0 {
		t.Errorf("disabled collector recorded %d check series", n)
	}
	if n := testutil.CollectAndCount(c.ruleMetrics.violationsTotal); n != 0 {
		t.Errorf("disabled collector recorded %d violation series", n)
	}
}

func TestCollectorDefaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	NewCollector(cfg, nil)

	if cfg.Namespace != config.DefaultMetricsNamespace || cfg.Subsystem != config.DefaultMetricsSubsystem {
		t.Errorf("namespace/subsystem = %q/%q", cfg.Namespace, cfg.Subsystem)
	}
	if len(cfg.CheckDurationBuckets) == 0 {
		t.Error("check duration buckets not defaulted")
	}
}

func TestLabelSet(t *testing.T) {
	s := newLabelSet(2)

	tests := []struct {
		in, want string
	}{
		{"a", "a"},
		{"b", "b"},
		{"c", overflowLabel},
		{"a", "a"},
		{"d", overflowLabel},
	}
	for _, tt := range tests {
		if got := s.label(tt.in); got != tt.want {
			t.Errorf("label(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if s.size() != 2 {
		t.Errorf("size() = %d, want 2", s.size())
	}
}

func TestCollectorFoldsOverflowRuleIDs(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.ruleIDs = newLabelSet(1)

	c.RecordViolation("first", "low")
	c.RecordViolation("second", "low")

	if got := testutil.ToFloat64(c.ruleMetrics.violationsTotal.WithLabelValues(overflowLabel, "low")); got != 1 {
		t.Errorf("violations{rule_id=other} = %v, want 1", got)
	}
}

func TestNilRegistryExportsRuntimeMetrics(t *testing.T) {
	c := NewCollector(testConfig(), nil)

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "go_goroutines" {
			found = true
		}
	}
	if !found {
		t.Error("go_goroutines not registered on a default registry")
	}
}

func TestHandler(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.RecordCheck("full", "warn", time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `test_guardrails_checks_total{action="warn",mode="full"} 1`) {
		t.Errorf("metrics output missing checks_total:\n%s", body)
	}
}
