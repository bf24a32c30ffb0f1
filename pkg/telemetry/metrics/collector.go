package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kairo-hq/guardrails/pkg/config"
)

// Reload results used as the "result" label.
const (
	ReloadSuccess = "success"
	ReloadFailure = "failure"
)

// maxRuleIDs bounds the rule_id label values one collector admits.
const maxRuleIDs = 1000

// Collector owns the Prometheus registry and every guardrail metric. It
// implements the checker's Recorder, the manager's reload hook and the verdict
// cache observer. All methods are no-ops when metrics are disabled.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	checkMetrics  *CheckMetrics
	ruleMetrics   *RuleMetrics
	reloadMetrics *ReloadMetrics
	cacheMetrics  *CacheMetrics

	ruleIDs *labelSet
}

// NewCollector registers the guardrail metrics with registry. A nil registry
// gets a fresh one that also exports Go runtime and process metrics. Empty
// fields of cfg are filled with defaults.
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.CheckDurationBuckets) == 0 {
		cfg.CheckDurationBuckets = append([]float64(nil), config.DefaultCheckDurationBuckets...)
	}

	return &Collector{
		config:        cfg,
		registry:      registry,
		checkMetrics:  NewCheckMetrics(cfg, registry),
		ruleMetrics:   NewRuleMetrics(cfg, registry),
		reloadMetrics: NewReloadMetrics(cfg, registry),
		cacheMetrics:  NewCacheMetrics(cfg, registry),
		ruleIDs:       newLabelSet(maxRuleIDs),
	}
}

// RecordCheck records a completed check.
func (c *Collector) RecordCheck(mode, action string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.checkMetrics.RecordCheck(mode, action, duration)
}

// RecordRejected records a check refused before evaluation.
func (c *Collector) RecordRejected(kind string) {
	if !c.config.Enabled {
		return
	}
	c.checkMetrics.RecordRejected(kind)
}

// RecordViolation records a triggered rule.
func (c *Collector) RecordViolation(ruleID, severity string) {
	if !c.config.Enabled {
		return
	}
	c.ruleMetrics.RecordViolation(c.ruleIDs.label(ruleID), severity)
}

// RecordInconclusive records an external rule that could not be verified.
func (c *Collector) RecordInconclusive(ruleID string) {
	if !c.config.Enabled {
		return
	}
	c.ruleMetrics.RecordInconclusive(c.ruleIDs.label(ruleID))
}

// RecordEvaluationError records a rule skipped after an evaluation error.
func (c *Collector) RecordEvaluationError(ruleID string) {
	if !c.config.Enabled {
		return
	}
	c.ruleMetrics.RecordError(c.ruleIDs.label(ruleID))
}

// RecordReload records a rule reload attempt from source.
func (c *Collector) RecordReload(source, result string, duration time.Duration, rules int) {
	if !c.config.Enabled {
		return
	}
	c.reloadMetrics.RecordReload(source, result, duration, rules)
}

// RecordCacheHit records a verdict cache hit.
func (c *Collector) RecordCacheHit(capability string) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordHit(capability)
}

// RecordCacheMiss records a verdict cache miss.
func (c *Collector) RecordCacheMiss(capability string) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordMiss(capability)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry for scraping. A failing collector is reported in
// the response instead of failing the whole scrape.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
