package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mercator-hq/vigil/pkg/config"
)

// DefaultMaxRuleCardinality bounds distinct policy/rule label pairs.
const DefaultMaxRuleCardinality = 10000

// otherLabel replaces rule names beyond the cardinality limit.
const otherLabel = "other"

// Collector owns the vigil Prometheus registry. It implements the audit
// runner's MetricsRecorder interface. A disabled collector records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	audit    *AuditMetrics
	schedule *ScheduleMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registered on registry. A nil registry
// creates a new one. cfg is not modified; empty fields use defaults.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	effective := *cfg
	if effective.Namespace == "" {
		effective.Namespace = config.DefaultMetricsNamespace
	}
	if len(effective.RuleDurationBuckets) == 0 {
		effective.RuleDurationBuckets = config.DefaultRuleDurationBuckets
	}

	return &Collector{
		config:             &effective,
		registry:           registry,
		audit:              NewAuditMetrics(&effective, registry),
		schedule:           NewScheduleMetrics(&effective, registry),
		cardinalityLimiter: NewCardinalityLimiter(DefaultMaxRuleCardinality),
	}
}

// RecordRule records one rule evaluation.
func (c *Collector) RecordRule(policy, rule, outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.audit.RecordRule(policy, c.ruleLabel(policy, rule), outcome, duration)
}

// RecordRun records a finished audit run.
func (c *Collector) RecordRun(policy, outcome string, exitCode, violations int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.audit.RecordRun(policy, outcome, exitCode, violations, duration)
}

// RecordFailFast records a fail-fast termination.
func (c *Collector) RecordFailFast(policy, rule string) {
	if !c.config.Enabled {
		return
	}
	c.audit.RecordFailFast(policy, c.ruleLabel(policy, rule))
}

// RecordJobRun records a scheduled job execution. status is "success",
// "failure" or "error".
func (c *Collector) RecordJobRun(job, status string, at time.Time) {
	if !c.config.Enabled {
		return
	}
	c.schedule.RecordJobRun(job, status, at)
}

// RecordPolicyReload records a policy reload from source ("file" or
// "git").
func (c *Collector) RecordPolicyReload(source string, err error) {
	if !c.config.Enabled {
		return
	}
	c.schedule.RecordReload(source, err)
}

// RegisterParseCache exports the hit, miss and size counters of cache.
// It may be called once per collector.
func (c *Collector) RegisterParseCache(cache CacheStats) error {
	if !c.config.Enabled {
		return nil
	}
	return registerCacheMetrics(c.config, c.registry, cache)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

func (c *Collector) ruleLabel(policy, rule string) string {
	if !c.cardinalityLimiter.Allow(policy + "\x00" + rule) {
		return otherLabel
	}
	return rule
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter with the specified maximum.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already tracked or fits under the
// limit, tracking it in the latter case.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
