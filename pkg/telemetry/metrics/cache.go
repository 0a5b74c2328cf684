package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/vigil/pkg/config"
)

// CacheStats is implemented by the condition parse cache.
type CacheStats interface {
	Stats() (hits, misses int64)
	Len() int
}

func registerCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry, cache CacheStats) error {
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "parse_cache",
				Name:      "hits_total",
				Help:      "Total number of parse cache hits",
			},
			func() float64 {
				hits, _ := cache.Stats()
				return float64(hits)
			},
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "parse_cache",
				Name:      "misses_total",
				Help:      "Total number of parse cache misses",
			},
			func() float64 {
				_, misses := cache.Stats()
				return float64(misses)
			},
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "parse_cache",
				Name:      "entries",
				Help:      "Number of parsed conditions in the cache",
			},
			func() float64 {
				return float64(cache.Len())
			},
		),
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}
