package profile

import (
	"errors"
	"sort"
	"sync"
)

// ErrFrozen is returned when writing to a frozen cache.
var ErrFrozen = errors.New("statistics cache is frozen")

// StatisticsCache holds field -> metric -> value statistics for one
// dataset. It implements eval.TextProfilingContext. After Freeze the
// cache is read-only.
type StatisticsCache struct {
	dataset string

	mu      sync.RWMutex
	numeric map[string]map[string]float64
	text    map[string]map[string]string
	frozen  bool
}

// NewStatisticsCache creates an empty cache for dataset.
func NewStatisticsCache(dataset string) *StatisticsCache {
	return &StatisticsCache{
		dataset: dataset,
		numeric: make(map[string]map[string]float64),
		text:    make(map[string]map[string]string),
	}
}

// Dataset returns the dataset name.
func (c *StatisticsCache) Dataset() string {
	return c.dataset
}

// Set stores a numeric statistic.
func (c *StatisticsCache) Set(field, metric string, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return ErrFrozen
	}
	if c.numeric[field] == nil {
		c.numeric[field] = make(map[string]float64)
	}
	c.numeric[field][metric] = value
	return nil
}

// SetText stores a non-numeric statistic.
func (c *StatisticsCache) SetText(field, metric, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return ErrFrozen
	}
	if c.text[field] == nil {
		c.text[field] = make(map[string]string)
	}
	c.text[field][metric] = value
	return nil
}

// Freeze makes the cache read-only.
func (c *StatisticsCache) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (c *StatisticsCache) Frozen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frozen
}

// GetStatistic implements eval.ProfilingContext.
func (c *StatisticsCache) GetStatistic(metric, field string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.numeric[field][metric]
	return v, ok
}

// GetTextStatistic implements eval.TextProfilingContext.
func (c *StatisticsCache) GetTextStatistic(metric, field string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.text[field][metric]
	return v, ok
}

// Fields returns the sorted names of all fields with any statistic.
func (c *StatisticsCache) Fields() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool, len(c.numeric)+len(c.text))
	for f := range c.numeric {
		seen[f] = true
	}
	for f := range c.text {
		seen[f] = true
	}
	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Len returns the number of stored statistics.
func (c *StatisticsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, m := range c.numeric {
		n += len(m)
	}
	for _, m := range c.text {
		n += len(m)
	}
	return n
}
