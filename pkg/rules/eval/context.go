package eval

// ProfilingContext is a read-only source of per-field statistics.
// A missing statistic is reported with ok == false and is treated as
// inconclusive, never as zero.
type ProfilingContext interface {
	GetStatistic(metric, field string) (value float64, ok bool)
}

// TextProfilingContext is implemented by contexts that also carry
// non-numeric statistics, such as the most frequent value of a
// categorical column.
type TextProfilingContext interface {
	ProfilingContext
	GetTextStatistic(metric, field string) (value string, ok bool)
}

// MapContext is a ProfilingContext backed by a field -> metric -> value map.
// It is mainly useful in tests.
type MapContext map[string]map[string]float64

// GetStatistic implements ProfilingContext.
func (m MapContext) GetStatistic(metric, field string) (float64, bool) {
	stats, ok := m[field]
	if !ok {
		return 0, false
	}
	v, ok := stats[metric]
	return v, ok
}

// EmptyContext has no statistics. Every lookup is inconclusive.
type EmptyContext struct{}

// GetStatistic implements ProfilingContext.
func (EmptyContext) GetStatistic(string, string) (float64, bool) {
	return 0, false
}
