package eval

import (
	"sort"
)

// Function resolves a statistic for a field. It returns Null when the
// statistic is unavailable.
type Function func(ctx ProfilingContext, field string) Value

// FunctionRegistry is an immutable name -> Function map.
type FunctionRegistry struct {
	funcs map[string]Function
}

// DefaultFunctionNames lists the statistics registered by DefaultFunctions.
var DefaultFunctionNames = []string{
	"count",
	"drift_score",
	"max",
	"mean",
	"median",
	"min",
	"missing_count",
	"missing_rate",
	"mode",
	"null_count",
	"row_count",
	"std",
	"sum",
	"unique_count",
	"unique_ratio",
}

// NewFunctionRegistry copies funcs into a new registry.
func NewFunctionRegistry(funcs map[string]Function) *FunctionRegistry {
	m := make(map[string]Function, len(funcs))
	for name, fn := range funcs {
		m[name] = fn
	}
	return &FunctionRegistry{funcs: m}
}

// DefaultFunctions returns a registry where each name in
// DefaultFunctionNames reads the statistic of the same name.
func DefaultFunctions() *FunctionRegistry {
	funcs := make(map[string]Function, len(DefaultFunctionNames))
	for _, name := range DefaultFunctionNames {
		funcs[name] = Statistic(name)
	}
	return &FunctionRegistry{funcs: funcs}
}

// Statistic returns a Function that reads metric from the context.
// If the context carries text statistics and no numeric value exists,
// the text value is returned.
func Statistic(metric string) Function {
	return func(ctx ProfilingContext, field string) Value {
		if ctx == nil {
			return Null()
		}
		if v, ok := ctx.GetStatistic(metric, field); ok {
			return Number(v)
		}
		if tc, ok := ctx.(TextProfilingContext); ok {
			if s, ok := tc.GetTextStatistic(metric, field); ok {
				return String(s)
			}
		}
		return Null()
	}
}

// Lookup returns the function registered under name.
func (r *FunctionRegistry) Lookup(name string) (Function, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered names in sorted order.
func (r *FunctionRegistry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// With returns a copy of the registry with fn registered under name.
func (r *FunctionRegistry) With(name string, fn Function) *FunctionRegistry {
	next := NewFunctionRegistry(r.funcs)
	next.funcs[name] = fn
	return next
}

// Len returns the number of registered functions.
func (r *FunctionRegistry) Len() int {
	return len(r.funcs)
}
