// Package eval evaluates parsed rule conditions against a ProfilingContext.
//
// Results are tri-state: a comparison whose statistic is unavailable yields
// Null (inconclusive) instead of an error, and logical operators propagate
// Null unless short-circuiting has already decided the outcome.
//
// Function and operator behavior is looked up in explicit registries that
// are built once and passed to New, so several differently configured
// evaluators can coexist in one process.
package eval
