// Package profile provides profiling contexts for audit runs: an
// in-memory statistics cache and a loader for statistics files produced
// by an external profiler.
//
// A statistics file lists per-column metrics:
//
//	dataset: orders.csv
//	columns:
//	  email:
//	    missing_rate: 0.02
//	    unique_ratio: 0.97
//	  status:
//	    mode: shipped
//	    unique_count: 4
//
// Numeric values are served by GetStatistic and string values by
// GetTextStatistic.
package profile
