// Package export writes history records as JSON or CSV.
//
// Both exporters also accept a channel of records (ExportStream) so large
// history exports never hold every record in memory.
package export
