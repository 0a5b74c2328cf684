package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"mercator-hq/vigil/pkg/history"
)

// CSVExporter exports history records as CSV, one row per run.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Header returns the CSV column names.
func Header() []string {
	return []string{
		"id", "recorded_at", "policy", "policy_version", "dataset", "environment",
		"success", "dry_run", "exit_code", "would_exit_code", "would_block",
		"terminated_early", "termination_rule", "rules_evaluated",
		"violation_count", "violated_rules", "duration_ms",
	}
}

// Export writes records to w in CSV format.
func (e *CSVExporter) Export(ctx context.Context, records []*history.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(Header()); err != nil {
			return history.NewExportError("csv", len(records), err)
		}
	}
	for _, record := range records {
		if err := writer.Write(recordToRow(record)); err != nil {
			return history.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return history.NewExportError("csv", len(records), err)
	}
	return nil
}

// ExportStream writes records from recordsCh until the channel is closed,
// flushing every 100 rows.
func (e *CSVExporter) ExportStream(ctx context.Context, recordsCh <-chan *history.Record, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(Header()); err != nil {
			return history.NewExportError("csv", 0, err)
		}
	}

	recordCount := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case record, ok := <-recordsCh:
			if !ok {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return history.NewExportError("csv", recordCount, err)
				}
				return nil
			}
			if err := writer.Write(recordToRow(record)); err != nil {
				return history.NewExportError("csv", recordCount, err)
			}
			recordCount++
			if recordCount%100 == 0 {
				writer.Flush()
			}
		}
	}
}

func recordToRow(r *history.Record) []string {
	rules := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		rules = append(rules, v.Rule)
	}

	return []string{
		r.ID,
		r.RecordedAt.UTC().Format(time.RFC3339),
		r.Policy,
		r.PolicyVersion,
		r.Dataset,
		r.Environment,
		strconv.FormatBool(r.Success),
		strconv.FormatBool(r.DryRun),
		strconv.Itoa(r.ExitCode),
		strconv.Itoa(r.WouldExitCode),
		strconv.FormatBool(r.WouldBlock),
		strconv.FormatBool(r.TerminatedEarly),
		r.TerminationRule,
		strconv.Itoa(r.RulesEvaluated),
		strconv.Itoa(len(r.Violations)),
		strings.Join(rules, ";"),
		strconv.FormatInt(r.Duration.Milliseconds(), 10),
	}
}
