package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/vigil/pkg/history"
)

func testRecords() []*history.Record {
	at := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	return []*history.Record{
		{
			ID: "run-1", Policy: "orders", Dataset: "orders.csv", Success: true,
			RulesEvaluated: 2, RecordedAt: at, Duration: 1250 * time.Millisecond,
		},
		{
			ID: "run-2", Policy: "orders", Success: false, ExitCode: 2, WouldExitCode: 2, WouldBlock: true,
			TerminatedEarly: true, TerminationRule: "min_rows", RulesEvaluated: 1,
			Violations: []history.ViolationRecord{
				{Rule: "min_rows", Severity: "error", Message: "rows, below", Enforced: true},
				{Rule: "nulls", Severity: "warning"},
			},
			RecordedAt: at.Add(time.Hour),
		},
	}
}

func TestJSONExporter_Export(t *testing.T) {
	for _, pretty := range []bool{false, true} {
		var buf bytes.Buffer
		if err := NewJSONExporter(pretty).Export(context.Background(), testRecords(), &buf); err != nil {
			t.Fatalf("Export(pretty=%v) failed: %v", pretty, err)
		}

		var got []*history.Record
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
		}
		if len(got) != 2 || got[1].TerminationRule != "min_rows" || len(got[1].Violations) != 2 {
			t.Errorf("decoded = %+v", got)
		}
	}
}

func TestJSONExporter_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(context.Background(), nil, &buf); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("Export(nil) = %q, want []", got)
	}
}

func TestJSONExporter_ExportStream(t *testing.T) {
	ch := make(chan *history.Record)
	go func() {
		defer close(ch)
		for _, r := range testRecords() {
			ch <- r
		}
	}()

	var buf bytes.Buffer
	if err := NewJSONExporter(true).ExportStream(context.Background(), ch, &buf); err != nil {
		t.Fatalf("ExportStream() failed: %v", err)
	}
	var got []*history.Record
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("stream output is not a JSON array: %v\n%s", err, buf.String())
	}
	if len(got) != 2 {
		t.Errorf("decoded %d records, want 2", len(got))
	}
}

func TestExportStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := make(chan *history.Record)

	if err := NewJSONExporter(false).ExportStream(ctx, ch, &bytes.Buffer{}); !errors.Is(err, context.Canceled) {
		t.Errorf("JSON ExportStream() error = %v, want context.Canceled", err)
	}
	if err := NewCSVExporter(true).ExportStream(ctx, ch, &bytes.Buffer{}); !errors.Is(err, context.Canceled) {
		t.Errorf("CSV ExportStream() error = %v, want context.Canceled", err)
	}
}

func TestCSVExporter_Export(t *testing.T) {
	tests := []struct {
		name     string
		header   bool
		wantRows int
	}{
		{"with header", true, 3},
		{"without header", false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewCSVExporter(tt.header).Export(context.Background(), testRecords(), &buf); err != nil {
				t.Fatalf("Export() failed: %v", err)
			}

			rows, err := csv.NewReader(&buf).ReadAll()
			if err != nil {
				t.Fatalf("output is not valid CSV: %v", err)
			}
			if len(rows) != tt.wantRows {
				t.Fatalf("rows = %d, want %d", len(rows), tt.wantRows)
			}

			last := rows[len(rows)-1]
			if len(last) != len(Header()) {
				t.Fatalf("row has %d columns, want %d", len(last), len(Header()))
			}
			if last[0] != "run-2" || last[6] != "false" || last[14] != "2" || last[15] != "min_rows;nulls" {
				t.Errorf("row = %v", last)
			}
			if tt.header && rows[0][0] != "id" {
				t.Errorf("header = %v", rows[0])
			}
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestExport_WriteError(t *testing.T) {
	var exportErr *history.ExportError

	err := NewJSONExporter(false).Export(context.Background(), testRecords(), failingWriter{})
	if !errors.As(err, &exportErr) || exportErr.Format != "json" {
		t.Errorf("JSON Export() error = %v, want json ExportError", err)
	}

	err = NewCSVExporter(true).Export(context.Background(), testRecords(), failingWriter{})
	if !errors.As(err, &exportErr) || exportErr.Format != "csv" {
		t.Errorf("CSV Export() error = %v, want csv ExportError", err)
	}
}
