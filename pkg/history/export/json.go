package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/vigil/pkg/history"
)

// JSONExporter exports history records as a JSON array.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes records to w as a JSON array. No records produce "[]".
func (e *JSONExporter) Export(ctx context.Context, records []*history.Record, w io.Writer) error {
	if records == nil {
		records = []*history.Record{}
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return history.NewExportError("json", len(records), err)
	}

	if _, err := w.Write(append(data, '\n')); err != nil {
		return history.NewExportError("json", len(records), err)
	}
	return nil
}

// ExportStream writes records from recordsCh as a JSON array until the
// channel is closed.
func (e *JSONExporter) ExportStream(ctx context.Context, recordsCh <-chan *history.Record, w io.Writer) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return history.NewExportError("json", 0, err)
	}

	recordCount := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case record, ok := <-recordsCh:
			if !ok {
				if _, err := io.WriteString(w, "]\n"); err != nil {
					return history.NewExportError("json", recordCount, err)
				}
				return nil
			}

			if recordCount > 0 {
				sep := ","
				if e.Pretty {
					sep = ",\n"
				}
				if _, err := io.WriteString(w, sep); err != nil {
					return history.NewExportError("json", recordCount, err)
				}
			}

			var data []byte
			var err error
			if e.Pretty {
				data, err = json.MarshalIndent(record, "  ", "  ")
			} else {
				data, err = json.Marshal(record)
			}
			if err != nil {
				return history.NewExportError("json", recordCount, err)
			}
			if _, err := w.Write(data); err != nil {
				return history.NewExportError("json", recordCount, err)
			}
			recordCount++
		}
	}
}
