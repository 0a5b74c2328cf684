package history

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery is wrapped by query validation errors.
var ErrInvalidQuery = errors.New("invalid history query")

// StorageError wraps a failure of a storage backend such as "sqlite" or
// "memory". Operation names the step that failed.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("history %s %s: %v", e.Backend, e.Operation, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// ExportError wraps a failure writing records in Format. RecordCount is
// the number of records written or attempted.
type ExportError struct {
	Format      string
	RecordCount int
	Cause       error
}

func NewExportError(format string, count int, cause error) *ExportError {
	return &ExportError{Format: format, RecordCount: count, Cause: cause}
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s (%d records): %v", e.Format, e.RecordCount, e.Cause)
}

func (e *ExportError) Unwrap() error { return e.Cause }
