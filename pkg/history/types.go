package history

import (
	"context"
	"io"
	"time"
)

// Record is the stored form of one audit run.
type Record struct {
	// Identity
	ID string `json:"id"` // UUID v4, equal to the result's RunID

	// What ran
	Policy        string `json:"policy"`
	PolicyVersion string `json:"policy_version,omitempty"` // registry hash or git commit
	Dataset       string `json:"dataset,omitempty"`
	Environment   string `json:"environment,omitempty"`

	// Outcome
	Success         bool   `json:"success"`
	DryRun          bool   `json:"dry_run"`
	ExitCode        int    `json:"exit_code"`
	WouldExitCode   int    `json:"would_exit_code"`
	WouldBlock      bool   `json:"would_block"` // the run would fail if every rule were enforced
	TerminatedEarly bool   `json:"terminated_early"`
	TerminationRule string `json:"termination_rule,omitempty"`
	RulesEvaluated  int    `json:"rules_evaluated"`

	Violations []ViolationRecord `json:"violations"`

	// Timing
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// ViolationRecord is the stored form of a violation.
type ViolationRecord struct {
	Rule         string `json:"rule"`
	Severity     string `json:"severity"`
	Message      string `json:"message"`
	Enforced     bool   `json:"enforced"`
	Inconclusive bool   `json:"inconclusive,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Query defines filter parameters for querying records.
type Query struct {
	// Time range on RecordedAt
	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive start time
	EndTime   *time.Time `json:"end_time,omitempty"`   // Exclusive end time

	// Filters
	Policy      string `json:"policy,omitempty"`
	Dataset     string `json:"dataset,omitempty"`
	Environment string `json:"environment,omitempty"`
	DryRun      *bool  `json:"dry_run,omitempty"`
	Success     *bool  `json:"success,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`  // Max records to return, 0 for the backend default
	Offset int `json:"offset,omitempty"` // Skip N records

	// SortOrder is "asc" or "desc" (default) on RecordedAt.
	SortOrder string `json:"sort_order,omitempty"`
}

// Storage defines the interface for history storage backends.
// Implementations must be thread-safe and support concurrent access.
type Storage interface {
	// Store persists a record. The record ID must be set.
	Store(ctx context.Context, record *Record) error

	// Query retrieves records matching the query filters.
	// Returns an empty slice if no records match.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the query filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes records matching the query filters and returns the
	// number deleted. Limit and Offset are ignored.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases any resources held by the storage backend.
	Close() error
}

// Exporter writes records in some output format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}
