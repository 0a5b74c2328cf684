package history

import (
	"fmt"
	"strings"
)

// MaxQueryLimit caps Query.Limit.
const MaxQueryLimit = 10000

// Validate checks the query for invalid ranges and options.
func (q *Query) Validate() error {
	if q.StartTime != nil && q.EndTime != nil && q.EndTime.Before(*q.StartTime) {
		return fmt.Errorf("%w: end time %s is before start time %s", ErrInvalidQuery, q.EndTime, q.StartTime)
	}
	if q.Limit < 0 || q.Limit > MaxQueryLimit {
		return fmt.Errorf("%w: limit must be between 0 and %d", ErrInvalidQuery, MaxQueryLimit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset cannot be negative", ErrInvalidQuery)
	}
	switch strings.ToLower(q.SortOrder) {
	case "", "asc", "desc":
	default:
		return fmt.Errorf("%w: sort order must be asc or desc, got %q", ErrInvalidQuery, q.SortOrder)
	}
	return nil
}

// Ascending reports whether results are sorted oldest first.
func (q *Query) Ascending() bool {
	return strings.EqualFold(q.SortOrder, "asc")
}

// Matches reports whether r satisfies the query filters. Backends that
// cannot filter natively use it.
func (q *Query) Matches(r *Record) bool {
	if q.StartTime != nil && r.RecordedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && !r.RecordedAt.Before(*q.EndTime) {
		return false
	}
	if q.Policy != "" && r.Policy != q.Policy {
		return false
	}
	if q.Dataset != "" && r.Dataset != q.Dataset {
		return false
	}
	if q.Environment != "" && r.Environment != q.Environment {
		return false
	}
	if q.DryRun != nil && r.DryRun != *q.DryRun {
		return false
	}
	if q.Success != nil && r.Success != *q.Success {
		return false
	}
	return true
}
