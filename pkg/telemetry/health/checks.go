package health

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/vigil/pkg/history"
)

// PolicyCheck fails while count reports no loaded policies.
func PolicyCheck(count func() int) CheckFunc {
	return func(ctx context.Context) error {
		if count() == 0 {
			return fmt.Errorf("no policies loaded")
		}
		return nil
	}
}

// StorageCheck fails when the history backend cannot answer a count query.
func StorageCheck(storage history.Storage) CheckFunc {
	return func(ctx context.Context) error {
		if _, err := storage.Count(ctx, &history.Query{}); err != nil {
			return fmt.Errorf("history storage unavailable: %w", err)
		}
		return nil
	}
}

// FreshnessCheck fails when last reports a time older than maxAge. A zero
// time passes, so the check does not fail before the first event.
func FreshnessCheck(what string, last func() time.Time, maxAge time.Duration) CheckFunc {
	return func(ctx context.Context) error {
		t := last()
		if t.IsZero() {
			return nil
		}
		if age := time.Since(t); age > maxAge {
			return fmt.Errorf("last %s was %s ago (max %s)", what, age.Round(time.Second), maxAge)
		}
		return nil
	}
}
