// Package history persists audit run results and analyzes them.
//
// Every audit run can be stored as a Record: the policy, dataset and
// environment it ran with, the outcome and exit codes, and its violations.
// Records feed the dry-run impact analysis, which tells policy authors how
// often a rule would have blocked a pipeline had it been enforced.
//
// # Package Layout
//
//   - history: Record, Query, Storage interface, impact analysis
//   - history/storage: SQLite (mattn/go-sqlite3 or modernc.org/sqlite) and in-memory backends
//   - history/recorder: converts engine results to records
//   - history/retention: age and count based pruning on a cron schedule
//   - history/export: JSON and CSV export
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(storage.DefaultSQLiteConfig(), logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	rec := recorder.New(store, nil, logger)
//	if _, err := rec.Record(ctx, result); err != nil {
//	    logger.Warn("failed to record audit", "error", err)
//	}
//
//	records, _ := store.Query(ctx, &history.Query{Policy: "orders", StartTime: &since})
//	report := history.AnalyzeImpact(records)
package history
