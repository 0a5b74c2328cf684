// Package retention prunes old audit history.
//
// Prune applies two limits in order: runs older than RetentionDays, then
// the oldest runs beyond MaxRecords. A zero limit is skipped. With
// ArchiveBeforeDelete the removed runs are first written to a JSON file
// under ArchivePath. Start runs Prune on a cron schedule.
package retention
