// Package recorder turns audit results into history records and writes
// them to a history.Storage.
//
// Record writes synchronously and is what the CLI uses after a one-shot
// audit. Enqueue hands the record to a background worker so scheduled
// audits never block on the database; Close drains the queue.
package recorder
