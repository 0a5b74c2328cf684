// Package health serves liveness and readiness probes for "vigil schedule".
//
// The scheduler registers readiness checks for the components a
// scheduled audit depends on: loaded policies (PolicyCheck), the history
// backend (StorageCheck) and the age of the last successful policy sync
// (FreshnessCheck). Readiness returns 503 with per-check details when any
// check fails; liveness always returns 200 while the process runs.
package health
