package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the history database schema.
// Times are stored as Unix nanoseconds so both drivers read them back
// identically.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_runs (
    id TEXT PRIMARY KEY,

    policy TEXT NOT NULL,
    policy_version TEXT,
    dataset TEXT,
    environment TEXT,

    success BOOLEAN NOT NULL,
    dry_run BOOLEAN NOT NULL,
    exit_code INTEGER NOT NULL,
    would_exit_code INTEGER NOT NULL,
    would_block BOOLEAN NOT NULL,
    terminated_early BOOLEAN NOT NULL,
    termination_rule TEXT,
    rules_evaluated INTEGER NOT NULL,

    violations TEXT,

    started_at INTEGER NOT NULL,
    duration_ns INTEGER NOT NULL,
    recorded_at INTEGER NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_audit_runs_recorded_at ON audit_runs(recorded_at);
CREATE INDEX IF NOT EXISTS idx_audit_runs_policy ON audit_runs(policy);
CREATE INDEX IF NOT EXISTS idx_audit_runs_dataset ON audit_runs(dataset);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const selectColumns = `id, policy, policy_version, dataset, environment,
    success, dry_run, exit_code, would_exit_code, would_block, terminated_early, termination_rule, rules_evaluated,
    violations, started_at, duration_ns, recorded_at`
