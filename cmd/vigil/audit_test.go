package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"mercator-hq/vigil/pkg/cli"
	"mercator-hq/vigil/pkg/history"
	"mercator-hq/vigil/pkg/history/storage"
)

func TestRunAudit_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		stats    string
		env      string
		dryRun   bool
		wantCode int
		contains []string
	}{
		{
			name:     "passing statistics",
			stats:    "good.yaml",
			wantCode: 0,
			contains: []string{"Status: PASSED (exit code 0)", "No violations"},
		},
		{
			name:     "error violation",
			stats:    "bad.yaml",
			wantCode: 2,
			contains: []string{"Status: FAILED (exit code 2)", "[ERROR] enough_rows", "few_missing_emails"},
		},
		{
			name:     "prod overlay raises severity",
			stats:    "bad.yaml",
			env:      "prod",
			wantCode: 3,
			contains: []string{"Policy: orders (env=prod)", "[FATAL] enough_rows"},
		},
		{
			name:     "dry run",
			stats:    "bad.yaml",
			dryRun:   true,
			wantCode: 0,
			contains: []string{"PASSED (dry run)", "(dry-run)", "would have failed with exit code 2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newWorkspace(t)
			auditFlags.policy = "orders"
			auditFlags.stats = ws.path(tt.stats)
			auditFlags.env = tt.env
			auditFlags.dryRun = tt.dryRun

			var buf bytes.Buffer
			err := runAudit(testCommand(&buf), nil)
			if got := cli.ExitCode(err); got != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (err: %v)\n%s", got, tt.wantCode, err, buf.String())
			}
			if err != nil && !cli.Silent(err) {
				t.Errorf("violation exit should be silent, got %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestRunAudit_DatasetFromStatistics(t *testing.T) {
	const shipments = `
name: shipments
rules:
  - name: enough_rows
    condition: count(id) >= 100
    severity: error
datasets:
  eu_shipments:
    rules:
      - name: enough_rows
        condition: count(id) >= 100
        severity: fatal
  legacy.yaml:
    rules:
      - name: enough_rows
        condition: count(id) >= 100
        severity: warning
`
	const named = `
dataset: eu_shipments
columns:
  id:
    count: 10
`
	const unnamed = `
columns:
  id:
    count: 10
`

	tests := []struct {
		name     string
		file     string
		content  string
		dataset  string
		wantCode int
		contains string
	}{
		{"named in statistics", "eu.yaml", named, "", 3, "Policy: shipments (dataset=eu_shipments)"},
		{"file base name", "legacy.yaml", unnamed, "", 1, "Policy: shipments (dataset=legacy.yaml)"},
		{"flag wins", "eu.yaml", named, "other", 2, "Policy: shipments (dataset=other)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newWorkspace(t)
			ws.writePolicy(t, "shipments.yaml", shipments)
			auditFlags.policy = "shipments"
			auditFlags.stats = ws.write(t, tt.file, tt.content)
			auditFlags.dataset = tt.dataset

			var buf bytes.Buffer
			err := runAudit(testCommand(&buf), nil)
			if got := cli.ExitCode(err); got != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (err: %v)\n%s", got, tt.wantCode, err, buf.String())
			}
			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("output missing %q:\n%s", tt.contains, buf.String())
			}
		})
	}
}

func TestRunAudit_SystemErrors(t *testing.T) {
	tests := []struct {
		name   string
		policy string
		stats  string
	}{
		{"unknown policy", "does-not-exist", "good.yaml"},
		{"missing statistics", "orders", "missing.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newWorkspace(t)
			auditFlags.policy = tt.policy
			auditFlags.stats = ws.path(tt.stats)

			err := runAudit(testCommand(&bytes.Buffer{}), nil)
			if got := cli.ExitCode(err); got != systemErrorCode {
				t.Errorf("exit code = %d, want %d (err: %v)", got, systemErrorCode, err)
			}
			if cli.Silent(err) {
				t.Error("system errors should be printed")
			}
		})
	}
}

func TestRunAudit_FlagErrors(t *testing.T) {
	newWorkspace(t)

	if err := runAudit(nil, nil); cli.ExitCode(err) != 1 {
		t.Errorf("missing --policy: err = %v", err)
	}

	auditFlags.policy = "orders"
	auditFlags.format = "xml"
	if err := runAudit(nil, nil); cli.ExitCode(err) != 1 {
		t.Errorf("bad --format: err = %v", err)
	}
}

func TestRunAudit_JSONOutputFile(t *testing.T) {
	ws := newWorkspace(t)
	auditFlags.policy = "orders"
	auditFlags.stats = ws.path("bad.yaml")
	auditFlags.format = "json"
	auditFlags.output = ws.path("report.json")

	var stdout bytes.Buffer
	err := runAudit(testCommand(&stdout), nil)
	if cli.ExitCode(err) != 2 {
		t.Fatalf("exit code = %d, want 2", cli.ExitCode(err))
	}
	if stdout.Len() != 0 {
		t.Errorf("report should go to the file, stdout = %q", stdout.String())
	}

	data, err := os.ReadFile(auditFlags.output)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var report struct {
		RunID      string `json:"run_id"`
		Policy     string `json:"policy"`
		Success    bool   `json:"success"`
		ExitCode   int    `json:"exit_code"`
		Violations []struct {
			Rule     string `json:"rule"`
			Severity string `json:"severity"`
		} `json:"violations"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("invalid JSON report: %v\n%s", err, data)
	}
	if report.RunID == "" || report.Policy != "orders" || report.Success || report.ExitCode != 2 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Violations) != 2 || report.Violations[0].Severity != "error" {
		t.Errorf("violations = %+v", report.Violations)
	}
}

func TestRunAudit_Record(t *testing.T) {
	ws := newWorkspace(t)
	auditFlags.policy = "orders"
	auditFlags.record = true

	for _, stats := range []string{"good.yaml", "bad.yaml", "bad.yaml"} {
		auditFlags.stats = ws.path(stats)
		_ = runAudit(testCommand(&bytes.Buffer{}), nil)
	}

	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
		Path:   ws.path("data/history.db"),
		Driver: storage.DriverPure,
	}, nil)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()

	records, err := store.Query(context.Background(), &history.Query{Policy: "orders"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("recorded %d runs, want 3", len(records))
	}
	failed := 0
	for _, r := range records {
		if r.PolicyVersion == "" {
			t.Errorf("record %s has no policy version", r.ID)
		}
		if !r.Success {
			failed++
		}
	}
	if failed != 2 {
		t.Errorf("failed runs = %d, want 2", failed)
	}
}
