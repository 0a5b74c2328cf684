package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/vigil/pkg/cli"
)

var auditFlags struct {
	policy  string
	stats   string
	env     string
	dataset string
	dryRun  bool
	format  string
	output  string
	record  bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit dataset statistics against a policy",
	Long: `Evaluate every rule of a policy against a statistics file.

The policy is resolved by name from the configured search paths, or by
path. Environment and dataset overlays are applied before the run.

The command exits with the code chosen by the policy's exit-code table:
0 when no enforced violation fails the run, otherwise the code of the
triggering rule, the fail_fast entry or the entry for its severity.
Audits that cannot run (missing policy, unreadable statistics) exit with
the system_error code.

Examples:
  # Audit with the default text report
  vigil audit --policy orders --stats stats/orders.yaml

  # Apply the prod overlay and record the run
  vigil audit --policy orders --stats stats/orders.yaml --env prod --record

  # Report only; print the exit code enforcement would have produced
  vigil audit --policy orders --stats stats/orders.yaml --dry-run

  # JSON report for CI
  vigil audit --policy orders --stats stats/orders.yaml --format json --output report.json`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVarP(&auditFlags.policy, "policy", "p", "", "policy name or path (required)")
	auditCmd.Flags().StringVarP(&auditFlags.stats, "stats", "s", "", "statistics file (YAML or JSON)")
	auditCmd.Flags().StringVar(&auditFlags.env, "env", "", "environment overlay")
	auditCmd.Flags().StringVar(&auditFlags.dataset, "dataset", "", "dataset overlay")
	auditCmd.Flags().BoolVar(&auditFlags.dryRun, "dry-run", false, "report violations without failing")
	auditCmd.Flags().StringVarP(&auditFlags.format, "format", "f", "text", "output format: text, json, csv")
	auditCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "write the report to a file instead of stdout")
	auditCmd.Flags().BoolVar(&auditFlags.record, "record", false, "store the run in the audit history")
}

func runAudit(cmd *cobra.Command, args []string) error {
	if auditFlags.policy == "" {
		return cli.NewConfigError("policy", "--policy is required")
	}
	format, err := cli.ParseFormat(auditFlags.format)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	runner, err := a.newRunner()
	if err != nil {
		return &cli.ExitError{Code: systemErrorCode, Err: err}
	}

	res, err := a.audit(ctx, runner, auditRequest{
		Policy:      auditFlags.policy,
		Stats:       auditFlags.stats,
		Environment: auditFlags.env,
		Dataset:     auditFlags.dataset,
		DryRun:      auditFlags.dryRun,
	})
	if err != nil {
		return &cli.ExitError{Code: systemErrorCode, Err: fmt.Errorf("audit %s: %w", auditFlags.policy, err)}
	}

	if auditFlags.record {
		store, err := a.openStorage()
		if err != nil {
			return &cli.ExitError{Code: systemErrorCode, Err: err}
		}
		rec := a.newRecorder(store)
		_, recErr := rec.Record(ctx, res, a.policyVersion())
		rec.Close()
		store.Close()
		if recErr != nil {
			return &cli.ExitError{Code: systemErrorCode, Err: fmt.Errorf("failed to record audit: %w", recErr)}
		}
	}

	var w io.Writer = commandOutput(cmd)
	if auditFlags.output != "" {
		f, err := os.Create(auditFlags.output)
		if err != nil {
			return &cli.ExitError{Code: systemErrorCode, Err: fmt.Errorf("failed to create output file: %w", err)}
		}
		defer f.Close()
		w = f
	}
	if err := cli.WriteResult(w, res, format); err != nil {
		return &cli.ExitError{Code: systemErrorCode, Err: fmt.Errorf("failed to write report: %w", err)}
	}

	return cli.Exit(res.ExitCode)
}
