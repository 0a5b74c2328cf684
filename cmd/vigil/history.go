package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/vigil/pkg/cli"
	"mercator-hq/vigil/pkg/history"
)

var historyFlags struct {
	policy    string
	env       string
	dataset   string
	since     time.Duration
	limit     int
	format    string
	olderThan int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query recorded audit runs",
	Long: `Query, analyze and prune the audit history.

Runs are recorded by "vigil audit --record" and by "vigil schedule".

Examples:
  # Last 20 runs of a policy
  vigil history list --policy orders --limit 20

  # Export last week's runs as CSV
  vigil history list --since 168h --format csv > runs.csv

  # How often would dry-run rules have blocked?
  vigil history impact --policy orders --since 720h

  # Delete runs older than 30 days
  vigil history prune --older-than 30`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  listHistory,
}

var historyImpactCmd = &cobra.Command{
	Use:   "impact",
	Short: "Analyze how often a policy would have blocked",
	Long: `Compute the block rate of a policy and the violation rate of each of
its rules over recorded runs.

Rules violated in more than 80% of runs are flagged for relaxing. Rules
violated in fewer than 5% of at least 10 runs are flagged as ready for
enforcement.`,
	Args: cobra.NoArgs,
	RunE: historyImpact,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs",
	Long: `Apply the retention settings in history.retention once. Records are
archived as JSON first when archive_before_delete is set.`,
	Args: cobra.NoArgs,
	RunE: pruneHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyImpactCmd, historyPruneCmd)

	historyCmd.PersistentFlags().StringVarP(&historyFlags.format, "format", "f", "text", "output format: text, json, csv")
	for _, cmd := range []*cobra.Command{historyListCmd, historyImpactCmd} {
		cmd.Flags().StringVarP(&historyFlags.policy, "policy", "p", "", "filter by policy name")
		cmd.Flags().StringVar(&historyFlags.env, "env", "", "filter by environment")
		cmd.Flags().StringVar(&historyFlags.dataset, "dataset", "", "filter by dataset")
		cmd.Flags().DurationVar(&historyFlags.since, "since", 0, "only runs recorded within this duration (e.g. 24h)")
	}
	historyListCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 50, "maximum number of runs")
	historyPruneCmd.Flags().IntVar(&historyFlags.olderThan, "older-than", 0, "delete runs older than this many days (default: history.retention.days)")
}

func historyQuery(limit int) *history.Query {
	q := &history.Query{
		Policy:      historyFlags.policy,
		Environment: historyFlags.env,
		Dataset:     historyFlags.dataset,
		Limit:       limit,
	}
	if historyFlags.since > 0 {
		start := time.Now().Add(-historyFlags.since)
		q.StartTime = &start
	}
	return q
}

func listHistory(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(historyFlags.format)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Query(ctx, historyQuery(historyFlags.limit))
	if err != nil {
		return fmt.Errorf("failed to query history: %w", err)
	}
	return cli.WriteRecords(ctx, commandOutput(cmd), records, format)
}

func historyImpact(cmd *cobra.Command, args []string) error {
	if historyFlags.policy == "" {
		return cli.NewConfigError("policy", "--policy is required")
	}
	format, err := cli.ParseFormat(historyFlags.format)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Query(ctx, historyQuery(history.MaxQueryLimit))
	if err != nil {
		return fmt.Errorf("failed to query history: %w", err)
	}
	return cli.WriteImpact(commandOutput(cmd), history.AnalyzeImpact(records), format)
}

func pruneHistory(cmd *cobra.Command, args []string) error {
	if historyFlags.olderThan < 0 {
		return cli.NewConfigError("older-than", "must not be negative")
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	days := a.cfg.History.Retention.Days
	if historyFlags.olderThan > 0 {
		days = historyFlags.olderThan
	}
	deleted, err := a.newPruner(store, days).Prune(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(commandOutput(cmd), "Deleted %d run(s)\n", deleted)
	return err
}
