package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/vigil/pkg/cli"
)

var policyFlags struct {
	env     string
	dataset string
	format  string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect policies",
	Long: `Inspect the policies found in the search paths.

Examples:
  # List policies with their parents and rule counts
  vigil policy list

  # Show the effective prod policy for the orders dataset
  vigil policy show orders --env prod --dataset orders --format json`,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policies in the search paths",
	Args:  cobra.NoArgs,
	RunE:  listPolicies,
}

var policyShowCmd = &cobra.Command{
	Use:   "show <policy>",
	Short: "Show an effective policy",
	Long: `Resolve a policy through its extends chain, apply the requested
environment and dataset overlays and print the result.`,
	Args: cobra.ExactArgs(1),
	RunE: showPolicy,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd, policyShowCmd)

	policyCmd.PersistentFlags().StringVarP(&policyFlags.format, "format", "f", "text", "output format: text, json, csv")
	policyShowCmd.Flags().StringVar(&policyFlags.env, "env", "", "environment overlay")
	policyShowCmd.Flags().StringVar(&policyFlags.dataset, "dataset", "", "dataset overlay")
}

func listPolicies(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(policyFlags.format)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// Policies that fail to load are reported after the ones that did.
	infos, scanErr := a.policies.Describe()
	if err := cli.WritePolicyList(commandOutput(cmd), infos, format); err != nil {
		return err
	}
	if scanErr != nil {
		return fmt.Errorf("failed to load policies: %w", scanErr)
	}
	return nil
}

func showPolicy(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(policyFlags.format)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.policies.GetPolicy(ctx, args[0], policyFlags.env, policyFlags.dataset)
	if err != nil {
		return err
	}
	return cli.WritePolicy(commandOutput(cmd), p, format)
}
