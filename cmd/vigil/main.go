// Vigil audits dataset statistics against declarative data-quality policies.
//
// Policies are YAML or JSON files of named rules such as
// "null_rate(email) < 0.01". Each audit evaluates every rule against a
// statistics file and exits with a code chosen by the policy, so vigil can
// gate pipelines and CI jobs.
//
// Usage:
//
//	# Audit a statistics file against a policy
//	vigil audit --policy orders --stats stats/orders.yaml
//
//	# Report violations without failing
//	vigil audit --policy orders --stats stats/orders.yaml --dry-run
//
//	# Validate policy files
//	vigil lint policies/orders.yaml
//
//	# Show the effective policy for an environment
//	vigil policy show orders --env prod
//
//	# Review how often dry-run rules would have blocked
//	vigil history impact --policy orders
//
//	# Run the audits listed in the config on their cron schedules
//	vigil schedule --config vigil.yaml
package main

func main() {
	Execute()
}
