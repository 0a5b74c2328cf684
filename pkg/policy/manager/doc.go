// Package manager loads audit policies from disk and resolves them into
// effective policies.
//
// Resolution of a name or path happens in three steps:
//
//  1. Locate: an existing file path is used as-is; otherwise the name is
//     looked up in each search path with each extension (.yaml, .yml, .json)
//     and the first match wins.
//  2. Inherit: if the policy declares `extends`, the parent is resolved
//     recursively and the child is merged on top. A policy that is its own
//     ancestor yields a *CyclicPolicyError.
//  3. Overlay: environment and dataset overlays are applied.
//
// Loaded files are cached in a Registry keyed by absolute path. The cache is
// invalidated by Reload or, when Watch is running, by file system events.
//
// # Policy File Format
//
//	name: orders
//	extends: base
//	default_enforcement: enforce
//	enable_fail_fast: true
//	default_exit_codes:
//	  error: 2
//	rules:
//	  - name: email-complete
//	    condition: missing_rate(email) < 0.05
//	    severity: error
//	    fail_fast: true
//	environments:
//	  dev:
//	    default_enforcement: dry_run
//	datasets:
//	  orders.csv:
//	    rules:
//	      - name: ids-unique
//	        condition: unique_ratio(order_id) == 1
package manager
