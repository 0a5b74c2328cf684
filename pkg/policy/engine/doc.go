// Package engine runs an effective audit policy against a profiling context
// and produces an audit result.
//
// # Evaluation Flow
//
//	AuditPolicy (effective) + ProfilingContext
//	       ↓
//	For each rule in declared order:
//	  Evaluate cached AST → truthy?
//	    Yes → pass
//	    No / null / error → Violation
//	      enforced && fail_fast && enable_fail_fast → stop (TerminatedEarly)
//	       ↓
//	Result (violations, success, exit code)
//
// A run holds no shared mutable state, so one Runner may serve many
// concurrent audits. Rules within a run are evaluated strictly in order.
//
// # Basic Usage
//
//	runner, err := engine.NewRunner(engine.DefaultRunnerConfig(), nil, logger)
//	if err != nil {
//	    return err
//	}
//
//	result, err := runner.Run(ctx, policy, stats)
//	if err != nil {
//	    return err // context cancelled
//	}
//	os.Exit(result.ExitCode)
//
// # Exit Codes
//
// Exit codes are decided in one place, AuditPolicy.ResolveExitCode. The
// triggering violation is the fail-fast violation when the run stopped
// early, otherwise the first enforced violation of the highest severity.
// Dry-run policies always exit with the success code and report what
// enforcement would have produced in WouldExitCode.
package engine
