package engine

import (
	"context"

	"mercator-hq/vigil/pkg/policy/model"
	"mercator-hq/vigil/pkg/rules/eval"
)

// PolicyResolver returns effective policies. *manager.Manager implements it.
type PolicyResolver interface {
	GetPolicy(ctx context.Context, nameOrPath, environment, dataset string) (*model.AuditPolicy, error)
}

// AuditRequest names the policy and overlays for one audit.
type AuditRequest struct {
	Policy      string
	Environment string
	Dataset     string
	Stats       eval.ProfilingContext
}

// Audit resolves the requested policy and runs it. Resolution errors are
// returned unmodified so callers can match them with errors.As.
func Audit(ctx context.Context, resolver PolicyResolver, runner *Runner, req AuditRequest) (*Result, error) {
	policy, err := resolver.GetPolicy(ctx, req.Policy, req.Environment, req.Dataset)
	if err != nil {
		return nil, err
	}

	res, err := runner.Run(ctx, policy, req.Stats)
	if err != nil {
		return nil, err
	}
	res.Environment = req.Environment
	res.Dataset = req.Dataset
	return res, nil
}
