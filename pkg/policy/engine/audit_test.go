package engine

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/vigil/pkg/policy/model"
)

type fakeResolver struct {
	policies map[string]*model.AuditPolicy
	err      error
	gotEnv   string
}

func (f *fakeResolver) GetPolicy(_ context.Context, name, env, _ string) (*model.AuditPolicy, error) {
	f.gotEnv = env
	if f.err != nil {
		return nil, f.err
	}
	return f.policies[name], nil
}

func TestAudit(t *testing.T) {
	resolver := &fakeResolver{policies: map[string]*model.AuditPolicy{
		"orders": policy(rule("a", failing, severity(model.SeverityWarn))),
	}}

	res, err := Audit(context.Background(), resolver, newTestRunner(t), AuditRequest{
		Policy:      "orders",
		Environment: "prod",
		Dataset:     "orders.csv",
		Stats:       stats,
	})
	if err != nil {
		t.Fatalf("Audit() failed: %v", err)
	}
	if resolver.gotEnv != "prod" {
		t.Errorf("environment not passed to resolver: %q", resolver.gotEnv)
	}
	if res.Dataset != "orders.csv" || res.Environment != "prod" {
		t.Errorf("Dataset=%q Environment=%q", res.Dataset, res.Environment)
	}
	if res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}
}

func TestAudit_ResolutionError(t *testing.T) {
	sentinel := errors.New("cyclic policy inheritance: a -> a")
	resolver := &fakeResolver{err: sentinel}

	_, err := Audit(context.Background(), resolver, newTestRunner(t), AuditRequest{Policy: "a"})
	if err != sentinel {
		t.Errorf("error = %v, want resolution error unmodified", err)
	}
}
