package model

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func rule(name, condition string, sev Severity) *Rule {
	r := NewRule(name, condition)
	r.Severity = sev
	return r
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"info", SeverityInfo, false},
		{"WARNING", SeverityWarn, false},
		{"warn", SeverityWarn, false},
		{"error", SeverityError, false},
		{"fatal", SeverityFatal, false},
		{"critical", SeverityFatal, false},
		{"severe", SeverityError, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSeverity(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSeverity(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSeverity(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if !(SeverityInfo < SeverityWarn && SeverityWarn < SeverityError && SeverityError < SeverityFatal) {
		t.Error("severities are not totally ordered")
	}
}

func TestSeverity_ExitCodeKey(t *testing.T) {
	want := map[Severity]string{
		SeverityInfo:  ExitKeySuccess,
		SeverityWarn:  ExitKeyWarning,
		SeverityError: ExitKeyError,
		SeverityFatal: ExitKeyFatal,
	}
	for sev, key := range want {
		if got := sev.ExitCodeKey(); got != key {
			t.Errorf("%v.ExitCodeKey() = %q, want %q", sev, got, key)
		}
	}
}

func TestParseEnforcementMode(t *testing.T) {
	for in, want := range map[string]EnforcementMode{"enforce": Enforce, "dry_run": DryRun, "DRY-RUN": DryRun} {
		got, err := ParseEnforcementMode(in)
		if err != nil || got != want {
			t.Errorf("ParseEnforcementMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseEnforcementMode("audit"); err == nil {
		t.Error("ParseEnforcementMode(audit) should fail")
	}
}

func TestRule_AST(t *testing.T) {
	r := NewRule("age", "mean(age) < 60")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.AST(); err != nil {
				t.Errorf("AST() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	first, _ := r.AST()
	second, _ := r.AST()
	if first != second {
		t.Error("AST() should return the cached tree")
	}
	if other, _ := NewRule("age_again", "mean(age) < 60").AST(); other != first {
		t.Error("rules with the same condition should share the cached tree")
	}

	bad := NewRule("bad", "mean(age) <")
	if _, err := bad.AST(); err == nil {
		t.Error("AST() of invalid condition should fail")
	}
	if _, err := bad.AST(); err == nil {
		t.Error("AST() should keep returning the parse error")
	}
}

func TestRule_RenderMessage(t *testing.T) {
	r := rule("null-emails", "missing_rate(email) < 0.1", SeverityWarn)
	if got := r.RenderMessage("0.3"); got != "rule 'null-emails' failed: missing_rate(email) < 0.1" {
		t.Errorf("default message = %q", got)
	}

	r.Message = "{severity}: {rule} saw {value}, need {condition}"
	want := "warning: null-emails saw 0.3, need missing_rate(email) < 0.1"
	if got := r.RenderMessage("0.3"); got != want {
		t.Errorf("RenderMessage() = %q, want %q", got, want)
	}
}

func TestBuild_Defaults(t *testing.T) {
	p := Build(&Layer{Name: "base", ExitCodes: map[string]int{ExitKeyError: 9}})

	if p.Version != "1.0" || p.DefaultEnforcement != Enforce || !p.EnableFailFast {
		t.Errorf("defaults not applied: %+v", p)
	}
	if p.Thresholds.MaxMissing != 0.05 || p.Thresholds.MaxDriftSeverity != "minor" {
		t.Errorf("Thresholds = %+v", p.Thresholds)
	}
	if p.SchemaCompatibility.AllowColumnDrop || p.SchemaCompatibility.AllowTypeNarrowing {
		t.Errorf("SchemaCompatibility = %+v", p.SchemaCompatibility)
	}
	if p.ExitCode(ExitKeyError) != 9 {
		t.Errorf("user exit code not merged: %d", p.ExitCode(ExitKeyError))
	}
	if p.ExitCode(ExitKeyFatal) != 3 || p.ExitCode(ExitKeyFailFast) != 2 {
		t.Error("default exit codes lost during merge")
	}
}

func TestMerge(t *testing.T) {
	parent := Build(&Layer{
		Name:  "parent",
		Rules: []*Rule{rule("A", "mean(x) > 0", SeverityWarn), rule("C", "std(x) > 0", SeverityInfo)},
		Thresholds: ThresholdOverrides{
			MaxMissing: ptr(0.2),
		},
		ExitCodes: map[string]int{ExitKeyWarning: 7},
		Metadata:  map[string]interface{}{"owner": "data", "tier": 1},
	})

	child := Merge(parent, &Layer{
		Name:           "child",
		Extends:        "parent",
		Rules:          []*Rule{rule("A", "mean(x) > 1", SeverityError), rule("B", "max(x) < 9", SeverityWarn)},
		EnableFailFast: ptr(false),
		Thresholds: ThresholdOverrides{
			MaxDriftSeverity: ptr("major"),
		},
		ExitCodes: map[string]int{ExitKeyError: 8},
		Metadata:  map[string]interface{}{"tier": 2},
	})

	if got := child.RuleNames(); !reflect.DeepEqual(got, []string{"A", "C", "B"}) {
		t.Errorf("RuleNames() = %v, want [A C B]", got)
	}
	if child.Rule("A").Severity != SeverityError {
		t.Errorf("child A should replace parent A")
	}
	if child.Name != "child" || child.Extends != "parent" {
		t.Errorf("Name/Extends = %q/%q", child.Name, child.Extends)
	}
	if child.EnableFailFast {
		t.Error("EnableFailFast should be overridden to false")
	}
	if child.Thresholds.MaxMissing != 0.2 || child.Thresholds.MaxDriftSeverity != "major" {
		t.Errorf("Thresholds = %+v, want parent max_missing and child drift", child.Thresholds)
	}
	if child.ExitCode(ExitKeyWarning) != 7 || child.ExitCode(ExitKeyError) != 8 {
		t.Errorf("ExitCodes = %v", child.ExitCodes)
	}
	if child.Metadata["owner"] != "data" || child.Metadata["tier"] != 2 {
		t.Errorf("Metadata = %v", child.Metadata)
	}
	if !reflect.DeepEqual(child.Lineage, []string{"parent", "child"}) {
		t.Errorf("Lineage = %v", child.Lineage)
	}

	// The parent is not modified.
	if parent.Rule("A").Severity != SeverityWarn || len(parent.Rules) != 2 || !parent.EnableFailFast {
		t.Error("Merge() modified the parent")
	}
}

func TestMerge_OverrideInPlace(t *testing.T) {
	parent := Build(&Layer{Name: "parent", Rules: []*Rule{rule("A", "mean(x) > 0", SeverityWarn)}})
	child := Merge(parent, &Layer{
		Name:    "child",
		Extends: "parent",
		Rules:   []*Rule{rule("A", "mean(x) > 0", SeverityError), rule("B", "mean(x) > 0", SeverityWarn)},
	})

	if len(child.Rules) != 2 {
		t.Fatalf("len(Rules) = %d, want 2", len(child.Rules))
	}
	if child.Rules[0].Name != "A" || child.Rules[0].Severity != SeverityError {
		t.Errorf("Rules[0] = %s/%v, want A/error", child.Rules[0].Name, child.Rules[0].Severity)
	}
	if child.Rules[1].Name != "B" || child.Rules[1].Severity != SeverityWarn {
		t.Errorf("Rules[1] = %s/%v, want B/warning", child.Rules[1].Name, child.Rules[1].Severity)
	}
}

func TestEffective(t *testing.T) {
	p := Build(&Layer{
		Name:  "orders",
		Rules: []*Rule{rule("fresh", "max(age) < 10", SeverityError)},
		Environments: map[string]*Layer{
			"dev": {DefaultEnforcement: ptr(DryRun)},
			"prod": {
				Rules:     []*Rule{rule("fresh", "max(age) < 2", SeverityFatal)},
				ExitCodes: map[string]int{ExitKeyFatal: 42},
			},
		},
		Datasets: map[string]*Layer{
			"orders.csv": {Rules: []*Rule{rule("ids", "unique_ratio(id) == 1", SeverityError)}},
		},
	})

	dev := p.Effective("dev", "")
	if !dev.IsDryRun() {
		t.Error("dev overlay should switch to dry run")
	}
	if p.IsDryRun() {
		t.Error("Effective() modified the base policy")
	}

	prod := p.Effective("prod", "orders.csv")
	if got := prod.RuleNames(); !reflect.DeepEqual(got, []string{"fresh", "ids"}) {
		t.Errorf("prod RuleNames() = %v", got)
	}
	if prod.Rule("fresh").Severity != SeverityFatal || prod.ExitCode(ExitKeyFatal) != 42 {
		t.Error("prod overlay not applied")
	}

	none := p.Effective("staging", "unknown.csv")
	if none == p {
		t.Error("Effective() should return a copy")
	}
	if !reflect.DeepEqual(none.RuleNames(), p.RuleNames()) {
		t.Error("unknown overlays should be a no-op")
	}
}

func TestResolveExitCode(t *testing.T) {
	p := Build(&Layer{Name: "p", ExitCodes: map[string]int{ExitKeyFailFast: 10}})
	explicit := rule("explicit", "mean(x) > 0", SeverityError)
	explicit.ExitCode = ptr(77)
	plain := rule("plain", "mean(x) > 0", SeverityWarn)

	tests := []struct {
		name    string
		trigger *ExitTrigger
		want    int
	}{
		{"no trigger", nil, 0},
		{"explicit beats fail fast", &ExitTrigger{Rule: explicit, Severity: SeverityError, FailFast: true}, 77},
		{"fail fast beats severity", &ExitTrigger{Rule: plain, Severity: SeverityWarn, FailFast: true}, 10},
		{"warning", &ExitTrigger{Rule: plain, Severity: SeverityWarn}, 1},
		{"error", &ExitTrigger{Rule: plain, Severity: SeverityError}, 2},
		{"fatal", &ExitTrigger{Rule: plain, Severity: SeverityFatal}, 3},
		{"info", &ExitTrigger{Rule: plain, Severity: SeverityInfo}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ResolveExitCode(tt.trigger); got != tt.want {
				t.Errorf("ResolveExitCode() = %d, want %d", got, tt.want)
			}
		})
	}

	delete(p.ExitCodes, ExitKeyFatal)
	if got := p.ExitCode(ExitKeyFatal); got != 2 {
		t.Errorf("missing key fallback = %d, want 2", got)
	}
}

func TestBuild_KeepsDeclaredRules(t *testing.T) {
	p := Build(&Layer{Name: "dup", Rules: []*Rule{
		rule("same", "mean(x) > 100", SeverityFatal),
		rule("other", "mean(x) > 1", SeverityWarn),
		rule("same", "mean(x) > 0", SeverityInfo),
	}})
	if got := p.RuleNames(); !reflect.DeepEqual(got, []string{"same", "other", "same"}) {
		t.Fatalf("RuleNames() = %v, want [same other same]", got)
	}
	if p.Rules[0].Severity != SeverityFatal {
		t.Errorf("first rule severity = %v, want fatal", p.Rules[0].Severity)
	}
	if err := p.Validate(); err == nil || !strings.Contains(err.Error(), `duplicate rule name "same"`) {
		t.Errorf("Validate() error = %v, want duplicate rule name", err)
	}
}

func TestAuditPolicy_Validate(t *testing.T) {
	good := Build(&Layer{Name: "ok", Rules: []*Rule{rule("a", "mean(x) > 0", SeverityError)}})
	if err := good.Validate(); err != nil {
		t.Errorf("Validate() failed: %v", err)
	}

	bad := Build(&Layer{
		Rules: []*Rule{
			rule("a", "mean(x) > 0", SeverityError),
			rule("a", " ", SeverityError),
		},
		ExitCodes: map[string]int{ExitKeyError: 300},
	})
	err := bad.Validate()
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("Validate() error = %v, want ErrInvalidPolicy", err)
	}
	for _, want := range []string{"name is required", `duplicate rule name "a"`, "empty condition", "out of range"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}
}

func TestAuditPolicy_AsDryRun(t *testing.T) {
	p := NewAuditPolicy("orders")
	p.Rules = []*Rule{rule("a", "max(age) > 0", SeverityError), rule("b", "min(age) >= 0", SeverityFatal)}

	dry := p.AsDryRun()
	if !dry.IsDryRun() {
		t.Error("copy should be dry-run")
	}
	for _, r := range dry.Rules {
		if r.Enforced() {
			t.Errorf("rule %s still enforced", r.Name)
		}
	}
	if p.IsDryRun() || !p.Rules[0].Enforced() || !p.Rules[1].Enforced() {
		t.Error("original policy was modified")
	}
}
