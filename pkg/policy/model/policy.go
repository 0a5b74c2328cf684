package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidPolicy is wrapped by Validate errors.
var ErrInvalidPolicy = errors.New("invalid audit policy")

// DefaultVersion is the version assigned to policies that do not set one.
const DefaultVersion = "1.0"

// AuditPolicy is a resolved policy: an ordered rule list plus enforcement
// defaults, thresholds and the exit-code table.
type AuditPolicy struct {
	Name                string
	Description         string
	Version             string
	Rules               []*Rule
	Thresholds          ThresholdConfig
	SchemaCompatibility SchemaCompatibilityConfig
	DefaultEnforcement  EnforcementMode
	EnableFailFast      bool
	ExitCodes           map[string]int
	Extends             string
	Metadata            map[string]interface{}

	// Environments and Datasets hold overlays applied by Effective.
	Environments map[string]*Layer
	Datasets     map[string]*Layer

	// Source is the file the policy was loaded from, if any.
	Source string

	// Lineage lists the policy names merged into this one, root ancestor first.
	Lineage []string
}

// NewAuditPolicy returns a policy with all defaults set.
func NewAuditPolicy(name string) *AuditPolicy {
	return &AuditPolicy{
		Name:                name,
		Version:             DefaultVersion,
		Thresholds:          DefaultThresholds(),
		SchemaCompatibility: DefaultSchemaCompatibility(),
		DefaultEnforcement:  Enforce,
		EnableFailFast:      true,
		ExitCodes:           DefaultExitCodes(),
		Metadata:            map[string]interface{}{},
		Lineage:             []string{name},
	}
}

// Rule returns the rule with the given name, or nil.
func (p *AuditPolicy) Rule(name string) *Rule {
	for _, r := range p.Rules {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// HasRule reports whether a rule with the given name exists.
func (p *AuditPolicy) HasRule(name string) bool {
	return p.Rule(name) != nil
}

// RuleNames returns rule names in evaluation order.
func (p *AuditPolicy) RuleNames() []string {
	names := make([]string, len(p.Rules))
	for i, r := range p.Rules {
		names[i] = r.Name
	}
	return names
}

// IsDryRun reports whether the policy as a whole only reports.
func (p *AuditPolicy) IsDryRun() bool {
	return p.DefaultEnforcement != Enforce
}

// EnvironmentNames returns the overlay environment names, sorted.
func (p *AuditPolicy) EnvironmentNames() []string {
	return sortedKeys(p.Environments)
}

// DatasetNames returns the overlay dataset names, sorted.
func (p *AuditPolicy) DatasetNames() []string {
	return sortedKeys(p.Datasets)
}

// Validate checks structural invariants: a name, non-empty and unique rule
// names, non-empty conditions and exit codes in 0..255.
func (p *AuditPolicy) Validate() error {
	var problems []string
	if p.Name == "" {
		problems = append(problems, "policy name is required")
	}

	seen := make(map[string]bool, len(p.Rules))
	for i, r := range p.Rules {
		switch {
		case r == nil:
			problems = append(problems, fmt.Sprintf("rule %d is empty", i))
			continue
		case r.Name == "":
			problems = append(problems, fmt.Sprintf("rule %d has no name", i))
		case seen[r.Name]:
			problems = append(problems, fmt.Sprintf("duplicate rule name %q", r.Name))
		}
		seen[r.Name] = true

		if strings.TrimSpace(r.Condition) == "" {
			problems = append(problems, fmt.Sprintf("rule %q has an empty condition", r.Name))
		}
		if r.ExitCode != nil && (*r.ExitCode < 0 || *r.ExitCode > 255) {
			problems = append(problems, fmt.Sprintf("rule %q exit_code %d out of range 0..255", r.Name, *r.ExitCode))
		}
	}

	for _, key := range sortedKeys(p.ExitCodes) {
		if code := p.ExitCodes[key]; code < 0 || code > 255 {
			problems = append(problems, fmt.Sprintf("exit code %q = %d out of range 0..255", key, code))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidPolicy, p.Name, strings.Join(problems, "; "))
	}
	return nil
}

// Clone returns a copy whose slices and maps can be modified independently.
// Rules are shared; they are immutable.
func (p *AuditPolicy) Clone() *AuditPolicy {
	c := *p
	c.Rules = append([]*Rule(nil), p.Rules...)
	c.ExitCodes = make(map[string]int, len(p.ExitCodes))
	for k, v := range p.ExitCodes {
		c.ExitCodes[k] = v
	}
	c.Metadata = cloneMetadata(p.Metadata)
	if c.Metadata == nil {
		c.Metadata = map[string]interface{}{}
	}
	c.Environments = cloneLayers(p.Environments)
	c.Datasets = cloneLayers(p.Datasets)
	c.Lineage = append([]string(nil), p.Lineage...)
	return &c
}

// AsDryRun returns a copy of p in which the policy and every rule only
// report. Rules are cloned, so p is unchanged.
func (p *AuditPolicy) AsDryRun() *AuditPolicy {
	out := p.Clone()
	out.DefaultEnforcement = DryRun
	for i, r := range out.Rules {
		c := r.Clone()
		c.Enforcement = DryRun
		out.Rules[i] = c
	}
	return out
}

func cloneLayers(m map[string]*Layer) map[string]*Layer {
	if m == nil {
		return nil
	}
	out := make(map[string]*Layer, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
