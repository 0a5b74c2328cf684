package model

// Layer is a partial policy. Nil pointer fields and empty maps leave the
// underlying value unchanged.
type Layer struct {
	Name                string
	Extends             string
	Description         *string
	Version             *string
	Rules               []*Rule
	Thresholds          ThresholdOverrides
	SchemaCompatibility SchemaOverrides
	DefaultEnforcement  *EnforcementMode
	EnableFailFast      *bool
	ExitCodes           map[string]int
	Metadata            map[string]interface{}
	Environments        map[string]*Layer
	Datasets            map[string]*Layer
	Source              string
}

// Build resolves a standalone layer against the defaults. Rules are kept
// as declared, duplicates included, so validation can report them.
func Build(l *Layer) *AuditPolicy {
	p := NewAuditPolicy(l.Name)
	apply(p, l)
	p.Rules = append([]*Rule(nil), l.Rules...)
	p.Extends = l.Extends
	p.Source = l.Source
	return p
}

// Merge resolves child on top of an already resolved parent. Child fields
// that are set win. Exit codes, metadata and overlays merge per key. The
// rule list is the parent's, with a same-named child rule replacing the
// parent rule in place, followed by the child's new rules in order.
func Merge(parent *AuditPolicy, child *Layer) *AuditPolicy {
	p := parent.Clone()
	p.Name = child.Name
	p.Extends = child.Extends
	p.Source = child.Source
	apply(p, child)
	p.Rules = mergeRules(p.Rules, child.Rules)
	p.Lineage = append(p.Lineage, child.Name)
	return p
}

// ApplyOverlay returns a copy of p with overlay applied. The name and
// lineage of p are kept.
func (p *AuditPolicy) ApplyOverlay(overlay *Layer) *AuditPolicy {
	out := p.Clone()
	if overlay != nil {
		apply(out, overlay)
		out.Rules = mergeRules(out.Rules, overlay.Rules)
	}
	return out
}

// Effective applies the environment overlay, then the dataset overlay.
// Unknown or empty names are ignored. p itself is not modified.
func (p *AuditPolicy) Effective(environment, dataset string) *AuditPolicy {
	out := p
	if overlay, ok := p.Environments[environment]; ok && environment != "" {
		out = out.ApplyOverlay(overlay)
	}
	if overlay, ok := p.Datasets[dataset]; ok && dataset != "" {
		out = out.ApplyOverlay(overlay)
	}
	if out == p {
		out = p.Clone()
	}
	return out
}

func apply(p *AuditPolicy, l *Layer) {
	if l.Description != nil {
		p.Description = *l.Description
	}
	if l.Version != nil {
		p.Version = *l.Version
	}
	l.Thresholds.applyTo(&p.Thresholds)
	l.SchemaCompatibility.applyTo(&p.SchemaCompatibility)
	if l.DefaultEnforcement != nil {
		p.DefaultEnforcement = *l.DefaultEnforcement
	}
	if l.EnableFailFast != nil {
		p.EnableFailFast = *l.EnableFailFast
	}
	if p.ExitCodes == nil {
		p.ExitCodes = DefaultExitCodes()
	}
	for k, v := range l.ExitCodes {
		p.ExitCodes[k] = v
	}
	if p.Metadata == nil {
		p.Metadata = map[string]interface{}{}
	}
	for k, v := range l.Metadata {
		p.Metadata[k] = v
	}
	p.Environments = mergeLayers(p.Environments, l.Environments)
	p.Datasets = mergeLayers(p.Datasets, l.Datasets)
}

func mergeRules(base, overrides []*Rule) []*Rule {
	if len(overrides) == 0 {
		return base
	}

	index := make(map[string]int, len(base))
	merged := make([]*Rule, len(base), len(base)+len(overrides))
	copy(merged, base)
	for i, r := range merged {
		index[r.Name] = i
	}

	for _, r := range overrides {
		if i, ok := index[r.Name]; ok {
			merged[i] = r
			continue
		}
		index[r.Name] = len(merged)
		merged = append(merged, r)
	}
	return merged
}

func mergeLayers(base, overrides map[string]*Layer) map[string]*Layer {
	if len(overrides) == 0 {
		return base
	}
	out := make(map[string]*Layer, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
