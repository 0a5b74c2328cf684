package manager

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"mercator-hq/vigil/pkg/policy/model"
)

// yamlPolicy is the on-disk policy document. JSON files decode through the
// same struct because JSON is valid YAML. Pointer fields distinguish unset
// from zero so that inheritance only overrides what a file actually sets.
type yamlPolicy struct {
	Name                string                  `yaml:"name"`
	Description         *string                 `yaml:"description"`
	Version             *string                 `yaml:"version"`
	Extends             string                  `yaml:"extends"`
	Rules               []yamlRule              `yaml:"rules"`
	Thresholds          yamlThresholds          `yaml:"thresholds"`
	SchemaCompatibility yamlSchema              `yaml:"schema_compatibility"`
	DefaultEnforcement  *string                 `yaml:"default_enforcement"`
	EnableFailFast      *bool                   `yaml:"enable_fail_fast"`
	ExitCodes           map[string]int          `yaml:"default_exit_codes"`
	Metadata            map[string]interface{}  `yaml:"metadata"`
	Environments        map[string]*yamlOverlay `yaml:"environments"`
	Datasets            map[string]*yamlOverlay `yaml:"datasets"`
}

// yamlOverlay is an environment or dataset block. It may set any field a
// policy can, except name, extends and nested overlays.
type yamlOverlay struct {
	Description         *string                `yaml:"description"`
	Rules               []yamlRule             `yaml:"rules"`
	Thresholds          yamlThresholds         `yaml:"thresholds"`
	SchemaCompatibility yamlSchema             `yaml:"schema_compatibility"`
	DefaultEnforcement  *string                `yaml:"default_enforcement"`
	EnableFailFast      *bool                  `yaml:"enable_fail_fast"`
	ExitCodes           map[string]int         `yaml:"default_exit_codes"`
	Metadata            map[string]interface{} `yaml:"metadata"`
}

type yamlRule struct {
	Name        string                 `yaml:"name"`
	Condition   string                 `yaml:"condition"`
	Severity    string                 `yaml:"severity"`
	Message     string                 `yaml:"message"`
	Enforcement string                 `yaml:"enforcement"`
	FailFast    bool                   `yaml:"fail_fast"`
	ExitCode    *int                   `yaml:"exit_code"`
	Metadata    map[string]interface{} `yaml:"metadata"`

	line   int
	column int
}

// UnmarshalYAML records the rule's position for error messages.
func (r *yamlRule) UnmarshalYAML(value *yaml.Node) error {
	type plain yamlRule
	if err := value.Decode((*plain)(r)); err != nil {
		return err
	}
	r.line = value.Line
	r.column = value.Column
	return nil
}

type yamlThresholds struct {
	MaxMissing       *float64 `yaml:"max_missing"`
	MaxDriftSeverity *string  `yaml:"max_drift_severity"`
}

type yamlSchema struct {
	AllowTypeNarrowing *bool `yaml:"allow_type_narrowing"`
	AllowColumnDrop    *bool `yaml:"allow_column_drop"`
}

// builder converts decoded documents into model layers.
type builder struct {
	sourcePath string
}

func (b *builder) buildLayer(doc *yamlPolicy) (*model.Layer, error) {
	if doc.Name == "" {
		return nil, &ParseError{FilePath: b.sourcePath, Message: "policy name is required"}
	}

	layer, err := b.buildOverlay(&yamlOverlay{
		Description:         doc.Description,
		Rules:               doc.Rules,
		Thresholds:          doc.Thresholds,
		SchemaCompatibility: doc.SchemaCompatibility,
		DefaultEnforcement:  doc.DefaultEnforcement,
		EnableFailFast:      doc.EnableFailFast,
		ExitCodes:           doc.ExitCodes,
		Metadata:            doc.Metadata,
	}, model.Enforce)
	if err != nil {
		return nil, err
	}

	layer.Name = doc.Name
	layer.Extends = doc.Extends
	layer.Version = doc.Version
	layer.Source = b.sourcePath

	// Overlay rules without an explicit enforcement fall back to the
	// overlay's default, then to the document's.
	docDefault := model.Enforce
	if layer.DefaultEnforcement != nil {
		docDefault = *layer.DefaultEnforcement
	}

	if len(doc.Environments) > 0 {
		layer.Environments = make(map[string]*model.Layer, len(doc.Environments))
		for name, ov := range doc.Environments {
			if ov == nil {
				continue
			}
			l, err := b.buildOverlay(ov, docDefault)
			if err != nil {
				return nil, fmt.Errorf("environment %q: %w", name, err)
			}
			layer.Environments[name] = l
		}
	}
	if len(doc.Datasets) > 0 {
		layer.Datasets = make(map[string]*model.Layer, len(doc.Datasets))
		for name, ov := range doc.Datasets {
			if ov == nil {
				continue
			}
			l, err := b.buildOverlay(ov, docDefault)
			if err != nil {
				return nil, fmt.Errorf("dataset %q: %w", name, err)
			}
			layer.Datasets[name] = l
		}
	}

	return layer, nil
}

func (b *builder) buildOverlay(ov *yamlOverlay, inherited model.EnforcementMode) (*model.Layer, error) {
	layer := &model.Layer{
		Description: ov.Description,
		Thresholds: model.ThresholdOverrides{
			MaxMissing:       ov.Thresholds.MaxMissing,
			MaxDriftSeverity: ov.Thresholds.MaxDriftSeverity,
		},
		SchemaCompatibility: model.SchemaOverrides{
			AllowTypeNarrowing: ov.SchemaCompatibility.AllowTypeNarrowing,
			AllowColumnDrop:    ov.SchemaCompatibility.AllowColumnDrop,
		},
		EnableFailFast: ov.EnableFailFast,
		ExitCodes:      ov.ExitCodes,
		Metadata:       ov.Metadata,
	}

	ruleDefault := inherited
	if ov.DefaultEnforcement != nil {
		mode, err := model.ParseEnforcementMode(*ov.DefaultEnforcement)
		if err != nil {
			return nil, &ParseError{FilePath: b.sourcePath, Message: "default_enforcement", Cause: err}
		}
		layer.DefaultEnforcement = &mode
		ruleDefault = mode
	}

	seen := make(map[string]bool, len(ov.Rules))
	for i := range ov.Rules {
		yr := &ov.Rules[i]
		r, err := b.buildRule(yr, i, ruleDefault)
		if err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, &ParseError{FilePath: b.sourcePath, Line: yr.line, Column: yr.column,
				Message: fmt.Sprintf("duplicate rule name %q", r.Name)}
		}
		seen[r.Name] = true
		layer.Rules = append(layer.Rules, r)
	}
	return layer, nil
}

func (b *builder) buildRule(yr *yamlRule, index int, defaultMode model.EnforcementMode) (*model.Rule, error) {
	if yr.Name == "" {
		return nil, &ParseError{FilePath: b.sourcePath, Line: yr.line, Column: yr.column,
			Message: fmt.Sprintf("rule %d: name is required", index)}
	}
	if yr.Condition == "" {
		return nil, &ParseError{FilePath: b.sourcePath, Line: yr.line, Column: yr.column,
			Message: fmt.Sprintf("rule %q: condition is required", yr.Name)}
	}

	r := model.NewRule(yr.Name, yr.Condition)
	r.Message = yr.Message
	r.FailFast = yr.FailFast
	r.ExitCode = yr.ExitCode
	r.Metadata = yr.Metadata
	r.Enforcement = defaultMode

	if yr.Severity != "" {
		sev, err := model.ParseSeverity(yr.Severity)
		if err != nil {
			return nil, &ParseError{FilePath: b.sourcePath, Line: yr.line, Column: yr.column,
				Message: fmt.Sprintf("rule %q", yr.Name), Cause: err}
		}
		r.Severity = sev
	}
	if yr.Enforcement != "" {
		mode, err := model.ParseEnforcementMode(yr.Enforcement)
		if err != nil {
			return nil, &ParseError{FilePath: b.sourcePath, Line: yr.line, Column: yr.column,
				Message: fmt.Sprintf("rule %q", yr.Name), Cause: err}
		}
		r.Enforcement = mode
	}
	return r, nil
}
