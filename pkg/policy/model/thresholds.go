package model

// ThresholdConfig holds numeric settings that rule conditions are written
// against. The runner does not consult them.
type ThresholdConfig struct {
	MaxMissing       float64 `yaml:"max_missing" json:"max_missing"`
	MaxDriftSeverity string  `yaml:"max_drift_severity" json:"max_drift_severity"`
}

// SchemaCompatibilityConfig controls which schema changes are tolerated.
type SchemaCompatibilityConfig struct {
	AllowTypeNarrowing bool `yaml:"allow_type_narrowing" json:"allow_type_narrowing"`
	AllowColumnDrop    bool `yaml:"allow_column_drop" json:"allow_column_drop"`
}

// DefaultThresholds returns max_missing 0.05 and max_drift_severity "minor".
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{MaxMissing: 0.05, MaxDriftSeverity: "minor"}
}

// DefaultSchemaCompatibility disallows type narrowing and column drops.
func DefaultSchemaCompatibility() SchemaCompatibilityConfig {
	return SchemaCompatibilityConfig{}
}

// ThresholdOverrides is the partial form of ThresholdConfig used in layers.
type ThresholdOverrides struct {
	MaxMissing       *float64
	MaxDriftSeverity *string
}

// SchemaOverrides is the partial form of SchemaCompatibilityConfig.
type SchemaOverrides struct {
	AllowTypeNarrowing *bool
	AllowColumnDrop    *bool
}

func (o ThresholdOverrides) applyTo(t *ThresholdConfig) {
	if o.MaxMissing != nil {
		t.MaxMissing = *o.MaxMissing
	}
	if o.MaxDriftSeverity != nil {
		t.MaxDriftSeverity = *o.MaxDriftSeverity
	}
}

func (o SchemaOverrides) applyTo(s *SchemaCompatibilityConfig) {
	if o.AllowTypeNarrowing != nil {
		s.AllowTypeNarrowing = *o.AllowTypeNarrowing
	}
	if o.AllowColumnDrop != nil {
		s.AllowColumnDrop = *o.AllowColumnDrop
	}
}
