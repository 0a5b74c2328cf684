package model

import (
	"fmt"
	"strings"
)

// EnforcementMode decides whether a violation affects the audit outcome.
type EnforcementMode int

const (
	// Enforce makes violations count toward failure.
	Enforce EnforcementMode = iota

	// DryRun reports violations without failing.
	DryRun
)

// ParseEnforcementMode accepts enforce, dry_run and dry-run.
func ParseEnforcementMode(s string) (EnforcementMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enforce":
		return Enforce, nil
	case "dry_run", "dry-run", "dryrun":
		return DryRun, nil
	}
	return Enforce, fmt.Errorf("invalid enforcement mode %q (valid: enforce, dry_run)", s)
}

func (m EnforcementMode) String() string {
	switch m {
	case Enforce:
		return "enforce"
	case DryRun:
		return "dry_run"
	}
	return fmt.Sprintf("enforcement(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m EnforcementMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *EnforcementMode) UnmarshalText(text []byte) error {
	parsed, err := ParseEnforcementMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
