package model

import (
	"fmt"
	"strings"
)

// Severity classifies violations. Values are totally ordered:
// SeverityInfo < SeverityWarn < SeverityError < SeverityFatal.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
	SeverityFatal
)

// Severities lists all severities in ascending order.
var Severities = []Severity{SeverityInfo, SeverityWarn, SeverityError, SeverityFatal}

// ParseSeverity converts a policy-file value. It accepts info, warning, warn,
// error, fatal and critical (an alias for fatal), case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarn, nil
	case "error":
		return SeverityError, nil
	case "fatal", "critical":
		return SeverityFatal, nil
	}
	return SeverityError, fmt.Errorf("invalid severity %q (valid: info, warning, error, fatal)", s)
}

// String returns the policy-file spelling.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ExitCodeKey returns the exit-code table key for the severity.
// INFO maps to success.
func (s Severity) ExitCodeKey() string {
	switch s {
	case SeverityInfo:
		return ExitKeySuccess
	case SeverityWarn:
		return ExitKeyWarning
	case SeverityFatal:
		return ExitKeyFatal
	}
	return ExitKeyError
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s >= other
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
