package model

// Exit-code table keys.
const (
	ExitKeySuccess     = "success"
	ExitKeyWarning     = "warning"
	ExitKeyError       = "error"
	ExitKeyFatal       = "fatal"
	ExitKeyRuleFailure = "rule_failure"
	ExitKeySystemError = "system_error"
	ExitKeyFailFast    = "fail_fast"
)

// fallbackExitCode is used for a non-success key missing from the table.
const fallbackExitCode = 2

// DefaultExitCodes returns the built-in exit-code table. Entries in a
// policy file are merged over it.
func DefaultExitCodes() map[string]int {
	return map[string]int{
		ExitKeySuccess:     0,
		ExitKeyWarning:     1,
		ExitKeyError:       2,
		ExitKeyFatal:       3,
		ExitKeyRuleFailure: 4,
		ExitKeySystemError: 5,
		ExitKeyFailFast:    2,
	}
}

// ExitTrigger describes the violation that determines an audit's exit code.
type ExitTrigger struct {
	Rule     *Rule
	Severity Severity
	FailFast bool // the run was terminated by this violation
}

// ExitCode returns the table entry for key. Missing entries fall back to
// 0 for success and 2 otherwise.
func (p *AuditPolicy) ExitCode(key string) int {
	if code, ok := p.ExitCodes[key]; ok {
		return code
	}
	if key == ExitKeySuccess {
		return 0
	}
	return fallbackExitCode
}

// ResolveExitCode is the single place exit codes are decided. Precedence,
// highest first:
//
//  1. the triggering rule's explicit exit_code
//  2. the fail_fast entry, if the run was terminated by fail-fast
//  3. the table entry for the triggering violation's severity
//  4. the success entry, when there is no trigger
func (p *AuditPolicy) ResolveExitCode(t *ExitTrigger) int {
	if t == nil {
		return p.ExitCode(ExitKeySuccess)
	}
	if t.Rule != nil && t.Rule.ExitCode != nil {
		return *t.Rule.ExitCode
	}
	if t.FailFast {
		return p.ExitCode(ExitKeyFailFast)
	}
	return p.ExitCode(t.Severity.ExitCodeKey())
}
