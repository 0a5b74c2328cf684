package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"mercator-hq/vigil/pkg/history"
	"mercator-hq/vigil/pkg/history/export"
	"mercator-hq/vigil/pkg/history/recorder"
	"mercator-hq/vigil/pkg/policy/engine"
	"mercator-hq/vigil/pkg/policy/manager"
	"mercator-hq/vigil/pkg/policy/model"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is plain text output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV output.
	FormatCSV OutputFormat = "csv"
)

// ParseFormat converts a --format flag value. The empty string is text.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", NewConfigError("format", fmt.Sprintf("unsupported format %q (valid: text, json, csv)", s))
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

var prettyJSON = &JSONFormatter{Indent: true}

// ResultHeader is the CSV header written by WriteResult.
var ResultHeader = []string{"policy", "rule", "severity", "enforced", "inconclusive", "message", "error"}

// WriteResult renders an audit result.
func WriteResult(w io.Writer, res *engine.Result, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return prettyJSON.FormatTo(w, res)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(ResultHeader); err != nil {
			return err
		}
		for _, v := range res.Violations {
			row := []string{
				res.Policy,
				v.Rule,
				v.Severity.String(),
				strconv.FormatBool(v.Enforced),
				strconv.FormatBool(v.Inconclusive),
				v.Message,
				v.Error,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return writeResultText(w, res)
	}
}

func writeResultText(w io.Writer, res *engine.Result) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Policy: %s", res.Policy)
	if overlays := overlayLabel(res.Environment, res.Dataset); overlays != "" {
		fmt.Fprintf(&sb, " (%s)", overlays)
	}
	sb.WriteString("\n")
	if res.RunID != "" {
		fmt.Fprintf(&sb, "Run:    %s\n", res.RunID)
	}

	fmt.Fprintf(&sb, "Status: %s (exit code %d)\n", resultStatus(res), res.ExitCode)
	fmt.Fprintf(&sb, "Rules:  %d/%d evaluated in %s\n", res.RulesEvaluated, res.RulesTotal, res.Duration.Round(time.Microsecond))
	if res.TerminatedEarly {
		fmt.Fprintf(&sb, "Stopped early by fail-fast rule %q\n", res.TerminationRule)
	}

	if len(res.Violations) == 0 {
		sb.WriteString("No violations\n")
	} else {
		fmt.Fprintf(&sb, "\nViolations (%d):\n", len(res.Violations))
		for _, v := range res.Violations {
			fmt.Fprintf(&sb, "  %-7s %s: %s", "["+strings.ToUpper(v.Severity.String())+"]", v.Rule, v.Message)
			var tags []string
			if !v.Enforced {
				tags = append(tags, "dry-run")
			}
			if v.Inconclusive {
				tags = append(tags, "inconclusive")
			}
			if len(tags) > 0 {
				fmt.Fprintf(&sb, " (%s)", strings.Join(tags, ", "))
			}
			sb.WriteString("\n")
			if v.Errored() {
				fmt.Fprintf(&sb, "          error: %s\n", v.Error)
			}
		}
	}

	if res.DryRun && res.WouldExitCode != res.ExitCode {
		fmt.Fprintf(&sb, "\nDry run: would have failed with exit code %d\n", res.WouldExitCode)
	}

	if res.Trace != nil {
		sb.WriteString("\nTrace:\n")
		for _, step := range res.Trace.Steps {
			fmt.Fprintf(&sb, "  %-10s %-20s %s\n", step.StepType, step.Rule, step.Details)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func resultStatus(res *engine.Result) string {
	switch {
	case res.DryRun:
		return "PASSED (dry run)"
	case res.Success:
		return "PASSED"
	default:
		return "FAILED"
	}
}

func overlayLabel(environment, dataset string) string {
	var parts []string
	if environment != "" {
		parts = append(parts, "env="+environment)
	}
	if dataset != "" {
		parts = append(parts, "dataset="+dataset)
	}
	return strings.Join(parts, ", ")
}

// WriteRecords renders history records. JSON and CSV use the history
// exporters so the output matches archives.
func WriteRecords(ctx context.Context, w io.Writer, records []*history.Record, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return export.NewJSONExporter(true).Export(ctx, records, w)
	case FormatCSV:
		return export.NewCSVExporter(true).Export(ctx, records, w)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECORDED\tPOLICY\tSTATUS\tEXIT\tVIOLATIONS\tHIGHEST")
	for _, r := range records {
		highest := "-"
		if s, ok := recorder.HighestSeverity(r); ok {
			highest = s.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			shortID(r.ID),
			r.RecordedAt.UTC().Format(time.RFC3339),
			r.Policy,
			recordStatus(r),
			r.ExitCode,
			len(r.Violations),
			highest,
		)
	}
	return tw.Flush()
}

func recordStatus(r *history.Record) string {
	switch {
	case r.DryRun && r.WouldBlock:
		return "would-fail"
	case r.DryRun:
		return "dry-run"
	case r.Success:
		return "pass"
	default:
		return "fail"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ImpactHeader is the CSV header written by WriteImpact.
var ImpactHeader = []string{"rule", "violations", "violation_rate", "recommendation"}

// WriteImpact renders a dry-run impact report.
func WriteImpact(w io.Writer, report *history.ImpactReport, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return prettyJSON.FormatTo(w, report)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(ImpactHeader); err != nil {
			return err
		}
		for _, r := range report.Rules {
			row := []string{
				r.Rule,
				strconv.Itoa(r.Violations),
				strconv.FormatFloat(r.ViolationRate, 'f', 4, 64),
				string(r.Recommendation),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}

	fmt.Fprintf(w, "Runs analyzed: %d\n", report.TotalRuns)
	fmt.Fprintf(w, "Would block:   %d (%.1f%%)\n\n", report.WouldBlock, report.BlockRate*100)
	if len(report.Rules) == 0 {
		_, err := fmt.Fprintln(w, "No violations recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tVIOLATIONS\tRATE\tRECOMMENDATION")
	for _, r := range report.Rules {
		rec := string(r.Recommendation)
		if rec == "" {
			rec = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%s\n", r.Rule, r.Violations, r.ViolationRate*100, rec)
	}
	return tw.Flush()
}

// PolicyView is the serialized form of an effective policy.
type PolicyView struct {
	Name               string         `json:"name"`
	Description        string         `json:"description,omitempty"`
	Version            string         `json:"version"`
	Source             string         `json:"source,omitempty"`
	Lineage            []string       `json:"lineage"`
	DefaultEnforcement string         `json:"default_enforcement"`
	EnableFailFast     bool           `json:"enable_fail_fast"`
	ExitCodes          map[string]int `json:"exit_codes"`
	Environments       []string       `json:"environments,omitempty"`
	Datasets           []string       `json:"datasets,omitempty"`
	Rules              []RuleView     `json:"rules"`
}

// RuleView is the serialized form of a rule.
type RuleView struct {
	Name        string `json:"name"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Enforcement string `json:"enforcement"`
	FailFast    bool   `json:"fail_fast,omitempty"`
	ExitCode    *int   `json:"exit_code,omitempty"`
	Message     string `json:"message,omitempty"`
}

// NewPolicyView builds the view of p.
func NewPolicyView(p *model.AuditPolicy) *PolicyView {
	view := &PolicyView{
		Name:               p.Name,
		Description:        p.Description,
		Version:            p.Version,
		Source:             p.Source,
		Lineage:            p.Lineage,
		DefaultEnforcement: p.DefaultEnforcement.String(),
		EnableFailFast:     p.EnableFailFast,
		ExitCodes:          p.ExitCodes,
		Environments:       p.EnvironmentNames(),
		Datasets:           p.DatasetNames(),
		Rules:              make([]RuleView, 0, len(p.Rules)),
	}
	for _, r := range p.Rules {
		view.Rules = append(view.Rules, RuleView{
			Name:        r.Name,
			Condition:   r.Condition,
			Severity:    r.Severity.String(),
			Enforcement: r.Enforcement.String(),
			FailFast:    r.FailFast,
			ExitCode:    r.ExitCode,
			Message:     r.Message,
		})
	}
	return view
}

// WritePolicy renders an effective policy. CSV is not supported.
func WritePolicy(w io.Writer, p *model.AuditPolicy, format OutputFormat) error {
	view := NewPolicyView(p)
	switch format {
	case FormatJSON:
		return prettyJSON.FormatTo(w, view)
	case FormatCSV:
		return NewConfigError("format", "csv is not supported for policies")
	}

	fmt.Fprintf(w, "Policy:      %s (version %s)\n", view.Name, view.Version)
	if view.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", view.Description)
	}
	if view.Source != "" {
		fmt.Fprintf(w, "Source:      %s\n", view.Source)
	}
	fmt.Fprintf(w, "Lineage:     %s\n", strings.Join(view.Lineage, " -> "))
	fmt.Fprintf(w, "Enforcement: %s (fail-fast %t)\n", view.DefaultEnforcement, view.EnableFailFast)
	if len(view.Environments) > 0 {
		fmt.Fprintf(w, "Environments: %s\n", strings.Join(view.Environments, ", "))
	}
	if len(view.Datasets) > 0 {
		fmt.Fprintf(w, "Datasets:    %s\n", strings.Join(view.Datasets, ", "))
	}

	keys := make([]string, 0, len(view.ExitCodes))
	for k := range view.ExitCodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	codes := make([]string, 0, len(keys))
	for _, k := range keys {
		codes = append(codes, fmt.Sprintf("%s=%d", k, view.ExitCodes[k]))
	}
	fmt.Fprintf(w, "Exit codes:  %s\n\n", strings.Join(codes, " "))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tSEVERITY\tENFORCEMENT\tFAIL-FAST\tCONDITION")
	for _, r := range view.Rules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", r.Name, r.Severity, r.Enforcement, r.FailFast, r.Condition)
	}
	return tw.Flush()
}

// WritePolicyList renders the policies found in the search paths.
func WritePolicyList(w io.Writer, infos []manager.PolicyInfo, format OutputFormat) error {
	switch format {
	case FormatJSON:
		if infos == nil {
			infos = []manager.PolicyInfo{}
		}
		return prettyJSON.FormatTo(w, infos)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"name", "path", "extends", "rules"}); err != nil {
			return err
		}
		for _, info := range infos {
			if err := cw.Write([]string{info.Name, info.Path, info.Extends, strconv.Itoa(info.Rules)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tRULES\tEXTENDS\tPATH")
	for _, info := range infos {
		extends := info.Extends
		if extends == "" {
			extends = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", info.Name, info.Rules, extends, info.Path)
	}
	return tw.Flush()
}
