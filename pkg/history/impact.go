package history

import "sort"

// Impact analysis thresholds.
const (
	// RelaxThreshold is the violation rate above which a rule is
	// flagged as too strict.
	RelaxThreshold = 0.8

	// ReadyThreshold is the violation rate below which a rule is
	// considered ready for enforcement.
	ReadyThreshold = 0.05

	// MinRunsForReady is the number of runs needed before a rule can be
	// called ready for enforcement.
	MinRunsForReady = 10
)

// Recommendation is the suggested action for a rule.
type Recommendation string

const (
	RecommendNone    Recommendation = ""
	RecommendRelax   Recommendation = "relax"
	RecommendEnforce Recommendation = "enforce"
)

// ImpactReport summarizes how often runs would have been blocked.
type ImpactReport struct {
	TotalRuns  int          `json:"total_runs"`
	WouldBlock int          `json:"would_block"`
	BlockRate  float64      `json:"block_rate"`
	Rules      []RuleImpact `json:"rules"`
}

// RuleImpact is the per-rule part of an ImpactReport.
type RuleImpact struct {
	Rule           string         `json:"rule"`
	Violations     int            `json:"violations"`
	ViolationRate  float64        `json:"violation_rate"`
	Recommendation Recommendation `json:"recommendation,omitempty"`
}

// AnalyzeImpact computes block and violation rates over records. Rules are
// sorted by violation rate, highest first, then by name. A rule counts at
// most once per run.
func AnalyzeImpact(records []*Record) *ImpactReport {
	report := &ImpactReport{TotalRuns: len(records)}

	counts := make(map[string]int)
	for _, r := range records {
		if r.WouldBlock {
			report.WouldBlock++
		}
		seen := make(map[string]bool, len(r.Violations))
		for _, v := range r.Violations {
			if seen[v.Rule] {
				continue
			}
			seen[v.Rule] = true
			counts[v.Rule]++
		}
	}

	runs := max(1, report.TotalRuns)
	report.BlockRate = float64(report.WouldBlock) / float64(runs)

	for rule, n := range counts {
		rate := float64(n) / float64(runs)
		report.Rules = append(report.Rules, RuleImpact{
			Rule:           rule,
			Violations:     n,
			ViolationRate:  rate,
			Recommendation: recommend(rate, report.TotalRuns),
		})
	}
	sort.Slice(report.Rules, func(i, j int) bool {
		a, b := report.Rules[i], report.Rules[j]
		if a.ViolationRate != b.ViolationRate {
			return a.ViolationRate > b.ViolationRate
		}
		return a.Rule < b.Rule
	})
	return report
}

func recommend(rate float64, runs int) Recommendation {
	switch {
	case rate > RelaxThreshold:
		return RecommendRelax
	case rate < ReadyThreshold && runs >= MinRunsForReady:
		return RecommendEnforce
	}
	return RecommendNone
}
