package domain

import (
	"fmt"
	"math"
)

// CoverageStat summarizes covered vs total statements.
type CoverageStat struct {
	Covered int
	Total   int
}

// Percent returns the coverage percentage as a raw float64.
func (c CoverageStat) Percent() float64 {
	if c.Total == 0 {
		return 0
	}
	return (float64(c.Covered) / float64(c.Total)) * 100
}

// Uncovered returns the number of uncovered statements.
func (c CoverageStat) Uncovered() int {
	return c.Total - c.Covered
}

// Policy defines default and module-specific coverage requirements.
type Policy struct {
	DefaultMin float64 `json:"defaultMin"`
}

type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusWarn Status = "WARN"
)

type ModuleResult struct {
	Module     string   `json:"module"`
	DataDir    string   `json:"dataDir"`
	Executed   int      `json:"executed"`
	Total      int      `json:"total,omitempty"`
	Percent    float64  `json:"percent"`
	Required   float64  `json:"required"`
	Status     Status   `json:"status"`
	Files      int      `json:"files"`
	Skipped    int      `json:"skipped,omitempty"`
	Duplicates int      `json:"duplicates,omitempty"`
	Delta      *float64 `json:"delta,omitempty"`
}

// IsFailing returns true if this module fails its coverage requirement.
func (m ModuleResult) IsFailing() bool {
	return m.Status == StatusFail
}

// HasTotal reports whether a percentage could be computed.
func (m ModuleResult) HasTotal() bool {
	return m.Total > 0
}

type Result struct {
	Modules  []ModuleResult `json:"modules"`
	Passed   bool           `json:"passed"`
	Warnings []string       `json:"warnings,omitempty"`
}

// Executed returns the number of distinct executed statements summed over modules.
func (r Result) Executed() int {
	total := 0
	for _, m := range r.Modules {
		total += m.Executed
	}
	return total
}

// OverallPercent is computed over modules that declare a statement total.
// ok is false when no module does.
func (r Result) OverallPercent() (percent float64, ok bool) {
	var covered, total int
	for _, m := range r.Modules {
		if !m.HasTotal() {
			continue
		}
		covered += min(m.Executed, m.Total)
		total += m.Total
	}
	if total == 0 {
		return 0, false
	}
	return Round1(float64(covered) / float64(total) * 100), true
}

// FailingModules returns all modules that are failing.
func (r Result) FailingModules() []ModuleResult {
	var failing []ModuleResult
	for _, m := range r.Modules {
		if m.IsFailing() {
			failing = append(failing, m)
		}
	}
	return failing
}

// ApplyDeltas sets each module's delta against the latest history entry.
func (r *Result) ApplyDeltas(history History) {
	latest := history.LatestEntry()
	if latest == nil {
		return
	}
	for i := range r.Modules {
		if !r.Modules[i].HasTotal() {
			continue
		}
		prev, ok := latest.Modules[r.Modules[i].Module]
		if !ok || prev.Total == 0 {
			continue
		}
		delta := Round1(r.Modules[i].Percent - prev.Percent)
		r.Modules[i].Delta = &delta
	}
}

// Evaluate checks every module against the policy. Modules without a
// statement total cannot be measured as a percentage; they pass when no
// minimum applies and warn otherwise.
func Evaluate(policy Policy, coverage []ModuleCoverage) Result {
	results := make([]ModuleResult, 0, len(coverage))
	var warnings []string
	passed := true

	for _, c := range coverage {
		required := c.Module.MinThreshold(policy.DefaultMin)
		executed := c.Executed.Len()
		res := ModuleResult{
			Module:     c.Module.Name,
			DataDir:    c.Module.DataDir,
			Executed:   executed,
			Total:      c.Module.Statements,
			Required:   required,
			Status:     StatusPass,
			Files:      c.Files,
			Skipped:    c.Skipped,
			Duplicates: c.Duplicates,
		}

		switch {
		case !c.Module.HasTotal():
			if required > 0 {
				res.Status = StatusWarn
				warnings = append(warnings, fmt.Sprintf("module %s requires %.1f%% but declares no statement total", c.Module.Name, required))
			}
		default:
			if executed > c.Module.Statements {
				warnings = append(warnings, fmt.Sprintf("module %s executed %d statements but declares %d", c.Module.Name, executed, c.Module.Statements))
			}
			res.Percent = Round1(c.Stat().Percent())
			if res.Percent < required {
				res.Status = StatusFail
				passed = false
			}
		}
		if c.Skipped > 0 {
			warnings = append(warnings, fmt.Sprintf("module %s: skipped %d malformed measurement lines", c.Module.Name, c.Skipped))
		}
		results = append(results, res)
	}

	return Result{Modules: results, Passed: passed, Warnings: warnings}
}

// Round1 rounds a float64 to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
