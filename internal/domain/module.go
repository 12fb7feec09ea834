package domain

// Module is one named data directory taking part in an aggregate report.
type Module struct {
	Name    string `json:"name"`
	DataDir string `json:"dataDir"`
	// Statements is the number of instrumented statements, when known.
	// Zero means the denominator is unknown and no percentage can be computed.
	Statements int      `json:"statements,omitempty"`
	Min        *float64 `json:"min,omitempty"`
	// Aggregator marks modules that carry no code of their own (parent
	// build descriptors). They are listed in config but never collected.
	Aggregator bool `json:"aggregator,omitempty"`
}

// MinThreshold returns the minimum percentage required for this module,
// falling back to defaultMin.
func (m Module) MinThreshold(defaultMin float64) float64 {
	if m.Min != nil {
		return *m.Min
	}
	return defaultMin
}

// HasTotal reports whether the module declares its statement count.
func (m Module) HasTotal() bool {
	return m.Statements > 0
}

// ModuleCoverage is the collected measurement data for one module.
type ModuleCoverage struct {
	Module   Module
	Executed *CoverageSet
	// Files is the number of measurement files read.
	Files int
	// Lines is the number of lines read across all files.
	Lines int
	// Skipped counts malformed lines (truncated writes, garbage).
	Skipped int
	// Duplicates counts well-formed lines whose id was already seen.
	Duplicates int
}

// Stat returns executed vs declared statements.
func (c ModuleCoverage) Stat() CoverageStat {
	executed := c.Executed.Len()
	if c.Module.HasTotal() && executed > c.Module.Statements {
		executed = c.Module.Statements
	}
	return CoverageStat{Covered: executed, Total: c.Module.Statements}
}
