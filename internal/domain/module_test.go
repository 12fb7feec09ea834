package domain

import "testing"

func TestModuleMinThreshold(t *testing.T) {
	min := 90.0
	if got := (Module{Min: &min}).MinThreshold(50); got != 90 {
		t.Fatalf("expected module override, got %.1f", got)
	}
	if got := (Module{}).MinThreshold(50); got != 50 {
		t.Fatalf("expected default, got %.1f", got)
	}
}

func TestModuleCoverageStatClamps(t *testing.T) {
	c := ModuleCoverage{Module: Module{Statements: 2}, Executed: NewCoverageSet(1, 2, 3)}

	stat := c.Stat()

	if stat.Covered != 2 || stat.Total != 2 || stat.Uncovered() != 0 {
		t.Fatalf("unexpected stat %+v", stat)
	}
	if stat.Percent() != 100 {
		t.Fatalf("expected 100%%, got %.1f", stat.Percent())
	}
}

func TestModuleCoverageStatWithoutTotal(t *testing.T) {
	c := ModuleCoverage{Executed: NewCoverageSet(1, 2)}

	if got := c.Stat().Percent(); got != 0 {
		t.Fatalf("expected 0, got %.1f", got)
	}
}
