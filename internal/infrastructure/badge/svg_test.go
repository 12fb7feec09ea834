package badge

import (
	"bytes"
	"strings"
	"testing"

	"github.com/felixgeelhaar/scovctl/internal/domain"
)

func resultWithPercent(percent float64, passed bool) domain.Result {
	return domain.Result{
		Passed:  passed,
		Modules: []domain.ModuleResult{{Module: "core", Executed: int(percent), Total: 100, Percent: percent}},
	}
}

func TestWriteBadgePercent(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, resultWithPercent(85, true), Options{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<svg") {
		t.Fatal("expected SVG element")
	}
	if !strings.Contains(out, "statements: 85%") {
		t.Fatalf("expected label and percentage: %s", out)
	}
	if !strings.Contains(out, `rx="3"`) {
		t.Fatal("expected rounded corners for flat style")
	}
}

func TestWriteBadgeColors(t *testing.T) {
	tests := []struct {
		name      string
		percent   float64
		passed    bool
		wantColor string
	}{
		{"low", 50, true, "#e05d44"},
		{"medium", 65, true, "#dfb317"},
		{"good", 80, true, "#97ca00"},
		{"excellent", 90, true, "#4c1"},
		{"failing", 95, false, "#e05d44"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, resultWithPercent(tc.percent, tc.passed), Options{Style: StyleFlat}); err != nil {
				t.Fatalf("write: %v", err)
			}
			if !strings.Contains(buf.String(), `fill="`+tc.wantColor+`"`) {
				t.Fatalf("expected color %s for %.0f%%", tc.wantColor, tc.percent)
			}
		})
	}
}

func TestWriteBadgeWithoutTotals(t *testing.T) {
	var buf bytes.Buffer
	result := domain.Result{Passed: true, Modules: []domain.ModuleResult{{Module: "core", Executed: 42}}}
	if err := Write(&buf, result, Options{Label: "scoverage", Style: StyleFlatSquare}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "scoverage: 42 executed") {
		t.Fatalf("expected executed count: %s", out)
	}
	if !strings.Contains(out, "#9f9f9f") || !strings.Contains(out, `rx="0"`) {
		t.Fatalf("expected grey flat-square badge: %s", out)
	}
}
