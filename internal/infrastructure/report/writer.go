package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/felixgeelhaar/scovctl/internal/application"
	"github.com/felixgeelhaar/scovctl/internal/domain"
	"github.com/felixgeelhaar/scovctl/internal/infrastructure/badge"
)

type Writer struct{}

type jsonSummary struct {
	Pass     bool     `json:"pass"`
	Executed int      `json:"executed"`
	Overall  *float64 `json:"overall,omitempty"`
}

type jsonPayload struct {
	Modules  []domain.ModuleResult `json:"modules"`
	Summary  jsonSummary           `json:"summary"`
	Warnings []string              `json:"warnings,omitempty"`
}

func (Writer) Write(w io.Writer, result domain.Result, format application.OutputFormat) error {
	switch format {
	case application.OutputJSON:
		payload := jsonPayload{
			Modules:  result.Modules,
			Summary:  jsonSummary{Pass: result.Passed, Executed: result.Executed()},
			Warnings: result.Warnings,
		}
		if payload.Modules == nil {
			payload.Modules = []domain.ModuleResult{}
		}
		if overall, ok := result.OverallPercent(); ok {
			payload.Summary.Overall = &overall
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case application.OutputHTML:
		return writeHTML(w, result)
	case application.OutputBrief:
		return writeBrief(w, result)
	case application.OutputBadge:
		return badge.Write(w, result, badge.Options{})
	case application.OutputText, "":
		return writeText(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

var (
	passStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A")).Bold(true)
	failStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626")).Bold(true)
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#CA8A04")).Bold(true)
	deltaUpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A"))
	deltaDownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626"))
)

func writeText(w io.Writer, result domain.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	hasDeltas := false
	for _, m := range result.Modules {
		if m.Delta != nil {
			hasDeltas = true
			break
		}
	}

	header := "Module\tExecuted\tTotal\tCoverage\tRequired\tStatus"
	if hasDeltas {
		header = "Module\tExecuted\tTotal\tCoverage\tDelta\tRequired\tStatus"
	}
	_, _ = fmt.Fprintln(tw, header)

	colorize := colorEnabled(w)
	for _, m := range result.Modules {
		status := string(m.Status)
		if colorize {
			switch m.Status {
			case domain.StatusPass:
				status = passStyle.Render(status)
			case domain.StatusFail:
				status = failStyle.Render(status)
			case domain.StatusWarn:
				status = warnStyle.Render(status)
			}
		}

		total, coverage := "-", "-"
		if m.HasTotal() {
			total = fmt.Sprintf("%d", m.Total)
			coverage = fmt.Sprintf("%.1f%%", m.Percent)
		}
		row := []string{m.Module, fmt.Sprintf("%d", m.Executed), total, coverage}
		if hasDeltas {
			row = append(row, formatDelta(m.Delta, colorize))
		}
		row = append(row, fmt.Sprintf("%.1f%%", m.Required), status)
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if overall, ok := result.OverallPercent(); ok {
		fmt.Fprintf(w, "\nOverall: %.1f%% (%d statements executed)\n", overall, result.Executed())
	} else {
		fmt.Fprintf(w, "\nExecuted: %d statements\n", result.Executed())
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  - %s\n", warn)
		}
	}
	return nil
}

func formatDelta(delta *float64, colorize bool) string {
	if delta == nil {
		return "-"
	}
	s := fmt.Sprintf("%+.1f%%", *delta)
	if !colorize {
		return s
	}
	switch {
	case *delta > 0:
		return deltaUpStyle.Render(s)
	case *delta < 0:
		return deltaDownStyle.Render(s)
	}
	return s
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

// writeBrief outputs a single-line summary for scripts and agents.
// Format: STATUS | N statements executed [| XX.X% overall] | P/M modules passing [| failing: a (XX.X%)] [| K warnings]
func writeBrief(w io.Writer, result domain.Result) error {
	var passing int
	var failed []domain.ModuleResult
	for _, m := range result.Modules {
		if m.IsFailing() {
			failed = append(failed, m)
		} else {
			passing++
		}
	}

	status := "PASS"
	if !result.Passed {
		status = "FAIL"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s | %d statements executed", status, result.Executed())
	if overall, ok := result.OverallPercent(); ok {
		fmt.Fprintf(&sb, " | %.1f%% overall", overall)
	}
	fmt.Fprintf(&sb, " | %d/%d modules passing", passing, len(result.Modules))

	if len(failed) > 0 {
		sb.WriteString(" | failing:")
		for i, m := range failed {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, " %s (%.1f%%)", m.Module, m.Percent)
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(&sb, " | %d warnings", len(result.Warnings))
	}

	sb.WriteString("\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
