// Package wizard is the interactive threshold review behind "scovctl init".
package wizard

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/scovctl/internal/application"
	"github.com/felixgeelhaar/scovctl/internal/domain"
)

type (
	wizardState int

	initWizardModel struct {
		base       application.Config
		state      wizardState
		defaultMin float64
		modules    []wizardModule
		cursor     int
		confirmed  bool
		aborted    bool
	}

	wizardModule struct {
		module   domain.Module
		min      float64
		override bool
	}
)

const (
	stateIntro wizardState = iota
	stateEdit
	stateConfirm
)

const step = 5

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#38BDF8"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8"))
)

// Run shows the wizard for the discovered config. It returns the edited
// config and true when the user confirmed.
func Run(cfg application.Config, stdout io.Writer, stdin io.Reader) (application.Config, bool, error) {
	model := newInitWizardModel(cfg)
	program := tea.NewProgram(model, tea.WithInput(stdin), tea.WithOutput(stdout))
	res, err := program.Run()
	if err != nil {
		return cfg, false, err
	}
	final, ok := res.(*initWizardModel)
	if !ok {
		return cfg, false, fmt.Errorf("unexpected wizard state")
	}
	if final.aborted || !final.confirmed {
		return cfg, false, nil
	}
	return final.toConfig(), true, nil
}

func newInitWizardModel(cfg application.Config) *initWizardModel {
	defaultMin := cfg.Policy.DefaultMin
	if defaultMin <= 0 {
		defaultMin = 80
	}
	modules := make([]wizardModule, len(cfg.Modules))
	for i, m := range cfg.Modules {
		wm := wizardModule{module: m, min: defaultMin}
		if m.Min != nil {
			wm.min = *m.Min
			wm.override = true
		}
		modules[i] = wm
	}
	return &initWizardModel{
		base:       cfg,
		state:      stateIntro,
		defaultMin: defaultMin,
		modules:    modules,
	}
}

func (m *initWizardModel) Init() tea.Cmd {
	return nil
}

func (m *initWizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "q":
		m.aborted = true
		return m, tea.Quit
	case "enter":
		switch m.state {
		case stateIntro:
			m.state = stateEdit
		case stateEdit:
			m.state = stateConfirm
		case stateConfirm:
			m.confirmed = true
			return m, tea.Quit
		}
	case "esc":
		if m.state == stateConfirm {
			m.state = stateEdit
		}
	}
	if m.state != stateEdit {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "left", "-":
		m.adjustSelection(-step)
	case "right", "+":
		m.adjustSelection(step)
	case "r":
		m.resetSelection()
	case "a":
		m.toggleAggregator()
	}
	return m, nil
}

func (m *initWizardModel) View() string {
	switch m.state {
	case stateIntro:
		return m.viewIntro()
	case stateEdit:
		return m.viewEdit()
	case stateConfirm:
		return m.viewConfirm()
	default:
		return ""
	}
}

// Cursor 0 is the default minimum; cursor i selects module i-1.
func (m *initWizardModel) moveCursor(delta int) {
	m.cursor = max(0, min(m.cursor+delta, len(m.modules)))
}

func (m *initWizardModel) adjustSelection(delta float64) {
	if m.cursor == 0 {
		m.defaultMin = clamp(m.defaultMin + delta)
		for i := range m.modules {
			if !m.modules[i].override {
				m.modules[i].min = m.defaultMin
			}
		}
		return
	}
	mod := &m.modules[m.cursor-1]
	mod.min = clamp(mod.min + delta)
	mod.override = true
}

func (m *initWizardModel) resetSelection() {
	if m.cursor == 0 {
		return
	}
	mod := &m.modules[m.cursor-1]
	mod.override = false
	mod.min = m.defaultMin
}

func (m *initWizardModel) toggleAggregator() {
	if m.cursor == 0 {
		return
	}
	mod := &m.modules[m.cursor-1]
	mod.module.Aggregator = !mod.module.Aggregator
}

func (m *initWizardModel) viewIntro() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n\n", titleStyle.Render("scovctl init"))
	fmt.Fprintf(&b, "Found %d data directories. Review the coverage thresholds before writing the config.\n\n", len(m.modules))
	fmt.Fprintf(&b, "Press Enter to continue, or Ctrl+C to cancel. Default minimum is %.0f%%.\n", m.defaultMin)
	return b.String()
}

func (m *initWizardModel) viewEdit() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n\n", titleStyle.Render("Review thresholds"))
	fmt.Fprintln(&b, mutedStyle.Render("↑/↓ move, ←/→ or +/- change, r reset, a toggle aggregator"))
	fmt.Fprintf(&b, "%sdefault: %.0f%%\n\n", m.prefix(0), m.defaultMin)
	for i, mod := range m.modules {
		var notes []string
		if mod.override {
			notes = append(notes, "custom")
		}
		if mod.module.Aggregator {
			notes = append(notes, "aggregator, not collected")
		}
		suffix := ""
		if len(notes) > 0 {
			suffix = mutedStyle.Render(" (" + strings.Join(notes, ", ") + ")")
		}
		fmt.Fprintf(&b, "%s%s: %.0f%%%s\n", m.prefix(i+1), mod.module.Name, mod.min, suffix)
	}
	fmt.Fprintf(&b, "\nEnter to continue, q to cancel.\n")
	return b.String()
}

func (m *initWizardModel) prefix(pos int) string {
	if m.cursor == pos {
		return cursorStyle.Render("> ")
	}
	return "  "
}

func (m *initWizardModel) viewConfirm() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n\n", titleStyle.Render("Ready to write configuration"))
	fmt.Fprintf(&b, "Default min coverage: %.0f%%\n", m.defaultMin)
	for _, mod := range m.modules {
		fmt.Fprintf(&b, "  %s (%s): %.0f%%\n", mod.module.Name, mod.module.DataDir, mod.min)
	}
	if ex := m.base.Discover.Exclude; len(ex) > 0 {
		fmt.Fprintf(&b, "\nExcluded from discovery:\n")
		for _, pattern := range ex {
			fmt.Fprintf(&b, "  - %s\n", pattern)
		}
	}
	fmt.Fprintf(&b, "\nPress Enter to save, Esc to go back, q to cancel.\n")
	return b.String()
}

func (m *initWizardModel) toConfig() application.Config {
	cfg := m.base
	cfg.Policy = domain.Policy{DefaultMin: m.defaultMin}
	cfg.Modules = make([]domain.Module, len(m.modules))
	for i, mod := range m.modules {
		out := mod.module
		out.Min = nil
		if mod.override {
			v := mod.min
			out.Min = &v
		}
		cfg.Modules[i] = out
	}
	return cfg
}

func clamp(value float64) float64 {
	return max(0, min(value, 100))
}
