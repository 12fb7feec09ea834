package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/scovctl/internal/application"
	"github.com/felixgeelhaar/scovctl/internal/domain"
	"github.com/felixgeelhaar/scovctl/internal/mcp"
	"github.com/felixgeelhaar/scovctl/pkg/measurement"
)

var errSentinel = errors.New("boom")

type fakeService struct {
	checkErr      error
	reportErr     error
	discoverErr   error
	discoverCfg   application.Config
	collectErr    error
	collection    measurement.Collection
	historyErr    error
	history       domain.History
	watchErr      error
	lastReport    *application.ReportOptions
	lastDiscover  *application.DiscoverOptions
	lastCollected *string
}

func (f fakeService) Check(_ context.Context, opts application.CheckOptions) error {
	if f.lastReport != nil {
		*f.lastReport = application.ReportOptions(opts)
	}
	return f.checkErr
}

func (f fakeService) Report(_ context.Context, opts application.ReportOptions) error {
	if f.lastReport != nil {
		*f.lastReport = opts
	}
	return f.reportErr
}

func (f fakeService) Discover(_ context.Context, opts application.DiscoverOptions) (application.Config, error) {
	if f.lastDiscover != nil {
		*f.lastDiscover = opts
	}
	if f.discoverErr != nil {
		return application.Config{}, f.discoverErr
	}
	return f.discoverCfg, nil
}

func (f fakeService) Watch(_ context.Context, _ application.WatchOptions, _ application.FileWatcher, _ application.WatchCallback) error {
	return f.watchErr
}

func (f fakeService) ReportResult(_ context.Context, _ application.ReportOptions) (domain.Result, error) {
	return domain.Result{Passed: true}, nil
}

func (f fakeService) Record(_ context.Context, _ application.ReportOptions, _ application.HistoryStore) (domain.Result, error) {
	return domain.Result{Passed: true}, nil
}

func (f fakeService) Collect(_ context.Context, opts application.CollectOptions) (measurement.Collection, error) {
	if f.lastCollected != nil {
		*f.lastCollected = opts.DataDir
	}
	if f.collectErr != nil {
		return measurement.Collection{}, f.collectErr
	}
	return f.collection, nil
}

func (f fakeService) ResolveConfig(_ context.Context, _ string) (application.Config, error) {
	return f.discoverCfg, nil
}

func (f fakeService) History(_ context.Context, _ application.HistoryStore) (domain.History, error) {
	return f.history, f.historyErr
}

func minimalConfig() application.Config {
	return application.Config{
		Version:  1,
		Discover: application.DiscoverConfig{Root: "."},
		Modules:  []domain.Module{{Name: "core", DataDir: "core/target/scoverage-data"}},
	}
}

func TestOutputValueSet(t *testing.T) {
	val := outputValue(application.OutputText)
	for _, format := range []string{"json", "html", "brief", "badge", "text"} {
		if err := val.Set(format); err != nil {
			t.Fatalf("set %s: %v", format, err)
		}
		if string(val) != format {
			t.Fatalf("expected %s, got %s", format, val)
		}
	}
	if err := val.Set("bad"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWriteConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := writeConfigFile(path, minimalConfig(), io.Discard, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected file: %v", err)
	}
	if !strings.Contains(string(data), "dataDir: core/target/scoverage-data") {
		t.Fatalf("unexpected config: %s", data)
	}
	if err := writeConfigFile(path, minimalConfig(), io.Discard, false); err == nil {
		t.Fatalf("expected error for existing file without force")
	}
	if err := writeConfigFile(path, minimalConfig(), io.Discard, true); err != nil {
		t.Fatalf("force write: %v", err)
	}
}

func TestRunUsage(t *testing.T) {
	var out bytes.Buffer
	code := Run([]string{"scovctl"}, &out, &out, fakeService{})
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestRunUnknown(t *testing.T) {
	var out bytes.Buffer
	code := Run([]string{"scovctl", "nope"}, &out, &out, fakeService{})
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestRunBadFlag(t *testing.T) {
	var out bytes.Buffer
	code := Run([]string{"scovctl", "report", "-o", "xml"}, &out, &out, fakeService{})
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	code := Run([]string{"scovctl", "version"}, &out, &out, fakeService{})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(out.String(), "scovctl dev") {
		t.Fatalf("unexpected version output: %s", out.String())
	}
}

func TestRunCheck(t *testing.T) {
	var out bytes.Buffer
	code := Run([]string{"scovctl", "check"}, &out, &out, fakeService{})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
}

func TestRunCheckPolicyViolation(t *testing.T) {
	var out bytes.Buffer
	code := Run([]string{"scovctl", "check"}, &out, &out, fakeService{checkErr: application.ErrPolicyViolation})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestRunCheckRuntimeError(t *testing.T) {
	var out bytes.Buffer
	code := Run([]string{"scovctl", "check"}, &out, &out, fakeService{checkErr: errSentinel})
	if code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
}

func TestRunReportPassesFlags(t *testing.T) {
	var out bytes.Buffer
	var got application.ReportOptions
	code := Run([]string{"scovctl", "report", "--config", "custom.yaml", "--output-dir", "out", "-o", "brief", "--history", "h.json"},
		&out, &out, fakeService{lastReport: &got})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if got.ConfigPath != "custom.yaml" || got.OutputDir != "out" || got.Output != application.OutputBrief {
		t.Fatalf("unexpected options: %+v", got)
	}
	if got.HistoryStore == nil {
		t.Fatalf("expected history store")
	}
}

func TestRunReportWithoutHistory(t *testing.T) {
	var out bytes.Buffer
	var got application.ReportOptions
	code := Run([]string{"scovctl", "report"}, &out, &out, fakeService{lastReport: &got})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if got.HistoryStore != nil {
		t.Fatalf("expected no history store")
	}
	if got.ConfigPath != ".scovctl.yaml" || got.Output != application.OutputText {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}

func TestRunReportError(t *testing.T) {
	var out bytes.Buffer
	code := Run([]string{"scovctl", "report"}, &out, &out, fakeService{reportErr: errSentinel})
	if code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
}

func TestRunReportNoModulesWarns(t *testing.T) {
	for _, cmd := range []string{"report", "check"} {
		var out, errOut bytes.Buffer
		svc := fakeService{reportErr: application.ErrNoModules, checkErr: application.ErrNoModules}
		code := Run([]string{"scovctl", cmd}, &out, &errOut, svc)
		if code != 0 {
			t.Fatalf("%s: expected exit 0, got %d", cmd, code)
		}
		if !strings.Contains(errOut.String(), "warning: no modules to aggregate") {
			t.Fatalf("%s: unexpected stderr: %s", cmd, errOut.String())
		}
	}
}

func TestRunReportWatchError(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"scovctl", "report", "--watch"}, &out, &errOut, fakeService{watchErr: application.ErrNoModules})
	if code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
	if !strings.Contains(errOut.String(), "no modules") {
		t.Fatalf("unexpected stderr: %s", errOut.String())
	}
}

func TestRunCollectText(t *testing.T) {
	var out bytes.Buffer
	var dir string
	col := measurement.Collection{DataDir: "data", IDs: domain.NewCoverageSet(9, 3, 7)}
	code := Run([]string{"scovctl", "collect", "--dir", "data"}, &out, &out, fakeService{collection: col, lastCollected: &dir})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if dir != "data" {
		t.Fatalf("expected data dir, got %q", dir)
	}
	if out.String() != "3\n7\n9\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestRunCollectJSON(t *testing.T) {
	var out bytes.Buffer
	col := measurement.Collection{DataDir: "data", IDs: domain.NewCoverageSet(2, 1), Files: []string{"a"}, Skipped: 1}
	code := Run([]string{"scovctl", "collect", "--dir", "data", "-o", "json"}, &out, &out, fakeService{collection: col})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	got := out.String()
	for _, want := range []string{`"dataDir": "data"`, `"files": 1`, `"skipped": 1`} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %s in %s", want, got)
		}
	}
}

func TestRunCollectRequiresDir(t *testing.T) {
	var out bytes.Buffer
	code := Run([]string{"scovctl", "collect"}, &out, &out, fakeService{})
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestRunCollectError(t *testing.T) {
	var out bytes.Buffer
	code := Run([]string{"scovctl", "collect", "--dir", "data"}, &out, &out, fakeService{collectErr: errSentinel})
	if code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
}

func TestRunDiscoverPrintsConfig(t *testing.T) {
	var out bytes.Buffer
	var got application.DiscoverOptions
	code := Run([]string{"scovctl", "discover", "--root", "svc", "--exclude", "legacy/**", "--exclude", "tmp"},
		&out, &out, fakeService{discoverCfg: minimalConfig(), lastDiscover: &got})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if got.Root != "svc" || len(got.Exclude) != 2 || got.Exclude[0] != "legacy/**" {
		t.Fatalf("unexpected options: %+v", got)
	}
	if !strings.Contains(out.String(), "name: core") {
		t.Fatalf("expected yaml on stdout: %s", out.String())
	}
}

func TestRunDiscoverWriteConfig(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), ".scovctl.yaml")
	code := Run([]string{"scovctl", "discover", "--write-config", "--config", path}, &out, &out, fakeService{discoverCfg: minimalConfig()})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
}

func TestRunDiscoverExistingConfig(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), ".scovctl.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	code := Run([]string{"scovctl", "discover", "--write-config", "--config", path}, &out, &out, fakeService{discoverCfg: minimalConfig()})
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestRunDiscoverError(t *testing.T) {
	var out bytes.Buffer
	code := Run([]string{"scovctl", "discover"}, &out, &out, fakeService{discoverErr: errSentinel})
	if code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
}

func TestRunInitCreatesFile(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), ".scovctl.yaml")
	code := Run([]string{"scovctl", "init", "--config", path, "--no-interactive"}, &out, &out, fakeService{discoverCfg: minimalConfig()})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
}

func TestRunInitInteractiveBranch(t *testing.T) {
	old := initWizard
	defer func() { initWizard = old }()
	called := false
	initWizard = func(cfg application.Config, stdout io.Writer, stdin io.Reader) (application.Config, bool, error) {
		called = true
		return cfg, true, nil
	}
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), ".scovctl.yaml")
	code := Run([]string{"scovctl", "init", "--config", path}, &out, &out, fakeService{discoverCfg: minimalConfig()})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !called {
		t.Fatalf("expected interactive wizard to run")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
}

func TestRunInitInteractiveCanceled(t *testing.T) {
	old := initWizard
	defer func() { initWizard = old }()
	initWizard = func(cfg application.Config, stdout io.Writer, stdin io.Reader) (application.Config, bool, error) {
		return cfg, false, nil
	}
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), ".scovctl.yaml")
	code := Run([]string{"scovctl", "init", "--config", path}, &out, &out, fakeService{discoverCfg: minimalConfig()})
	if code != 0 {
		t.Fatalf("expected exit 0 when wizard cancels, got %d", code)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("config should not exist when wizard cancels")
	}
	if !strings.Contains(out.String(), "Init canceled") {
		t.Fatalf("expected cancellation message: %s", out.String())
	}
}

func TestRunInitWizardError(t *testing.T) {
	old := initWizard
	defer func() { initWizard = old }()
	initWizard = func(cfg application.Config, stdout io.Writer, stdin io.Reader) (application.Config, bool, error) {
		return cfg, false, errors.New("wizard failed")
	}
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), ".scovctl.yaml")
	code := Run([]string{"scovctl", "init", "--config", path}, &out, &out, fakeService{discoverCfg: minimalConfig()})
	if code != 5 {
		t.Fatalf("expected exit 5, got %d", code)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no config file when wizard errors")
	}
}

func TestRunHistoryText(t *testing.T) {
	var out bytes.Buffer
	overall := 75.0
	h := domain.History{Entries: []domain.HistoryEntry{
		{Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Executed: 12, Overall: &overall, Modules: map[string]domain.ModuleEntry{"core": {}}},
		{Timestamp: time.Date(2026, 1, 3, 3, 4, 5, 0, time.UTC), Executed: 4},
	}}
	code := Run([]string{"scovctl", "history", "--history", "h.json"}, &out, &out, fakeService{history: h})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	got := out.String()
	if !strings.Contains(got, "75.0%") || !strings.Contains(got, "Executed") {
		t.Fatalf("unexpected output: %s", got)
	}
	if !strings.Contains(got, "Trend: down (-8.0 statements)") {
		t.Fatalf("expected trend line: %q", got)
	}
}

func TestRunHistoryEmpty(t *testing.T) {
	var out bytes.Buffer
	code := Run([]string{"scovctl", "history"}, &out, &out, fakeService{})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out.String(), "No history") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestRunHistoryJSON(t *testing.T) {
	var out bytes.Buffer
	h := domain.History{Entries: []domain.HistoryEntry{{Executed: 3}}}
	code := Run([]string{"scovctl", "history", "-o", "json"}, &out, &out, fakeService{history: h})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out.String(), `"executed": 3`) {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestRunHistoryError(t *testing.T) {
	var out bytes.Buffer
	code := Run([]string{"scovctl", "history"}, &out, &out, fakeService{historyErr: errSentinel})
	if code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
}

func TestRunMCP(t *testing.T) {
	old := serveMCP
	defer func() { serveMCP = old }()
	var got mcp.Config
	serveMCP = func(_ context.Context, _ mcp.Service, cfg mcp.Config) error {
		got = cfg
		return nil
	}
	var out bytes.Buffer
	code := Run([]string{"scovctl", "mcp", "--config", "c.yaml", "--history", "h.json"}, &out, &out, fakeService{})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if got.ConfigPath != "c.yaml" || got.HistoryPath != "h.json" {
		t.Fatalf("unexpected mcp config: %+v", got)
	}
}

func TestRunMCPError(t *testing.T) {
	old := serveMCP
	defer func() { serveMCP = old }()
	serveMCP = func(context.Context, mcp.Service, mcp.Config) error { return errSentinel }
	var out bytes.Buffer
	code := Run([]string{"scovctl", "mcp"}, &out, &out, fakeService{})
	if code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
}

func TestBuildService(t *testing.T) {
	svc := BuildService(os.Stdout, NewLogger(io.Discard))
	if svc.ConfigLoader == nil || svc.Discoverer == nil || svc.Collector == nil || svc.Reporter == nil {
		t.Fatalf("expected all adapters to be wired")
	}
}
