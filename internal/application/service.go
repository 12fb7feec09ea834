package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/scovctl/internal/domain"
	"github.com/felixgeelhaar/scovctl/pkg/measurement"
)

// Artifact names written into the report output directory.
const (
	ReportFileName       = "index.html"
	BadgeFileName        = "badge.svg"
	MeasurementsFileName = "measurements.json"
)

type Service struct {
	ConfigLoader ConfigLoader
	Discoverer   Discoverer
	Collector    MeasurementCollector
	Reporter     Reporter
	Logger       *slog.Logger
	Out          io.Writer
	Now          func() time.Time
}

type CollectOptions struct {
	DataDir string
}

type ReportOptions struct {
	ConfigPath string
	// OutputDir overrides the configured output directory. Empty with no
	// configured directory means no artifacts are written.
	OutputDir string
	Output    OutputFormat
	// HistoryStore, when set, adds deltas against the previous run and
	// records this run.
	HistoryStore HistoryStore
}

type CheckOptions struct {
	ConfigPath   string
	OutputDir    string
	Output       OutputFormat
	HistoryStore HistoryStore
}

type DiscoverOptions struct {
	Root    string
	Exclude []string
}

type WatchOptions struct {
	Report ReportOptions
}

// Aggregate is one collected and evaluated run.
type Aggregate struct {
	Config   Config
	Coverage []domain.ModuleCoverage
	Result   domain.Result
}

// Collect reads a single data directory.
func (s *Service) Collect(ctx context.Context, opts CollectOptions) (measurement.Collection, error) {
	if err := ctx.Err(); err != nil {
		return measurement.Collection{}, err
	}
	return s.Collector.CollectStats(opts.DataDir)
}

// Discover finds data directories under the root and returns a config
// listing them as modules.
func (s *Service) Discover(ctx context.Context, opts DiscoverOptions) (Config, error) {
	cfg := Config{
		Version:  1,
		Discover: DiscoverConfig{Root: opts.Root, Exclude: opts.Exclude},
	}
	if cfg.Discover.Root == "" {
		cfg.Discover.Root = "."
	}
	modules, err := s.Discoverer.Discover(ctx, cfg.Discover)
	if err != nil {
		return Config{}, err
	}
	cfg.Modules = modules
	return cfg, nil
}

// Report aggregates all modules, writes the report to Out and, when an
// output directory is known, the report artifacts.
func (s *Service) Report(ctx context.Context, opts ReportOptions) error {
	_, err := s.report(ctx, opts)
	return err
}

// ReportResult aggregates and evaluates without writing anything.
func (s *Service) ReportResult(ctx context.Context, opts ReportOptions) (domain.Result, error) {
	agg, err := s.Aggregate(ctx, opts)
	if err != nil {
		return domain.Result{}, err
	}
	return agg.Result, nil
}

// Check is Report followed by policy enforcement.
func (s *Service) Check(ctx context.Context, opts CheckOptions) error {
	result, err := s.report(ctx, ReportOptions(opts))
	if err != nil {
		return err
	}
	if !result.Passed {
		return ErrPolicyViolation
	}
	return nil
}

// Record aggregates without console output and appends the run to store.
func (s *Service) Record(ctx context.Context, opts ReportOptions, store HistoryStore) (domain.Result, error) {
	opts.HistoryStore = store
	agg, err := s.Aggregate(ctx, opts)
	if err != nil {
		return domain.Result{}, err
	}
	if err := store.Append(domain.NewHistoryEntry(agg.Result, s.now())); err != nil {
		return domain.Result{}, fmt.Errorf("record history: %w", err)
	}
	return agg.Result, nil
}

// ResolveConfig returns the effective config: the file when present, with
// discovered modules filling in when it lists none.
func (s *Service) ResolveConfig(ctx context.Context, configPath string) (Config, error) {
	cfg, modules, err := s.loadOrDiscover(ctx, configPath)
	if err != nil {
		return Config{}, err
	}
	cfg.Modules = modules
	return cfg, nil
}

// History returns the recorded runs.
func (s *Service) History(_ context.Context, store HistoryStore) (domain.History, error) {
	return store.Load()
}

// Watch reports once, then again every time a measurement file changes,
// until ctx is done.
func (s *Service) Watch(ctx context.Context, opts WatchOptions, watcher FileWatcher, callback WatchCallback) error {
	_, modules, err := s.loadOrDiscover(ctx, opts.Report.ConfigPath)
	if err != nil {
		return err
	}
	watched := 0
	for _, m := range modules {
		if m.Aggregator {
			continue
		}
		if err := watcher.WatchDir(m.DataDir); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger().Warn("data directory does not exist yet", slog.String("module", m.Name), slog.String("dataDir", m.DataDir))
				continue
			}
			return fmt.Errorf("watch %s: %w", m.DataDir, err)
		}
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("watch: %w", ErrNoModules)
	}

	runNumber := 1
	result, runErr := s.report(ctx, opts.Report)
	if callback != nil {
		callback(runNumber, result, runErr)
	}

	events := watcher.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			runNumber++
			result, runErr := s.report(ctx, opts.Report)
			if callback != nil {
				callback(runNumber, result, runErr)
			}
		}
	}
}

// Aggregate loads the module list, collects every module and evaluates
// the policy.
func (s *Service) Aggregate(ctx context.Context, opts ReportOptions) (Aggregate, error) {
	cfg, modules, err := s.loadOrDiscover(ctx, opts.ConfigPath)
	if err != nil {
		return Aggregate{}, err
	}
	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}

	coverage, err := s.collectModules(ctx, modules)
	if err != nil {
		return Aggregate{}, err
	}

	result := domain.Evaluate(cfg.Policy, coverage)
	for _, c := range coverage {
		if c.Files == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("module %s has no measurement data in %s", c.Module.Name, c.Module.DataDir))
		}
	}
	if opts.HistoryStore != nil {
		history, err := opts.HistoryStore.Load()
		if err != nil {
			return Aggregate{}, fmt.Errorf("load history: %w", err)
		}
		result.ApplyDeltas(history)
	}
	return Aggregate{Config: cfg, Coverage: coverage, Result: result}, nil
}

func (s *Service) report(ctx context.Context, opts ReportOptions) (domain.Result, error) {
	agg, err := s.Aggregate(ctx, opts)
	if err != nil {
		return domain.Result{}, err
	}

	if err := s.Reporter.Write(s.Out, agg.Result, opts.Output); err != nil {
		return domain.Result{}, err
	}
	if agg.Config.OutputDir != "" {
		if err := s.writeArtifacts(agg.Config.OutputDir, agg); err != nil {
			return domain.Result{}, err
		}
	}
	if opts.HistoryStore != nil {
		if err := opts.HistoryStore.Append(domain.NewHistoryEntry(agg.Result, s.now())); err != nil {
			return domain.Result{}, fmt.Errorf("record history: %w", err)
		}
	}
	return agg.Result, nil
}

// loadOrDiscover returns the configured modules, or discovered ones when no
// config exists or it lists none. Relative data directories in a config
// file are resolved against the file's directory.
func (s *Service) loadOrDiscover(ctx context.Context, configPath string) (Config, []domain.Module, error) {
	cfg := Config{Discover: DiscoverConfig{Root: "."}}
	fromFile := false
	if configPath != "" {
		exists, err := s.ConfigLoader.Exists(configPath)
		if err != nil {
			return Config{}, nil, err
		}
		if exists {
			cfg, err = s.ConfigLoader.Load(configPath)
			if err != nil {
				return Config{}, nil, err
			}
			fromFile = true
		}
	}

	modules := cfg.Modules
	if fromFile {
		base := filepath.Dir(configPath)
		modules = make([]domain.Module, len(cfg.Modules))
		for i, m := range cfg.Modules {
			if m.DataDir != "" && !filepath.IsAbs(m.DataDir) {
				m.DataDir = filepath.Join(base, m.DataDir)
			}
			modules[i] = m
		}
	}

	if len(modules) == 0 {
		s.logger().Debug("discovering data directories", slog.String("root", cfg.Discover.Root))
		discovered, err := s.Discoverer.Discover(ctx, cfg.Discover)
		if err != nil {
			return Config{}, nil, fmt.Errorf("discover: %w", err)
		}
		modules = discovered
	}
	if len(modules) == 0 {
		return Config{}, nil, ErrNoModules
	}
	return cfg, modules, nil
}

func (s *Service) collectModules(ctx context.Context, modules []domain.Module) ([]domain.ModuleCoverage, error) {
	selected := make([]domain.Module, 0, len(modules))
	dirs := make([]string, 0, len(modules))
	for _, m := range modules {
		if m.Aggregator {
			s.logger().Debug("skipping aggregator module", slog.String("module", m.Name))
			continue
		}
		selected = append(selected, m)
		dirs = append(dirs, m.DataDir)
	}
	if len(selected) == 0 {
		return nil, ErrNoModules
	}

	collections, err := s.Collector.CollectAll(ctx, dirs)
	if err != nil {
		return nil, fmt.Errorf("collect measurements: %w", err)
	}

	coverage := make([]domain.ModuleCoverage, len(selected))
	for i, col := range collections {
		coverage[i] = domain.ModuleCoverage{
			Module:     selected[i],
			Executed:   col.IDs,
			Files:      len(col.Files),
			Lines:      col.Lines,
			Skipped:    col.Skipped,
			Duplicates: col.Duplicates,
		}
		s.logger().Info("collected module",
			slog.String("module", selected[i].Name),
			slog.String("dataDir", selected[i].DataDir),
			slog.Int("files", len(col.Files)),
			slog.Int("statements", col.IDs.Len()))
	}
	return coverage, nil
}

func (s *Service) writeArtifacts(outputDir string, agg Aggregate) error {
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	reportPath := filepath.Join(outputDir, ReportFileName)
	if err := s.writeArtifact(reportPath, agg.Result, OutputHTML); err != nil {
		return err
	}
	if err := s.writeArtifact(filepath.Join(outputDir, BadgeFileName), agg.Result, OutputBadge); err != nil {
		return err
	}

	ids := make(map[string]*domain.CoverageSet, len(agg.Coverage))
	for _, c := range agg.Coverage {
		ids[c.Module.Name] = c.Executed
	}
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outputDir, MeasurementsFileName), data, 0o600); err != nil {
		return fmt.Errorf("write measurements: %w", err)
	}
	s.logger().Info("report written", slog.String("path", reportPath))
	return nil
}

func (s *Service) writeArtifact(path string, result domain.Result, format OutputFormat) error {
	// #nosec G304 -- output path comes from trusted config or flags
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := s.Reporter.Write(file, result, format); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
