package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/felixgeelhaar/scovctl/internal/application"
	"github.com/felixgeelhaar/scovctl/internal/domain"
	"github.com/felixgeelhaar/scovctl/internal/infrastructure/config"
	"github.com/felixgeelhaar/scovctl/internal/infrastructure/discovery"
	"github.com/felixgeelhaar/scovctl/internal/infrastructure/history"
	"github.com/felixgeelhaar/scovctl/internal/infrastructure/logging"
	"github.com/felixgeelhaar/scovctl/internal/infrastructure/report"
	"github.com/felixgeelhaar/scovctl/internal/infrastructure/watcher"
	"github.com/felixgeelhaar/scovctl/internal/infrastructure/wizard"
	"github.com/felixgeelhaar/scovctl/internal/mcp"
	"github.com/felixgeelhaar/scovctl/internal/pathutil"
	"github.com/felixgeelhaar/scovctl/pkg/measurement"
)

type Service interface {
	mcp.Service
	Check(ctx context.Context, opts application.CheckOptions) error
	Report(ctx context.Context, opts application.ReportOptions) error
	Discover(ctx context.Context, opts application.DiscoverOptions) (application.Config, error)
	Watch(ctx context.Context, opts application.WatchOptions, watcher application.FileWatcher, callback application.WatchCallback) error
}

var (
	initWizard = wizard.Run
	serveMCP   = func(ctx context.Context, svc mcp.Service, cfg mcp.Config) error {
		return mcp.New(svc, cfg, Version).Run(ctx)
	}
)

func Run(args []string, stdout, stderr io.Writer, svc Service) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	ctx := context.Background()

	switch args[1] {
	case "collect":
		fs := newFlagSet("collect", stderr)
		dir := fs.String("dir", "", "Data directory holding measurement files")
		output := outputFlags(fs)
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		if *dir == "" {
			fmt.Fprintln(stderr, "collect: --dir is required")
			return 2
		}
		if _, err := pathutil.ValidatePath(*dir); err != nil {
			return exitCode(err, 2, stderr)
		}
		col, err := svc.Collect(ctx, application.CollectOptions{DataDir: *dir})
		if err != nil {
			return exitCode(err, 3, stderr)
		}
		return exitCode(printCollection(col, stdout, *output), 3, stderr)
	case "report":
		fs := newFlagSet("report", stderr)
		opts := reportFlags(fs)
		watch := fs.Bool("watch", false, "Re-run the report whenever measurement files change")
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		if *watch {
			return runWatch(ctx, stdout, stderr, svc, opts.options())
		}
		err := svc.Report(ctx, opts.options())
		if errors.Is(err, application.ErrNoModules) {
			return warnNoModules(err, stderr)
		}
		return exitCode(err, 3, stderr)
	case "check":
		fs := newFlagSet("check", stderr)
		opts := reportFlags(fs)
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		err := svc.Check(ctx, application.CheckOptions(opts.options()))
		if errors.Is(err, application.ErrPolicyViolation) {
			return exitCode(err, 1, stderr)
		}
		if errors.Is(err, application.ErrNoModules) {
			return warnNoModules(err, stderr)
		}
		return exitCode(err, 3, stderr)
	case "discover":
		fs := newFlagSet("discover", stderr)
		root := fs.String("root", ".", "Directory to search for data directories")
		var excludes patternList
		fs.Var(&excludes, "exclude", "Glob of directories to skip (repeatable)")
		writeConfig := fs.Bool("write-config", false, "Write discovered config to .scovctl.yaml")
		configPath := fs.String("config", config.DefaultPath, "Config file path")
		force := fs.Bool("force", false, "Overwrite config if it exists")
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		cfg, err := svc.Discover(ctx, application.DiscoverOptions{Root: *root, Exclude: excludes})
		if err != nil {
			return exitCode(err, 3, stderr)
		}
		path := "-"
		if *writeConfig {
			path = *configPath
		}
		if err := writeConfigFile(path, cfg, stdout, *force); err != nil {
			return exitCode(err, 2, stderr)
		}
		return 0
	case "init":
		fs := newFlagSet("init", stderr)
		configPath := fs.String("config", config.DefaultPath, "Config file path")
		root := fs.String("root", ".", "Directory to search for data directories")
		force := fs.Bool("force", false, "Overwrite existing config file")
		noInteractive := fs.Bool("no-interactive", false, "Skip the interactive init wizard")
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		cfg, err := svc.Discover(ctx, application.DiscoverOptions{Root: *root})
		if err != nil {
			return exitCode(err, 3, stderr)
		}
		if len(cfg.Modules) == 0 {
			fmt.Fprintln(stdout, "No data directories found yet; writing a config without modules.")
		}
		if !*noInteractive {
			var confirmed bool
			cfg, confirmed, err = initWizard(cfg, stdout, os.Stdin)
			if err != nil {
				return exitCode(err, 5, stderr)
			}
			if !confirmed {
				fmt.Fprintln(stdout, "Init canceled; no configuration written.")
				return 0
			}
		}
		if err := writeConfigFile(*configPath, cfg, stdout, *force); err != nil {
			return exitCode(err, 2, stderr)
		}
		fmt.Fprintf(stdout, "Config written to %s\n", *configPath)
		return 0
	case "history":
		fs := newFlagSet("history", stderr)
		historyPath := fs.String("history", history.DefaultPath, "History file path")
		output := outputFlags(fs)
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		h, err := svc.History(ctx, &history.FileStore{Path: *historyPath})
		if err != nil {
			return exitCode(err, 3, stderr)
		}
		return exitCode(printHistory(h, stdout, *output), 3, stderr)
	case "mcp":
		fs := newFlagSet("mcp", stderr)
		configPath := fs.String("config", config.DefaultPath, "Config file path")
		historyPath := fs.String("history", history.DefaultPath, "History file path")
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		err := serveMCP(ctx, svc, mcp.Config{ConfigPath: *configPath, HistoryPath: *historyPath})
		if err != nil && ctx.Err() != nil {
			return 0
		}
		return exitCode(err, 3, stderr)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "scovctl %s (commit %s, built %s)\n", Version, Commit, Date)
		return 0
	case "help", "--help", "-h":
		usage(stdout)
		return 0
	default:
		usage(stderr)
		return 2
	}
}

// BuildService wires the production adapters.
func BuildService(out *os.File, logger *slog.Logger) *application.Service {
	return &application.Service{
		ConfigLoader: config.Loader{},
		Discoverer:   discovery.Walker{Logger: logger},
		Collector:    measurement.Collector{Logger: logger},
		Reporter:     report.Writer{},
		Logger:       logger,
		Out:          out,
	}
}

// NewLogger builds the process logger from the log section of the default
// config file and the environment. Pass stderr: stdout carries reports and
// the MCP stream.
func NewLogger(w io.Writer) *slog.Logger {
	var cfg application.Config
	loader := config.Loader{}
	if ok, err := loader.Exists(config.DefaultPath); err == nil && ok {
		if loaded, err := loader.Load(config.DefaultPath); err == nil {
			cfg = loaded
		}
	}
	_ = config.ApplyEnv(&cfg)
	return logging.New(w, cfg.Log.Level, logging.Format(cfg.Log.Format))
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

type reportFlagValues struct {
	configPath  *string
	outputDir   *string
	output      *application.OutputFormat
	historyPath *string
}

func reportFlags(fs *flag.FlagSet) reportFlagValues {
	return reportFlagValues{
		configPath:  fs.String("config", config.DefaultPath, "Config file path"),
		outputDir:   fs.String("output-dir", "", "Directory for index.html, badge.svg and measurements.json"),
		output:      outputFlags(fs),
		historyPath: fs.String("history", "", "History file for deltas; the run is recorded there"),
	}
}

func (v reportFlagValues) options() application.ReportOptions {
	opts := application.ReportOptions{
		ConfigPath: *v.configPath,
		OutputDir:  *v.outputDir,
		Output:     *v.output,
	}
	if *v.historyPath != "" {
		opts.HistoryStore = &history.FileStore{Path: *v.historyPath}
	}
	return opts
}

func outputFlags(fs *flag.FlagSet) *application.OutputFormat {
	output := application.OutputText
	fs.Var((*outputValue)(&output), "output", "Output format: text|json|html|brief|badge")
	fs.Var((*outputValue)(&output), "o", "Output format: text|json|html|brief|badge")
	return &output
}

type outputValue application.OutputFormat

func (o *outputValue) String() string { return string(*o) }

func (o *outputValue) Set(value string) error {
	switch application.OutputFormat(value) {
	case application.OutputText, application.OutputJSON, application.OutputHTML, application.OutputBrief, application.OutputBadge:
		*o = outputValue(value)
		return nil
	default:
		return fmt.Errorf("invalid output format: %s", value)
	}
}

type patternList []string

func (p *patternList) String() string { return strings.Join(*p, ",") }

func (p *patternList) Set(value string) error {
	*p = append(*p, value)
	return nil
}

func writeConfigFile(path string, cfg application.Config, stdout io.Writer, force bool) error {
	if path == "-" {
		return config.Write(stdout, cfg)
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists (use --force to overwrite)", path)
		}
	}
	// #nosec G304 -- path comes from a CLI flag
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := config.Write(file, cfg); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func printCollection(col measurement.Collection, w io.Writer, format application.OutputFormat) error {
	if format == application.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			DataDir    string              `json:"dataDir"`
			IDs        *domain.CoverageSet `json:"ids"`
			Files      int                 `json:"files"`
			Skipped    int                 `json:"skipped"`
			Duplicates int                 `json:"duplicates"`
		}{col.DataDir, col.IDs, len(col.Files), col.Skipped, col.Duplicates})
	}
	var err error
	col.IDs.Ascend(func(id domain.StatementID) bool {
		_, err = fmt.Fprintln(w, id)
		return err == nil
	})
	return err
}

func printHistory(h domain.History, w io.Writer, format application.OutputFormat) error {
	if format == application.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	}
	if len(h.Entries) == 0 {
		_, err := fmt.Fprintln(w, "No history recorded yet.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Recorded\tExecuted\tOverall\tModules")
	for _, e := range h.Entries {
		overall := "-"
		if e.Overall != nil {
			overall = fmt.Sprintf("%.1f%%", *e.Overall)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\n", e.Timestamp.Local().Format(time.DateTime), e.Executed, overall, len(e.Modules))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if trend, ok := h.Trend(); ok {
		unit := " statements"
		if trend.Percent {
			unit = "%"
		}
		_, err := fmt.Fprintf(w, "\nTrend: %s (%+.1f%s)\n", trend.Direction, trend.Delta, unit)
		return err
	}
	return nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `scovctl <command>

Commands:
  collect   Print the statement ids recorded in one data directory
  report    Aggregate all modules and render a report
  check     Report and enforce the coverage policy
  discover  Find data directories (use --write-config to save)
  init      Run discovery plus the interactive wizard
  history   Show recorded runs
  mcp       Serve the MCP tools over stdio
  version   Print version information`)
}

func exitCode(err error, code int, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(stderr, err)
	return code
}

// warnNoModules reports an empty aggregation. Having nothing to report is
// not a failure, so the command still succeeds.
func warnNoModules(err error, stderr io.Writer) int {
	fmt.Fprintf(stderr, "warning: %v, nothing to report\n", err)
	return 0
}

func runWatch(ctx context.Context, stdout, stderr io.Writer, svc Service, opts application.ReportOptions) int {
	w, err := watcher.New(watcher.WithDebounce(watcher.DefaultDebounce))
	if err != nil {
		fmt.Fprintf(stderr, "failed to create watcher: %v\n", err)
		return 3
	}
	defer w.Close()

	// Ctrl+C ends watch mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(stdout, "\nStopping watch mode...")
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintln(stdout, "Watching data directories... (Ctrl+C to stop)")
	fmt.Fprintln(stdout, "")

	callback := func(runNumber int, result domain.Result, runErr error) {
		fmt.Fprintf(stdout, "\n--- Run #%d at %s ---\n", runNumber, time.Now().Format("15:04:05"))
		switch {
		case runErr != nil:
			fmt.Fprintf(stderr, "Aggregation failed: %v\n", runErr)
		case !result.Passed:
			fmt.Fprintln(stdout, "Coverage policy violated")
		}
	}

	if err := svc.Watch(ctx, application.WatchOptions{Report: opts}, w, callback); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintf(stderr, "watch error: %v\n", err)
		return 3
	}
	return 0
}
