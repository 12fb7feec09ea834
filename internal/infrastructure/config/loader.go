package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/scovctl/internal/application"
	"github.com/felixgeelhaar/scovctl/internal/domain"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".scovctl.yaml"

type Loader struct{}

type fileConfig struct {
	Version  int          `yaml:"version"`
	Output   string       `yaml:"output,omitempty"`
	Discover fileDiscover `yaml:"discover,omitempty"`
	Policy   filePolicy   `yaml:"policy"`
	Modules  []fileModule `yaml:"modules,omitempty"`
	Log      fileLog      `yaml:"log,omitempty"`
}

type fileDiscover struct {
	Root    string   `yaml:"root,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

type filePolicy struct {
	Default fileDefault `yaml:"default"`
}

type fileDefault struct {
	Min float64 `yaml:"min"`
}

type fileModule struct {
	Name       string   `yaml:"name"`
	DataDir    string   `yaml:"dataDir"`
	Statements int      `yaml:"statements,omitempty"`
	Min        *float64 `yaml:"min,omitempty"`
	Aggregator bool     `yaml:"aggregator,omitempty"`
}

type fileLog struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// envOverrides are read from the environment after the file and win over it.
type envOverrides struct {
	OutputDir string `env:"SCOVCTL_OUTPUT_DIR"`
	LogLevel  string `env:"SCOVCTL_LOG_LEVEL"`
	LogFormat string `env:"SCOVCTL_LOG_FORMAT"`
}

func (l Loader) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (l Loader) Load(path string) (application.Config, error) {
	// #nosec G304 -- config path is chosen by the user
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return application.Config{}, fmt.Errorf("%s: %w", path, application.ErrConfigNotFound)
		}
		return application.Config{}, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return application.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := validate(fc); err != nil {
		return application.Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	cfg := application.Config{
		Version:   fc.Version,
		OutputDir: fc.Output,
		Discover: application.DiscoverConfig{
			Root:    fc.Discover.Root,
			Exclude: fc.Discover.Exclude,
		},
		Policy:  domain.Policy{DefaultMin: fc.Policy.Default.Min},
		Modules: make([]domain.Module, 0, len(fc.Modules)),
		Log:     application.LogConfig{Level: fc.Log.Level, Format: fc.Log.Format},
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Discover.Root == "" {
		cfg.Discover.Root = "."
	}
	for _, m := range fc.Modules {
		cfg.Modules = append(cfg.Modules, domain.Module{
			Name:       m.Name,
			DataDir:    m.DataDir,
			Statements: m.Statements,
			Min:        m.Min,
			Aggregator: m.Aggregator,
		})
	}

	if err := ApplyEnv(&cfg); err != nil {
		return application.Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays SCOVCTL_* environment variables onto cfg.
func ApplyEnv(cfg *application.Config) error {
	var env envOverrides
	if err := cleanenv.ReadEnv(&env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	if env.OutputDir != "" {
		cfg.OutputDir = env.OutputDir
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		cfg.Log.Format = env.LogFormat
	}
	return nil
}

func validate(fc fileConfig) error {
	if fc.Version != 0 && fc.Version != 1 {
		return fmt.Errorf("unsupported version %d", fc.Version)
	}
	if err := checkMin("policy.default.min", &fc.Policy.Default.Min); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(fc.Modules))
	for i, m := range fc.Modules {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("modules[%d]: name is required", i)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("modules[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = struct{}{}
		if m.DataDir == "" && !m.Aggregator {
			return fmt.Errorf("module %s: dataDir is required", m.Name)
		}
		if m.Statements < 0 {
			return fmt.Errorf("module %s: statements must not be negative", m.Name)
		}
		if err := checkMin("module "+m.Name+" min", m.Min); err != nil {
			return err
		}
	}
	return nil
}

func checkMin(field string, v *float64) error {
	if v != nil && (*v < 0 || *v > 100) {
		return fmt.Errorf("%s must be between 0 and 100, got %v", field, *v)
	}
	return nil
}

func Write(w io.Writer, cfg application.Config) error {
	out := fileConfig{
		Version: cfg.Version,
		Output:  cfg.OutputDir,
		Discover: fileDiscover{
			Root:    cfg.Discover.Root,
			Exclude: cfg.Discover.Exclude,
		},
		Policy:  filePolicy{Default: fileDefault{Min: cfg.Policy.DefaultMin}},
		Modules: make([]fileModule, 0, len(cfg.Modules)),
		Log:     fileLog{Level: cfg.Log.Level, Format: cfg.Log.Format},
	}
	if out.Version == 0 {
		out.Version = 1
	}
	for _, m := range cfg.Modules {
		out.Modules = append(out.Modules, fileModule{
			Name:       m.Name,
			DataDir:    m.DataDir,
			Statements: m.Statements,
			Min:        m.Min,
			Aggregator: m.Aggregator,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return enc.Encode(out)
}
