package application

import (
	"context"
	"errors"
	"io"

	"github.com/felixgeelhaar/scovctl/internal/domain"
	"github.com/felixgeelhaar/scovctl/pkg/measurement"
)

type OutputFormat string

const (
	OutputText  OutputFormat = "text"
	OutputJSON  OutputFormat = "json"
	OutputHTML  OutputFormat = "html"
	OutputBrief OutputFormat = "brief"
	OutputBadge OutputFormat = "badge"
)

var (
	ErrConfigNotFound  = errors.New("config not found")
	ErrNoModules       = errors.New("no modules to aggregate")
	ErrPolicyViolation = errors.New("policy violation")
)

// Config represents validated, application-ready configuration.
type Config struct {
	Version   int             `json:"version"`
	OutputDir string          `json:"output,omitempty"`
	Discover  DiscoverConfig  `json:"discover"`
	Policy    domain.Policy   `json:"policy"`
	Modules   []domain.Module `json:"modules"`
	Log       LogConfig       `json:"log"`
}

type DiscoverConfig struct {
	Root    string   `json:"root"`
	Exclude []string `json:"exclude,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

type ConfigLoader interface {
	Load(path string) (Config, error)
	Exists(path string) (bool, error)
}

// Discoverer finds data directories holding measurement files.
type Discoverer interface {
	Discover(ctx context.Context, cfg DiscoverConfig) ([]domain.Module, error)
}

// MeasurementCollector reads data directories back into coverage sets.
type MeasurementCollector interface {
	CollectStats(dataDir string) (measurement.Collection, error)
	CollectAll(ctx context.Context, dirs []string) ([]measurement.Collection, error)
}

type Reporter interface {
	Write(w io.Writer, result domain.Result, format OutputFormat) error
}

type HistoryStore interface {
	Load() (domain.History, error)
	Append(entry domain.HistoryEntry) error
}

// FileWatcher signals changes to measurement files.
type FileWatcher interface {
	WatchDir(dir string) error
	Events(ctx context.Context) <-chan struct{}
}

// WatchCallback is called after each aggregation run in watch mode.
type WatchCallback func(runNumber int, result domain.Result, err error)
