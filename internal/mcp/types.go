// Package mcp exposes aggregation and collection to agents over the Model
// Context Protocol.
package mcp

import (
	"context"

	"github.com/felixgeelhaar/scovctl/internal/application"
	"github.com/felixgeelhaar/scovctl/internal/domain"
	"github.com/felixgeelhaar/scovctl/pkg/measurement"
)

// Service defines the application operations needed by MCP.
type Service interface {
	ReportResult(ctx context.Context, opts application.ReportOptions) (domain.Result, error)
	Record(ctx context.Context, opts application.ReportOptions, store application.HistoryStore) (domain.Result, error)
	Collect(ctx context.Context, opts application.CollectOptions) (measurement.Collection, error)
	ResolveConfig(ctx context.Context, configPath string) (application.Config, error)
	History(ctx context.Context, store application.HistoryStore) (domain.History, error)
}

// Config holds MCP server configuration.
type Config struct {
	ConfigPath  string
	HistoryPath string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() Config {
	return Config{
		ConfigPath:  ".scovctl.yaml",
		HistoryPath: ".scovctl/history.json",
	}
}

type ReportInput struct {
	ConfigPath string `json:"configPath,omitempty" jsonschema:"path to the .scovctl.yaml config file"`
}

type RecordInput struct {
	ConfigPath  string `json:"configPath,omitempty" jsonschema:"path to the .scovctl.yaml config file"`
	HistoryPath string `json:"historyPath,omitempty" jsonschema:"path to the history file"`
}

type CollectInput struct {
	DataDir string `json:"dataDir" jsonschema:"data directory holding scoverage.measurements.* files"`
}

// ToolOutput is returned by report and record.
type ToolOutput struct {
	Passed   bool                  `json:"passed"`
	Summary  string                `json:"summary,omitempty"`
	Modules  []domain.ModuleResult `json:"modules,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// CollectOutput lists the distinct executed statements of one directory.
type CollectOutput struct {
	DataDir    string               `json:"dataDir"`
	IDs        []domain.StatementID `json:"ids"`
	Files      int                  `json:"files"`
	Skipped    int                  `json:"skipped,omitempty"`
	Duplicates int                  `json:"duplicates,omitempty"`
	Error      string               `json:"error,omitempty"`
}

func coalesce(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
