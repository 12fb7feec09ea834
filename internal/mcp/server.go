package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the application service with MCP protocol handling.
type Server struct {
	svc    Service
	config Config
	server *mcp.Server
}

// New creates a server with all tools and resources registered.
func New(svc Service, cfg Config, version string) *Server {
	defaults := DefaultConfig()
	cfg.ConfigPath = coalesce(cfg.ConfigPath, defaults.ConfigPath)
	cfg.HistoryPath = coalesce(cfg.HistoryPath, defaults.HistoryPath)

	s := &Server{svc: svc, config: cfg}
	s.server = mcp.NewServer(&mcp.Implementation{Name: "scovctl", Version: version}, nil)
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves over stdio and blocks until the context is canceled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "report",
		Description: "Aggregate statement measurements for every module and evaluate the coverage policy. Read-only.",
	}, s.handleReport)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "record",
		Description: "Aggregate like report and append the run to the history file for deltas and trends.",
	}, s.handleRecord)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "collect",
		Description: "Read one data directory and return the sorted distinct statement ids executed.",
	}, s.handleCollect)
}

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         "scovctl://config",
		Name:        "Effective Configuration",
		Description: "The loaded .scovctl.yaml, or discovered modules when there is none",
		MIMEType:    "application/json",
	}, s.handleConfigResource)

	s.server.AddResource(&mcp.Resource{
		URI:         "scovctl://history",
		Name:        "Aggregate History",
		Description: "Recorded aggregate runs, oldest first",
		MIMEType:    "application/json",
	}, s.handleHistoryResource)
}
