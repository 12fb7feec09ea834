package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/felixgeelhaar/scovctl/internal/infrastructure/history"
)

func (s *Server) handleConfigResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	cfg, err := s.svc.ResolveConfig(ctx, s.config.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config: %w", err)
	}
	return jsonResource(req.Params.URI, cfg)
}

func (s *Server) handleHistoryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	h, err := s.svc.History(ctx, &history.FileStore{Path: s.config.HistoryPath})
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return jsonResource(req.Params.URI, h)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
