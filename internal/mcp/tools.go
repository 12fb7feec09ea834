package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/felixgeelhaar/scovctl/internal/application"
	"github.com/felixgeelhaar/scovctl/internal/domain"
	"github.com/felixgeelhaar/scovctl/internal/infrastructure/history"
)

func (s *Server) handleReport(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ReportInput,
) (*mcp.CallToolResult, ToolOutput, error) {
	result, err := s.svc.ReportResult(ctx, application.ReportOptions{
		ConfigPath: coalesce(input.ConfigPath, s.config.ConfigPath),
		Output:     application.OutputJSON,
	})
	return nil, toolOutput(result, err), nil
}

func (s *Server) handleRecord(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RecordInput,
) (*mcp.CallToolResult, ToolOutput, error) {
	store := &history.FileStore{Path: coalesce(input.HistoryPath, s.config.HistoryPath)}
	result, err := s.svc.Record(ctx, application.ReportOptions{
		ConfigPath: coalesce(input.ConfigPath, s.config.ConfigPath),
	}, store)
	out := toolOutput(result, err)
	if err == nil {
		out.Summary += " | recorded to " + store.Path
	}
	return nil, out, nil
}

func (s *Server) handleCollect(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CollectInput,
) (*mcp.CallToolResult, CollectOutput, error) {
	out := CollectOutput{DataDir: input.DataDir, IDs: []domain.StatementID{}}
	if input.DataDir == "" {
		out.Error = "dataDir is required"
		return nil, out, nil
	}
	col, err := s.svc.Collect(ctx, application.CollectOptions{DataDir: input.DataDir})
	if err != nil {
		out.Error = err.Error()
		return nil, out, nil
	}
	out.IDs = col.IDs.IDs()
	out.Files = len(col.Files)
	out.Skipped = col.Skipped
	out.Duplicates = col.Duplicates
	return nil, out, nil
}

func toolOutput(result domain.Result, err error) ToolOutput {
	out := ToolOutput{
		Passed:   result.Passed,
		Modules:  result.Modules,
		Warnings: result.Warnings,
		Summary:  generateSummary(result),
	}
	if err != nil {
		out.Passed = false
		out.Error = err.Error()
	}
	return out
}

// generateSummary creates a one-line summary from the result.
func generateSummary(result domain.Result) string {
	if len(result.Modules) == 0 {
		return "No modules found"
	}

	passing := 0
	for _, m := range result.Modules {
		if !m.IsFailing() {
			passing++
		}
	}

	status := "FAIL"
	if result.Passed {
		status = "PASS"
	}
	summary := fmt.Sprintf("%s | %d statements executed", status, result.Executed())
	if overall, ok := result.OverallPercent(); ok {
		summary += fmt.Sprintf(" | %.1f%% overall", overall)
	}
	return summary + fmt.Sprintf(" | %d/%d modules passing", passing, len(result.Modules))
}
