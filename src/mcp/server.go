// Package mcp exposes read-only verifier lookups as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"gerrit-verifier/src/display"
	"gerrit-verifier/src/logger"
	"gerrit-verifier/src/review"
	"gerrit-verifier/src/store"
)

// Server is the MCP server for the verifier.
type Server struct {
	mcpServer   *server.MCPServer
	store       store.Store
	resolver    *display.Resolver
	eligibility *display.Eligibility
	logger      logger.Logger
}

// BuildChange is the get_build_change response.
type BuildChange struct {
	PlanResultKey string        `json:"plan_result_key"`
	Found         bool          `json:"found"`
	Change        review.Change `json:"change"`
}

// PlanEligibility is the is_gerrit_plan response.
type PlanEligibility struct {
	PlanKey  string `json:"plan_key"`
	Eligible bool   `json:"eligible"`
}

// NewServer creates a new MCP server.
func NewServer(st store.Store, resolver *display.Resolver, eligibility *display.Eligibility, log logger.Logger) *Server {
	s := server.NewMCPServer(
		"gerrit-verifier",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer:   s,
		store:       st,
		resolver:    resolver,
		eligibility: eligibility,
		logger:      log,
	}
	srv.registerTools()

	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	changeTool := mcp.NewTool("get_build_change",
		mcp.WithDescription("Get the Gerrit change a build result was built from. Returns found=false with an empty change when the build has no Gerrit revision or the change cannot be retrieved."),
		mcp.WithString("plan_result_key",
			mcp.Required(),
			mcp.Description("Build result key, e.g. PROJ-PLAN-42"),
		),
	)

	eligibleTool := mcp.NewTool("is_gerrit_plan",
		mcp.WithDescription("Check whether a plan's default repository is a Gerrit repository. Job keys inherit from their parent plan."),
		mcp.WithString("plan_key",
			mcp.Required(),
			mcp.Description("Plan or job key, e.g. PROJ-PLAN or PROJ-PLAN-JOB1"),
		),
	)

	reportTool := mcp.NewTool("get_verification_report",
		mcp.WithDescription("Get the verification votes recorded for a build result, one entry per Gerrit repository."),
		mcp.WithString("plan_result_key",
			mcp.Required(),
			mcp.Description("Build result key, e.g. PROJ-PLAN-42"),
		),
	)

	s.mcpServer.AddTool(changeTool, s.handleGetBuildChange)
	s.mcpServer.AddTool(eligibleTool, s.handleIsGerritPlan)
	s.mcpServer.AddTool(reportTool, s.handleGetVerificationReport)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleGetBuildChange(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := request.GetString("plan_result_key", "")
	if key == "" {
		return mcp.NewToolResultError("plan_result_key parameter is required"), nil
	}

	build, err := s.store.GetBuild(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown build result: %s", key)), nil
	}
	if err != nil {
		s.logger.Error("[MCP] Failed to load build %s: %v", key, err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to load build: %v", err)), nil
	}

	change := s.resolver.ResolveForDisplay(ctx, build.Summary())
	return jsonResult(BuildChange{PlanResultKey: key, Found: !change.IsEmpty(), Change: change})
}

func (s *Server) handleIsGerritPlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := request.GetString("plan_key", "")
	if key == "" {
		return mcp.NewToolResultError("plan_key parameter is required"), nil
	}

	return jsonResult(PlanEligibility{PlanKey: key, Eligible: s.eligibility.IsEligible(ctx, key)})
}

func (s *Server) handleGetVerificationReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := request.GetString("plan_result_key", "")
	if key == "" {
		return mcp.NewToolResultError("plan_result_key parameter is required"), nil
	}

	report, err := s.store.GetReport(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no verification report for %s", key)), nil
	}
	if err != nil {
		s.logger.Error("[MCP] Failed to load report %s: %v", key, err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to load report: %v", err)), nil
	}

	return jsonResult(report)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
