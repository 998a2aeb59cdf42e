// Package mcptools exposes the health checks as MCP tools over stdio so an
// assistant can trigger a run and read its results.
//
// Nothing but the protocol stream may be written to stdout while serving;
// progress is kept by a healthcheck.StructuredReporter instead.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"crmcheck/internal/healthcheck"
	"crmcheck/pkg/logging"
)

const serverName = "crmcheck"

// Runner executes a health run. *healthcheck.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, opts healthcheck.Options) (*healthcheck.RunResult, error)
}

// Server wraps an mcp-go server with the health tools registered.
type Server struct {
	runner    Runner
	reporter  *healthcheck.StructuredReporter
	defaults  healthcheck.Options
	mcpServer *server.MCPServer

	// runMu allows a single run at a time.
	runMu sync.Mutex
}

// NewServer registers health_run, health_list and health_results. The
// runner must report into reporter. defaults seeds every health_run call.
func NewServer(runner Runner, reporter *healthcheck.StructuredReporter, defaults healthcheck.Options, version string) *Server {
	s := &Server{
		runner:   runner,
		reporter: reporter,
		defaults: defaults,
		mcpServer: server.NewMCPServer(
			serverName,
			version,
			server.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s
}

// Serve speaks MCP over in and out until ctx is cancelled or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logging.Info("MCP", "serving %s tools over stdio", serverName)
	return server.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("health_run",
		mcp.WithDescription("Run the CRM health suites and return the run result as JSON"),
		mcp.WithString("entities",
			mcp.Description("Comma-separated entities to check (escrows, listings, clients, appointments, leads); all when empty"),
		),
		mcp.WithBoolean("realtime",
			mcp.Description("Also run the realtime event correlation tests"),
		),
		mcp.WithBoolean("fail_fast",
			mcp.Description("Stop after the first suite with a failure"),
		),
	), s.handleRun)

	s.mcpServer.AddTool(mcp.NewTool("health_list",
		mcp.WithDescription("List the declared test cases of each suite"),
		mcp.WithString("entity",
			mcp.Description("Limit the listing to one entity"),
		),
		mcp.WithBoolean("realtime",
			mcp.Description("Include the realtime correlation tests"),
		),
	), s.handleList)

	s.mcpServer.AddTool(mcp.NewTool("health_results",
		mcp.WithDescription("Return the progress of the current run, or the result of the last finished run"),
	), s.handleResults)
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.runMu.TryLock() {
		return mcp.NewToolResultError("a health run is already in progress; poll health_results"), nil
	}
	defer s.runMu.Unlock()

	opts := s.defaults
	if entities := splitList(request.GetString("entities", "")); len(entities) > 0 {
		opts.Entities = entities
	}
	opts.Realtime = request.GetBool("realtime", opts.Realtime)
	opts.FailFast = request.GetBool("fail_fast", opts.FailFast)

	res, err := s.runner.Run(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Health run failed: %v", err)), nil
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// plannedCase is one row of health_list.
type plannedCase struct {
	Entity   string               `json:"entity"`
	Name     string               `json:"name"`
	Category healthcheck.Category `json:"category"`
	Request  string               `json:"request"`
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var names []string
	if e := request.GetString("entity", ""); e != "" {
		names = []string{e}
	}
	specs, err := healthcheck.ResolveEntities(names)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stamp := healthcheck.NewStamp(time.Now())
	realtime := request.GetBool("realtime", false)
	var rows []plannedCase
	for _, spec := range specs {
		for _, tc := range healthcheck.Plan(spec, stamp, realtime) {
			rows = append(rows, plannedCase{Entity: spec.Name, Name: tc.Name, Category: tc.Category, Request: healthcheck.PlanText(tc)})
		}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format plan: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if p := s.reporter.Progress(); p.Running {
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to format progress: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
	out, err := s.reporter.GetResultsAsJSON()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format results: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
