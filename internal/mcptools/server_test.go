package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmcheck/internal/healthcheck"
)

type fakeRunner struct {
	reporter *healthcheck.StructuredReporter
	opts     healthcheck.Options
	err      error
	block    chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, opts healthcheck.Options) (*healthcheck.RunResult, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	f.reporter.ReportStart(opts)
	if f.block != nil {
		<-f.block
	}
	res := healthcheck.RunResult{RunID: "run-42", Summary: healthcheck.Summary{Total: 1, Passed: 1}}
	f.reporter.ReportRunResult(res)
	return &res, nil
}

func newTestServer(t *testing.T) (*Server, *fakeRunner) {
	t.Helper()
	rep := healthcheck.NewStructuredReporter()
	runner := &fakeRunner{reporter: rep}
	return NewServer(runner, rep, healthcheck.Options{BurstSize: 5}, "test"), runner
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestHandleRun(t *testing.T) {
	s, runner := newTestServer(t)

	res, err := s.handleRun(context.Background(), callRequest("health_run", map[string]any{
		"entities": "escrows, leads",
		"realtime": true,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var run healthcheck.RunResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &run))
	assert.Equal(t, "run-42", run.RunID)

	assert.Equal(t, []string{"escrows", "leads"}, runner.opts.Entities)
	assert.True(t, runner.opts.Realtime)
	assert.False(t, runner.opts.FailFast)
	assert.Equal(t, 5, runner.opts.BurstSize, "defaults carry over")
}

func TestHandleRun_Error(t *testing.T) {
	s, runner := newTestServer(t)
	runner.err = errors.New(`unknown entity "houses"`)

	res, err := s.handleRun(context.Background(), callRequest("health_run", map[string]any{"entities": "houses"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "houses")
}

func TestHandleRun_OneAtATime(t *testing.T) {
	s, runner := newTestServer(t)
	runner.block = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.handleRun(context.Background(), callRequest("health_run", nil))
	}()

	require.Eventually(t, func() bool { return s.reporter.Progress().Running }, time.Second, 5*time.Millisecond)

	res, err := s.handleRun(context.Background(), callRequest("health_run", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "already in progress")

	progress, err := s.handleResults(context.Background(), callRequest("health_results", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, progress), `"running": true`)

	close(runner.block)
	<-done

	final, err := s.handleResults(context.Background(), callRequest("health_results", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, final), `"runId": "run-42"`)
}

func TestHandleResults_Empty(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleResults(context.Background(), callRequest("health_results", nil))
	require.NoError(t, err)
	assert.Equal(t, "{}", resultText(t, res))
}

func TestHandleList(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleList(context.Background(), callRequest("health_list", map[string]any{"entity": "leads"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var rows []plannedCase
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &rows))
	require.NotEmpty(t, rows)
	assert.Equal(t, "leads", rows[0].Entity)
	assert.Equal(t, "List All Leads", rows[0].Name)
	assert.Equal(t, "GET /leads", rows[0].Request)

	bad, err := s.handleList(context.Background(), callRequest("health_list", map[string]any{"entity": "houses"}))
	require.NoError(t, err)
	assert.True(t, bad.IsError)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a,,b ,"))
}
