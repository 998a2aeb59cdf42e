package healthcheck

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmcheck/internal/api"
	"crmcheck/internal/realtime"
)

func resultNames(rs []TestResult) []string {
	names := make([]string, 0, len(rs))
	for _, r := range rs {
		names = append(names, r.Test.Name)
	}
	return names
}

func failures(rs []TestResult) []string {
	var out []string
	for _, r := range rs {
		if r.Status != StatusSuccess {
			out = append(out, string(r.Test.Category)+"/"+r.Test.Name+": "+r.Error+r.Message)
		}
	}
	return out
}

func TestOrchestrator_EndToEndLeavesNothingBehind(t *testing.T) {
	for _, entity := range DefaultEntityOrder {
		t.Run(entity, func(t *testing.T) {
			hub := realtime.NewHub()
			hub.SetConnected(true)
			crm := newFakeCRM(hub)
			srv := crm.start(t)

			o := NewOrchestrator(crm.client(srv), WithChannel(hub, WithSettleDelay(0)))
			res, err := o.Run(context.Background(), Options{Entities: []string{entity}, Realtime: true})
			require.NoError(t, err)
			require.Len(t, res.Suites, 1)

			suite := res.Suites[0]
			assert.Empty(t, failures(suite.Results))
			assert.Equal(t, 0, o.Registry().Len(), "every created record must be confirmed gone")
			assert.Empty(t, suite.Leaked)
			assert.Equal(t, 0, res.LeakCount())
			assert.Equal(t, 0, crm.count(entity))
			assert.True(t, res.Healthy())
			assert.NotEmpty(t, res.RunID)

			names := resultNames(suite.Results)
			assert.Contains(t, names, "Delete Without Archive")
			assert.Contains(t, names, "Verify Batch Deletion")
			assert.Contains(t, names, "Verify Single Deletion")
			assert.Contains(t, names, BurstTestName)
			assert.Contains(t, names, CorrelationName(realtime.ActionUpdated, ViewDetailed))

			assert.Equal(t, suite.Summary.Total, len(suite.Results))
			assert.Equal(t, 4, suite.Categories[CategorySearch].Total)
			assert.Equal(t, 4, suite.Categories[CategoryErrorHandling].Passed)
			assert.Equal(t, 2, suite.Categories[CategoryRealtime].Passed)
		})
	}
}

func TestOrchestrator_SuiteOrder(t *testing.T) {
	crm := newFakeCRM(nil)
	srv := crm.start(t)

	o := NewOrchestrator(crm.client(srv))
	res, err := o.Run(context.Background(), Options{Entities: []string{EntityEscrows}})
	require.NoError(t, err)

	var order []Category
	for _, r := range res.Suites[0].Results {
		if len(order) == 0 || order[len(order)-1] != r.Test.Category {
			order = append(order, r.Test.Category)
		}
	}
	assert.Equal(t, []Category{
		CategoryCritical, CategorySearch, CategoryErrorHandling, CategoryEdgeCase,
		CategoryWidgetData, CategoryPerformance, CategoryWorkflow,
	}, order)
	assert.Equal(t, 8, res.Suites[0].Categories[CategoryWidgetData].Passed)
}

func TestOrchestrator_ArchiveBeforeDelete(t *testing.T) {
	crm := newFakeCRM(nil)
	srv := crm.start(t)

	o := NewOrchestrator(crm.client(srv))
	_, err := o.Run(context.Background(), Options{Entities: []string{EntityClients}})
	require.NoError(t, err)

	archived := map[string]bool{}
	var deletes int
	for _, line := range crm.requestLog() {
		method, path, _ := strings.Cut(line, " ")
		switch {
		case method == http.MethodPatch && strings.HasSuffix(path, "/archive"):
			archived[strings.TrimSuffix(path, "/archive")] = true
		case method == http.MethodDelete:
			deletes++
		case method == http.MethodPost && strings.HasSuffix(path, "/batch-delete"):
			deletes++
		}
	}
	assert.NotEmpty(t, archived)
	assert.GreaterOrEqual(t, deletes, 3, "delete without archive, single delete and batch delete")
}

func TestOrchestrator_DirectDeleteAcceptedIsReported(t *testing.T) {
	crm := newFakeCRM(nil)
	crm.allowDirectDelete = true
	srv := crm.start(t)

	o := NewOrchestrator(crm.client(srv))
	res, err := o.Run(context.Background(), Options{Entities: []string{EntityLeads}})
	require.NoError(t, err)

	var found bool
	for _, r := range res.Suites[0].Results {
		if r.Test.Name == "Delete Without Archive" {
			found = true
			assert.Equal(t, StatusFailed, r.Status)
			assert.Equal(t, "expected the request to be rejected", r.Error)
		}
	}
	assert.True(t, found)
	assert.Equal(t, 0, o.Registry().Len())
	assert.False(t, res.Healthy())
}

func TestOrchestrator_ReportsLeaks(t *testing.T) {
	crm := newFakeCRM(nil)
	crm.ignoreBatchDelete = true
	srv := crm.start(t)

	o := NewOrchestrator(crm.client(srv))
	res, err := o.Run(context.Background(), Options{Entities: []string{EntityEscrows}})
	require.NoError(t, err)

	for _, r := range res.Suites[0].Results {
		if r.Test.Name == "Verify Batch Deletion" {
			assert.Equal(t, StatusFailed, r.Status)
		}
	}
	// Teardown deletes the archived records the batch delete ignored.
	assert.Equal(t, 0, res.LeakCount())
	assert.Equal(t, 0, crm.count(EntityEscrows))
}

func TestOrchestrator_RealtimeWithoutChannelFailsFast(t *testing.T) {
	crm := newFakeCRM(nil)
	srv := crm.start(t)

	o := NewOrchestrator(crm.client(srv))
	res, err := o.Run(context.Background(), Options{Entities: []string{EntityLeads}, Realtime: true})
	require.NoError(t, err)

	rt := res.Suites[0].Categories[CategoryRealtime]
	assert.Equal(t, 2, rt.Failed)
	assert.Equal(t, 0, o.Registry().Len())
}

func TestOrchestrator_FailFastStopsAfterFailedSuite(t *testing.T) {
	crm := newFakeCRM(nil)
	crm.allowDirectDelete = true
	srv := crm.start(t)

	o := NewOrchestrator(crm.client(srv))
	res, err := o.Run(context.Background(), Options{Entities: []string{EntityEscrows, EntityLeads}, FailFast: true})
	require.NoError(t, err)

	require.Len(t, res.Suites, 1)
	assert.Equal(t, EntityEscrows, res.Suites[0].Entity)
}

func TestOrchestrator_CancelledRunStillTearsDown(t *testing.T) {
	crm := newFakeCRM(nil)
	srv := crm.start(t)

	ctx, cancel := context.WithCancel(context.Background())
	stop := &cancelAfter{sender: crm.client(srv), after: 3, cancel: cancel}

	o := NewOrchestrator(stop)
	res, err := o.Run(ctx, Options{Entities: []string{EntityEscrows, EntityListings}})
	require.NoError(t, err)

	assert.True(t, res.Aborted)
	assert.Len(t, res.Suites, 1)
	assert.Equal(t, 0, o.Registry().Len())
	assert.Equal(t, 0, crm.count(EntityEscrows))
}

func TestOrchestrator_UnknownEntity(t *testing.T) {
	o := NewOrchestrator(&countingSender{})
	_, err := o.Run(context.Background(), Options{Entities: []string{"mortgages"}})
	assert.ErrorContains(t, err, `unknown entity "mortgages"`)
}

func TestOrchestrator_Pacing(t *testing.T) {
	crm := newFakeCRM(nil)
	srv := crm.start(t)

	reporter := NewStructuredReporter()
	o := NewOrchestrator(crm.client(srv), WithReporter(reporter))
	suite := CustomSuite{Name: "paced", Tests: []TestCase{
		{Name: "one", Category: CategorySearch, Method: http.MethodGet, Endpoint: "/leads"},
		{Name: "two", Category: CategorySearch, Method: http.MethodGet, Endpoint: "/leads"},
		{Name: "three", Category: CategorySearch, Method: http.MethodGet, Endpoint: "/leads"},
	}}

	start := time.Now()
	res, err := o.Run(context.Background(), Options{SkipBuiltin: true, CustomSuites: []CustomSuite{suite}, Pace: 20})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	last := reporter.LastRun()
	require.NotNil(t, last)
	assert.Equal(t, res.RunID, last.RunID)
}

func TestOrchestrator_CustomSuite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smoke.yaml"), []byte(`
name: lead-smoke
entity: leads
tests:
  - name: Create Lead From Import
    category: EdgeCase
    method: POST
    endpoint: /leads
    body:
      firstName: Imported
      lastName: Lead
    creates: true
  - name: Reject Empty Lead
    category: ErrorHandling
    method: POST
    endpoint: /leads
    body: {}
`), 0644))
	suites, err := LoadCustomSuites(dir)
	require.NoError(t, err)

	crm := newFakeCRM(nil)
	srv := crm.start(t)
	o := NewOrchestrator(crm.client(srv))

	res, err := o.Run(context.Background(), Options{Entities: []string{EntityClients}, CustomSuites: suites})
	require.NoError(t, err)

	require.Len(t, res.Suites, 2)
	custom := res.Suites[1]
	assert.Equal(t, "lead-smoke", custom.Entity)
	assert.Equal(t, 2, custom.Summary.Passed)
	assert.Equal(t, 0, crm.count(EntityLeads))
	assert.Equal(t, 0, o.Registry().Len())
}

func TestOrchestrator_CustomSuitePlaceholders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: lead-chain
entity: leads
tests:
  - name: Fetch Before Create
    endpoint: /leads/{{ lastId }}
  - name: Create Stamped Lead
    method: POST
    endpoint: /leads
    body:
      firstName: "Chain {{ suffix }}"
      lastName: Lead
    creates: true
  - name: Fetch Created Lead
    endpoint: /leads/{{ .lastId }}
`), 0644))
	suites, err := LoadCustomSuites(path)
	require.NoError(t, err)

	crm := newFakeCRM(nil)
	srv := crm.start(t)
	o := NewOrchestrator(crm.client(srv))

	res, err := o.Run(context.Background(), Options{SkipBuiltin: true, CustomSuites: suites})
	require.NoError(t, err)

	require.Len(t, res.Suites, 1)
	tests := res.Suites[0].Results
	require.Len(t, tests, 3)

	assert.Equal(t, StatusFailed, tests[0].Status)
	assert.Contains(t, tests[0].Error, "missing template variables: lastId")

	assert.Equal(t, StatusSuccess, tests[1].Status)
	require.NotEmpty(t, tests[1].EntityID)
	assert.NotContains(t, tests[1].Test.Body.(map[string]any)["firstName"], "{{")

	assert.Equal(t, StatusSuccess, tests[2].Status)
	assert.Equal(t, "/leads/"+tests[1].EntityID, tests[2].Test.Endpoint)

	assert.Equal(t, 0, crm.count(EntityLeads))
}

// cancelAfter cancels the run once a number of requests went through.
type cancelAfter struct {
	sender Sender
	after  int
	calls  int
	cancel context.CancelFunc
}

func (c *cancelAfter) Send(ctx context.Context, req api.Request) (*api.Outcome, error) {
	c.calls++
	out, err := c.sender.Send(ctx, req)
	if c.calls == c.after {
		c.cancel()
	}
	return out, err
}
