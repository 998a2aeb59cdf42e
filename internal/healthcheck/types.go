package healthcheck

import (
	"context"
	"encoding/json"
	"time"

	"crmcheck/internal/api"
)

// Category groups test cases within a suite.
type Category string

const (
	CategoryCritical      Category = "Critical"
	CategorySearch        Category = "Search"
	CategoryErrorHandling Category = "ErrorHandling"
	CategoryEdgeCase      Category = "EdgeCase"
	CategoryPerformance   Category = "Performance"
	CategoryWorkflow      Category = "Workflow"
	CategoryWidgetData    Category = "WidgetData"
	CategoryRealtime      Category = "Realtime"
)

// Categories lists every category in suite order.
var Categories = []Category{
	CategoryCritical,
	CategorySearch,
	CategoryErrorHandling,
	CategoryEdgeCase,
	CategoryWidgetData,
	CategoryPerformance,
	CategoryRealtime,
	CategoryWorkflow,
}

// Status is the verdict of one test.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusWarning Status = "warning"
)

// Policy selects how an outcome is turned into a verdict.
type Policy string

const (
	// PolicyPayloadSuccess passes on a 2xx whose envelope reports success.
	PolicyPayloadSuccess Policy = "payload-success"
	// PolicyExpectRejection passes when the backend refused the request.
	PolicyExpectRejection Policy = "expect-rejection"
	// PolicyExpectNotFound passes when the target is confirmed absent.
	PolicyExpectNotFound Policy = "expect-not-found"
	// PolicyLatency passes unless the call was slow.
	PolicyLatency Policy = "latency"
)

// DefaultPolicy returns the policy a category uses when a case does not name one.
func DefaultPolicy(c Category) Policy {
	switch c {
	case CategoryErrorHandling:
		return PolicyExpectRejection
	case CategoryPerformance:
		return PolicyLatency
	default:
		return PolicyPayloadSuccess
	}
}

// TestCase is one declared request and the policy that judges it.
type TestCase struct {
	Name     string   `json:"name" yaml:"name"`
	Category Category `json:"category" yaml:"category"`
	Method   string   `json:"method" yaml:"method"`
	Endpoint string   `json:"endpoint" yaml:"endpoint"`
	Body     any      `json:"requestBody,omitempty" yaml:"body,omitempty"`
	Policy   Policy   `json:"policy,omitempty" yaml:"policy,omitempty"`
	// Creates marks a case whose data.id must be tracked for cleanup.
	Creates bool `json:"creates,omitempty" yaml:"creates,omitempty"`
}

// EffectivePolicy returns Policy, or the category default when unset.
func (tc TestCase) EffectivePolicy() Policy {
	if tc.Policy != "" {
		return tc.Policy
	}
	return DefaultPolicy(tc.Category)
}

// Metrics holds the aggregate numbers produced by harness and correlation tests.
type Metrics struct {
	RequestCount      int     `json:"requestCount,omitempty"`
	SuccessCount      int     `json:"successCount,omitempty"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs,omitempty"`
	TotalTimeMs       int64   `json:"totalTimeMs,omitempty"`

	// SamplesMs holds sequential timings; -1 marks a failed attempt.
	SamplesMs  []int64 `json:"samplesMs,omitempty"`
	MinMs      int64   `json:"minMs,omitempty"`
	MaxMs      int64   `json:"maxMs,omitempty"`
	AverageMs  int64   `json:"averageMs,omitempty"`
	VarianceMs int64   `json:"varianceMs,omitempty"`

	EntityID       string   `json:"entityId,omitempty"`
	EventAction    string   `json:"eventAction,omitempty"`
	EventLatencyMs int64    `json:"eventLatencyMs,omitempty"`
	MissingFields  []string `json:"missingFields,omitempty"`
}

// TestResult is the verdict for one executed TestCase.
type TestResult struct {
	Test       TestCase        `json:"test"`
	Status     Status          `json:"status"`
	Elapsed    time.Duration   `json:"-"`
	ElapsedMs  int64           `json:"elapsedMs"`
	HTTPStatus int             `json:"httpStatus,omitempty"`
	ErrorKind  api.Kind        `json:"errorKind,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
	Error      string          `json:"error,omitempty"`
	Message    string          `json:"message,omitempty"`
	// EntityID is the id created by a Creates case.
	EntityID     string   `json:"entityId,omitempty"`
	TerminalAuth bool     `json:"terminalAuth,omitempty"`
	Metrics      *Metrics `json:"metrics,omitempty"`
}

func (r *TestResult) setElapsed(d time.Duration) {
	r.Elapsed = d
	r.ElapsedMs = d.Milliseconds()
}

// Summary counts verdicts.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Warnings int `json:"warnings"`
}

func (s *Summary) add(status Status) {
	s.Total++
	switch status {
	case StatusSuccess:
		s.Passed++
	case StatusFailed:
		s.Failed++
	case StatusWarning:
		s.Warnings++
	}
}

func (s *Summary) merge(o Summary) {
	s.Total += o.Total
	s.Passed += o.Passed
	s.Failed += o.Failed
	s.Warnings += o.Warnings
}

// SuiteResult holds one entity suite's ordered results and summaries.
type SuiteResult struct {
	Entity     string               `json:"entity"`
	StartTime  time.Time            `json:"startTime"`
	EndTime    time.Time            `json:"endTime"`
	Duration   time.Duration        `json:"duration"`
	Results    []TestResult         `json:"results"`
	Categories map[Category]Summary `json:"categories"`
	Summary    Summary              `json:"summary"`
	// Leaked lists ids created by this suite that could not be confirmed gone.
	Leaked []string `json:"leaked,omitempty"`
}

func (s *SuiteResult) record(res TestResult) {
	s.Results = append(s.Results, res)
	if s.Categories == nil {
		s.Categories = make(map[Category]Summary)
	}
	cs := s.Categories[res.Test.Category]
	cs.add(res.Status)
	s.Categories[res.Test.Category] = cs
	s.Summary.add(res.Status)
}

// RunResult is everything one orchestrator run produced.
type RunResult struct {
	RunID           string               `json:"runId"`
	StartTime       time.Time            `json:"startTime"`
	EndTime         time.Time            `json:"endTime"`
	Duration        time.Duration        `json:"duration"`
	Suites          []SuiteResult        `json:"suites"`
	Categories      map[Category]Summary `json:"categories"`
	Summary         Summary              `json:"summary"`
	Leaked          map[string][]string  `json:"leaked,omitempty"`
	AuthFailures    int                  `json:"authFailures,omitempty"`
	BreadcrumbCount int                  `json:"breadcrumbCount"`
	Aborted         bool                 `json:"aborted,omitempty"`
}

// LeakCount returns the number of ids left behind across all suites.
func (r *RunResult) LeakCount() int {
	n := 0
	for _, ids := range r.Leaked {
		n += len(ids)
	}
	return n
}

// Healthy reports a run without failures or leaks.
func (r *RunResult) Healthy() bool {
	return r.Summary.Failed == 0 && r.LeakCount() == 0 && !r.Aborted
}

// Thresholds are the latency bounds used by classification and the harness.
type Thresholds struct {
	SlowResponse time.Duration
	BurstAverage time.Duration
	Variance     time.Duration
}

// Sender is the request pipeline as seen by the runner.
type Sender interface {
	Send(ctx context.Context, req api.Request) (*api.Outcome, error)
}

// Reporter receives progress while a run executes.
type Reporter interface {
	ReportStart(opts Options)
	ReportSuiteStart(entity string)
	ReportTestResult(res TestResult)
	ReportSuiteResult(res SuiteResult)
	ReportRunResult(res RunResult)
}
