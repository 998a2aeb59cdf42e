package healthcheck

import (
	"encoding/json"
	"sync"
)

// StructuredReporter captures a run in memory without writing anything, for
// use behind the MCP server where stdout carries the protocol.
type StructuredReporter struct {
	mu      sync.RWMutex
	opts    Options
	running bool
	current string
	results []TestResult
	suites  []SuiteResult
	last    *RunResult
}

// NewStructuredReporter returns an empty reporter.
func NewStructuredReporter() *StructuredReporter {
	return &StructuredReporter{}
}

func (r *StructuredReporter) ReportStart(opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts = opts
	r.running = true
	r.current = ""
	r.results = nil
	r.suites = nil
}

func (r *StructuredReporter) ReportSuiteStart(entity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = entity
}

func (r *StructuredReporter) ReportTestResult(res TestResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *StructuredReporter) ReportSuiteResult(res SuiteResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suites = append(r.suites, res)
}

func (r *StructuredReporter) ReportRunResult(res RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	r.current = ""
	r.last = &res
}

// Progress describes a run that is still executing.
type Progress struct {
	Running        bool    `json:"running"`
	CurrentSuite   string  `json:"currentSuite,omitempty"`
	CompletedTests int     `json:"completedTests"`
	Summary        Summary `json:"summary"`
}

// Progress returns a snapshot of the current run.
func (r *StructuredReporter) Progress() Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := Progress{Running: r.running, CurrentSuite: r.current, CompletedTests: len(r.results)}
	for _, res := range r.results {
		p.Summary.add(res.Status)
	}
	return p
}

// LastRun returns the most recent finished run, or nil.
func (r *StructuredReporter) LastRun() *RunResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	res := *r.last
	return &res
}

// GetResultsAsJSON returns the last finished run as indented JSON.
func (r *StructuredReporter) GetResultsAsJSON() (string, error) {
	last := r.LastRun()
	if last == nil {
		return "{}", nil
	}
	data, err := json.MarshalIndent(last, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// MultiReporter fans every callback out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) ReportStart(opts Options) {
	for _, r := range m {
		r.ReportStart(opts)
	}
}

func (m MultiReporter) ReportSuiteStart(entity string) {
	for _, r := range m {
		r.ReportSuiteStart(entity)
	}
}

func (m MultiReporter) ReportTestResult(res TestResult) {
	for _, r := range m {
		r.ReportTestResult(res)
	}
}

func (m MultiReporter) ReportSuiteResult(res SuiteResult) {
	for _, r := range m {
		r.ReportSuiteResult(res)
	}
}

func (m MultiReporter) ReportRunResult(res RunResult) {
	for _, r := range m {
		r.ReportRunResult(res)
	}
}
