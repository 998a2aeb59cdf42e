package healthcheck

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"crmcheck/internal/realtime"
	"crmcheck/pkg/logging"
)

// Options selects what one run executes.
type Options struct {
	// Entities filters the built-in suites; empty runs all of them.
	Entities []string `json:"entities,omitempty"`
	// SkipBuiltin runs only the custom suites.
	SkipBuiltin bool `json:"skipBuiltin,omitempty"`
	// Realtime adds the push-channel correlation tests.
	Realtime bool `json:"realtime"`
	// FailFast stops after the first suite with a failed test.
	FailFast bool `json:"failFast"`
	// Pace limits requests per second; 0 runs unpaced.
	Pace      float64 `json:"pace,omitempty"`
	BurstSize int     `json:"burstSize"`
	// ArchiveMethod overrides the verb used to archive records.
	ArchiveMethod string        `json:"archiveMethod,omitempty"`
	CustomSuites  []CustomSuite `json:"-"`
}

// Orchestrator runs entity suites end to end and guarantees that everything
// it created is removed or reported as leaked.
type Orchestrator struct {
	runner      *Runner
	harness     *Harness
	correlator  *Correlator
	registry    *Registry
	cleaner     *cleaner
	reporter    Reporter
	breadcrumbs func() int
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*orchestratorConfig)

type orchestratorConfig struct {
	thresholds     Thresholds
	channel        realtime.Channel
	correlatorOpts []CorrelatorOption
	reporter       Reporter
	breadcrumbs    func() int
	now            func() time.Time
}

// WithThresholds sets the latency bounds.
func WithThresholds(th Thresholds) Option {
	return func(c *orchestratorConfig) { c.thresholds = th }
}

// WithChannel sets the push channel used by correlation tests.
func WithChannel(ch realtime.Channel, opts ...CorrelatorOption) Option {
	return func(c *orchestratorConfig) {
		c.channel = ch
		c.correlatorOpts = opts
	}
}

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(c *orchestratorConfig) { c.reporter = r }
}

// WithBreadcrumbCounter reports the telemetry trail length in run results.
func WithBreadcrumbCounter(fn func() int) Option {
	return func(c *orchestratorConfig) { c.breadcrumbs = fn }
}

// WithClock replaces time.Now for stamps and timings.
func WithClock(now func() time.Time) Option {
	return func(c *orchestratorConfig) { c.now = now }
}

// NewOrchestrator builds an orchestrator that sends every request through s.
func NewOrchestrator(s Sender, opts ...Option) *Orchestrator {
	cfg := orchestratorConfig{
		thresholds: Thresholds{
			SlowResponse: 2 * time.Second,
			BurstAverage: time.Second,
			Variance:     500 * time.Millisecond,
		},
		reporter: nopReporter{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	runner := NewRunner(s, cfg.thresholds)
	runner.now = cfg.now
	reg := NewRegistry()
	return &Orchestrator{
		runner:      runner,
		harness:     NewHarness(runner),
		correlator:  NewCorrelator(runner, cfg.channel, reg, cfg.correlatorOpts...),
		registry:    reg,
		cleaner:     &cleaner{sender: s, registry: reg},
		reporter:    cfg.reporter,
		breadcrumbs: cfg.breadcrumbs,
		now:         cfg.now,
	}
}

// Registry exposes the created-entity registry.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// ResolveEntities validates names against the known entities, preserving
// the default order when names is empty.
func ResolveEntities(names []string) ([]EntitySpec, error) {
	if len(names) == 0 {
		names = DefaultEntityOrder
	}
	var specs []EntitySpec
	seen := make(map[string]bool)
	for _, n := range names {
		spec, err := LookupEntity(n)
		if err != nil {
			return nil, err
		}
		if seen[spec.Name] {
			continue
		}
		seen[spec.Name] = true
		specs = append(specs, spec)
	}
	return specs, nil
}

// Run executes the selected suites in order, then the custom suites. The
// returned error is non-nil only for invalid options; test failures are
// reported in the result.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*RunResult, error) {
	specs, err := ResolveEntities(opts.Entities)
	if err != nil {
		return nil, err
	}
	if opts.SkipBuiltin {
		specs = nil
	}
	if opts.BurstSize <= 0 {
		opts.BurstSize = 5
	}
	if m := strings.ToUpper(opts.ArchiveMethod); m != "" {
		for i := range specs {
			specs[i].ArchiveMethod = m
		}
	}

	result := &RunResult{
		RunID:      uuid.NewString(),
		StartTime:  o.now(),
		Categories: make(map[Category]Summary),
		Leaked:     make(map[string][]string),
	}
	o.reporter.ReportStart(opts)
	logging.Info("Orchestrator", "run %s: %d suites, realtime=%t", result.RunID, len(specs)+len(opts.CustomSuites), opts.Realtime)

	var limiter *rate.Limiter
	if opts.Pace > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Pace), 1)
	}

	finish := func(sr SuiteResult) bool {
		o.collect(result, sr)
		o.reporter.ReportSuiteResult(sr)
		if ctx.Err() != nil {
			result.Aborted = true
			return false
		}
		return !(opts.FailFast && sr.Summary.Failed > 0)
	}

	proceed := true
	for _, spec := range specs {
		if !proceed {
			break
		}
		o.reporter.ReportSuiteStart(spec.Name)
		s := &suiteRun{o: o, spec: spec, stamp: NewStamp(o.now()), limiter: limiter, opts: opts}
		proceed = finish(s.run(ctx))
	}
	for _, cs := range opts.CustomSuites {
		if !proceed {
			break
		}
		o.reporter.ReportSuiteStart(cs.Name)
		proceed = finish(o.runCustom(ctx, cs, limiter))
	}

	result.EndTime = o.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	if o.breadcrumbs != nil {
		result.BreadcrumbCount = o.breadcrumbs()
	}
	o.reporter.ReportRunResult(*result)
	logging.Info("Orchestrator", "run %s finished: %d passed, %d failed, %d warnings, %d leaked",
		result.RunID, result.Summary.Passed, result.Summary.Failed, result.Summary.Warnings, result.LeakCount())
	return result, nil
}

func (o *Orchestrator) collect(run *RunResult, sr SuiteResult) {
	run.Suites = append(run.Suites, sr)
	run.Summary.merge(sr.Summary)
	for cat, s := range sr.Categories {
		cs := run.Categories[cat]
		cs.merge(s)
		run.Categories[cat] = cs
	}
	for _, r := range sr.Results {
		if r.TerminalAuth {
			run.AuthFailures++
		}
	}
	if len(sr.Leaked) > 0 {
		run.Leaked[sr.Entity] = append(run.Leaked[sr.Entity], sr.Leaked...)
	}
}

// teardown removes the given records of entity, or every outstanding one
// when ids is nil, and returns those that could not be confirmed gone.
func (o *Orchestrator) teardown(ctx context.Context, spec EntitySpec, ids []string) []string {
	if ids == nil {
		ids = o.registry.IDs(spec.Name)
	}
	var leaked []string
	for _, id := range ids {
		if _, tracked := o.registry.State(spec.Name, id); !tracked {
			continue
		}
		if err := o.cleaner.remove(ctx, spec, id); err != nil {
			logging.Warn("Orchestrator", "teardown of %s %s: %v", spec.Name, id, err)
		}
		if _, tracked := o.registry.State(spec.Name, id); tracked {
			leaked = append(leaked, id)
		}
	}
	if len(leaked) > 0 {
		logging.Error("Orchestrator", fmt.Errorf("%d records left behind", len(leaked)), "%s teardown incomplete: %s", spec.Name, strings.Join(leaked, ", "))
	}
	return leaked
}

type nopReporter struct{}

func (nopReporter) ReportStart(Options)           {}
func (nopReporter) ReportSuiteStart(string)       {}
func (nopReporter) ReportTestResult(TestResult)   {}
func (nopReporter) ReportSuiteResult(SuiteResult) {}
func (nopReporter) ReportRunResult(RunResult)     {}
