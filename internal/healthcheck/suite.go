package healthcheck

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/time/rate"

	"crmcheck/internal/realtime"
	"crmcheck/internal/template"
	"crmcheck/pkg/logging"
)

var correlationCases = []struct {
	action string
	view   FieldView
}{
	{realtime.ActionCreated, ViewCompact},
	{realtime.ActionUpdated, ViewDetailed},
}

// suiteRun executes one entity suite. Steps run strictly in order; once the
// context ends no further steps start but teardown still runs.
type suiteRun struct {
	o       *Orchestrator
	spec    EntitySpec
	stamp   Stamp
	limiter *rate.Limiter
	opts    Options

	result  SuiteResult
	created []string
	stopped bool
}

// proceed waits for the pacing limiter and reports whether another step may start.
func (s *suiteRun) proceed(ctx context.Context) bool {
	if s.stopped {
		return false
	}
	if ctx.Err() == nil && s.limiter != nil {
		_ = s.limiter.Wait(ctx)
	}
	if ctx.Err() != nil {
		s.stopped = true
		logging.Warn("Orchestrator", "%s suite interrupted: %v", s.spec.Name, ctx.Err())
		return false
	}
	return true
}

func (s *suiteRun) record(res TestResult) TestResult {
	if res.EntityID != "" {
		s.o.registry.Add(s.spec.Name, res.EntityID)
	}
	s.result.record(res)
	s.o.reporter.ReportTestResult(res)
	return res
}

// exec runs tc and records the result. ok is false when the step was skipped.
func (s *suiteRun) exec(ctx context.Context, tc TestCase) (TestResult, bool) {
	if !s.proceed(ctx) {
		return TestResult{}, false
	}
	res := s.record(s.o.runner.Run(ctx, tc))
	if tc.Creates && res.EntityID != "" {
		s.created = append(s.created, res.EntityID)
	}
	return res, true
}

func (s *suiteRun) run(ctx context.Context) SuiteResult {
	s.result = SuiteResult{Entity: s.spec.Name, StartTime: s.o.now(), Categories: make(map[Category]Summary)}
	spec := s.spec

	// Critical
	s.exec(ctx, listCase(spec))
	create, _ := s.exec(ctx, createCase(spec, s.stamp))
	primary := create.EntityID
	if primary != "" {
		s.exec(ctx, getCase(spec, primary))
		s.exec(ctx, updateCase(spec, primary))
	}

	for _, tc := range searchCases(spec, s.stamp) {
		s.exec(ctx, tc)
	}

	for _, tc := range errorCases(spec) {
		s.exec(ctx, tc)
	}
	s.deleteWithoutArchive(ctx, primary)

	for _, tc := range edgeCases(spec, s.stamp) {
		s.exec(ctx, tc)
	}

	if primary != "" && s.isLive(primary) {
		for _, tc := range widgetCases(spec, primary) {
			s.exec(ctx, tc)
		}
	}

	s.performance(ctx)

	if s.opts.Realtime {
		for _, c := range correlationCases {
			if !s.proceed(ctx) {
				break
			}
			s.record(s.o.correlator.Correlate(ctx, spec, c.action, c.view, s.stamp))
		}
	}

	s.workflow(ctx)

	s.result.Leaked = s.o.teardown(ctx, spec, nil)
	s.result.EndTime = s.o.now()
	s.result.Duration = s.result.EndTime.Sub(s.result.StartTime)
	return s.result
}

// deleteWithoutArchive deletes a live record directly, which the backend must
// refuse. If it wrongly succeeds the record is tracked as deleted.
func (s *suiteRun) deleteWithoutArchive(ctx context.Context, id string) {
	target := id
	if target == "" {
		target = s.stamp.Suffix
	}
	res, ok := s.exec(ctx, deleteWithoutArchiveCase(s.spec, target))
	if ok && id != "" && res.Status == StatusFailed && res.HTTPStatus >= 200 && res.HTTPStatus < 300 {
		s.o.registry.MarkDeleted(s.spec.Name, id)
	}
}

func (s *suiteRun) performance(ctx context.Context) {
	s.exec(ctx, largePaginationCase(s.spec))
	if s.proceed(ctx) {
		s.record(s.o.harness.Burst(ctx, BurstTestName, s.spec.Path, s.opts.BurstSize))
	}
	if s.proceed(ctx) {
		s.record(s.o.harness.Variance(ctx, VarianceTestName, varianceEndpoint(s.spec)))
	}
}

// workflow archives and deletes the first created record, archives and
// batch-deletes the rest, then verifies both deletions read as not found.
func (s *suiteRun) workflow(ctx context.Context) {
	spec := s.spec
	var live []string
	for _, id := range s.created {
		if s.isLive(id) {
			live = append(live, id)
		}
	}
	if len(live) == 0 {
		return
	}

	first := live[0]
	singleDeleted := false
	if res, ok := s.exec(ctx, archiveCase(spec, first, "Archive Single "+spec.Title)); ok && res.Status == StatusSuccess {
		s.o.registry.MarkArchived(spec.Name, first)
		if res, ok := s.exec(ctx, deleteCase(spec, first, "Delete Single Archived "+spec.Title)); ok && res.Status == StatusSuccess {
			s.o.registry.MarkDeleted(spec.Name, first)
			singleDeleted = true
		}
	}

	if remaining := live[1:]; len(remaining) > 0 {
		var archived []string
		for _, id := range remaining {
			if res, ok := s.exec(ctx, archiveCase(spec, id, "Archive for Batch Delete")); ok && res.Status == StatusSuccess {
				s.o.registry.MarkArchived(spec.Name, id)
				archived = append(archived, id)
			}
		}
		if len(archived) > 0 {
			if res, ok := s.exec(ctx, batchDeleteCase(spec, archived)); ok && res.Status == StatusSuccess {
				for _, id := range archived {
					s.o.registry.MarkDeleted(spec.Name, id)
				}
				s.verify(ctx, archived[0], "Verify Batch Deletion")
			}
		}
	}

	if singleDeleted {
		s.verify(ctx, first, "Verify Single Deletion")
	}
}

func (s *suiteRun) verify(ctx context.Context, id, name string) {
	if res, ok := s.exec(ctx, verifyCase(s.spec, id, name)); ok && res.Status == StatusSuccess {
		s.o.registry.MarkGone(s.spec.Name, id)
	}
}

// isLive reports whether id is tracked and not yet deleted.
func (s *suiteRun) isLive(id string) bool {
	state, ok := s.o.registry.State(s.spec.Name, id)
	return ok && state != StateDeleted
}

// runCustom executes a loaded custom suite. Records created by its cases are
// torn down with the entity the suite declares.
func (o *Orchestrator) runCustom(ctx context.Context, cs CustomSuite, limiter *rate.Limiter) SuiteResult {
	name := cs.Name
	if name == "" {
		name = "custom"
	}
	s := &suiteRun{o: o, stamp: NewStamp(o.now()), limiter: limiter}
	s.result = SuiteResult{Entity: name, StartTime: o.now(), Categories: make(map[Category]Summary)}

	spec, specErr := LookupEntity(cs.Entity)
	s.spec = spec
	if specErr != nil {
		s.spec = EntitySpec{Name: name}
	}

	for i, tc := range cs.Tests {
		if tc.Name == "" {
			tc.Name = name + " #" + strconv.Itoa(i+1)
		}
		if tc.Creates && specErr != nil {
			res := TestResult{Test: tc, Status: StatusFailed, Error: fmt.Sprintf("suite %q creates records but declares no known entity", name)}
			s.record(res)
			continue
		}
		expanded, err := s.expand(tc)
		if err != nil {
			if s.proceed(ctx) {
				s.record(TestResult{Test: tc, Status: StatusFailed, Error: err.Error()})
			}
			continue
		}
		s.exec(ctx, expanded)
	}

	if specErr == nil {
		s.result.Leaked = o.teardown(ctx, spec, s.created)
	}
	s.result.EndTime = o.now()
	s.result.Duration = s.result.EndTime.Sub(s.result.StartTime)
	return s.result
}

// expand fills the suite placeholders of a custom case.
func (s *suiteRun) expand(tc TestCase) (TestCase, error) {
	vars := template.Vars{VarSuffix: s.stamp.Suffix, VarToday: s.stamp.Today}
	if n := len(s.created); n > 0 {
		vars[VarFirstID] = s.created[0]
		vars[VarLastID] = s.created[n-1]
	}
	endpoint, err := template.ExpandString(tc.Endpoint, vars)
	if err != nil {
		return tc, err
	}
	body, err := template.Expand(tc.Body, vars)
	if err != nil {
		return tc, err
	}
	tc.Endpoint = endpoint
	tc.Body = body
	return tc, nil
}
