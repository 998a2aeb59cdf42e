package healthcheck

import (
	"context"
	"net/http"
	"time"

	"crmcheck/internal/api"
	"crmcheck/pkg/logging"
)

// Runner executes single test cases through the request pipeline.
type Runner struct {
	sender     Sender
	thresholds Thresholds
	now        func() time.Time
}

// NewRunner creates a runner that sends through s.
func NewRunner(s Sender, th Thresholds) *Runner {
	return &Runner{sender: s, thresholds: th, now: time.Now}
}

// Thresholds returns the latency bounds the runner classifies with.
func (r *Runner) Thresholds() Thresholds {
	return r.thresholds
}

// Run sends tc, measures the wall clock around the call and classifies the
// outcome. For Creates cases the new record id is extracted into EntityID.
func (r *Runner) Run(ctx context.Context, tc TestCase) TestResult {
	method := tc.Method
	if method == "" {
		method = http.MethodGet
	}

	start := r.now()
	out, err := r.sender.Send(ctx, api.Request{Method: method, Endpoint: tc.Endpoint, Body: tc.Body})
	elapsed := r.now().Sub(start)

	res := Classify(tc, out, err, elapsed, r.thresholds)
	if tc.Creates && res.Status == StatusSuccess {
		id, idErr := out.Payload.RecordID()
		if idErr != nil {
			res.Status = StatusFailed
			res.Error = "created record has no usable id: " + idErr.Error()
		} else {
			res.EntityID = id
		}
	}

	logging.Debug("Runner", "%s %s %s -> %s (%dms)", tc.Category, method, tc.Endpoint, res.Status, res.ElapsedMs)
	return res
}
