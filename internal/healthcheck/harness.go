package healthcheck

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"crmcheck/internal/api"
	"crmcheck/pkg/logging"
)

var harnessLog = logging.For("Harness")

// VarianceAttempts is the number of sequential calls a variance test makes.
const VarianceAttempts = 3

// failedSample marks a variance attempt that did not succeed.
const failedSample int64 = -1

// Harness runs the concurrency and timing primitives on top of a Runner.
type Harness struct {
	runner *Runner
}

// NewHarness returns a harness that sends through r.
func NewHarness(r *Runner) *Harness {
	return &Harness{runner: r}
}

type timedCall struct {
	elapsed time.Duration
	ok      bool
	err     string
}

func (h *Harness) timedGet(ctx context.Context, endpoint string) timedCall {
	start := h.runner.now()
	out, err := h.runner.sender.Send(ctx, api.Request{Method: http.MethodGet, Endpoint: endpoint})
	call := timedCall{elapsed: h.runner.now().Sub(start)}
	call.ok = err == nil && out != nil && out.OK && (out.Payload == nil || out.Payload.Success)
	if !call.ok {
		call.err = failureMessage(out, err)
	}
	return call
}

// Burst fires n identical GETs concurrently and joins them. It succeeds only
// when all n succeed, and warns when the mean per-request latency exceeds the
// burst threshold.
func (h *Harness) Burst(ctx context.Context, name, endpoint string, n int) TestResult {
	tc := TestCase{Name: name, Category: CategoryPerformance, Method: http.MethodGet, Endpoint: endpoint}
	res := TestResult{Test: tc, Status: StatusPending}
	if n <= 0 {
		res.Status = StatusFailed
		res.Error = "burst size must be positive"
		return res
	}

	calls := make([]timedCall, n)
	start := h.runner.now()
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			calls[i] = h.timedGet(ctx, endpoint)
			return nil
		})
	}
	_ = g.Wait()
	res.setElapsed(h.runner.now().Sub(start))

	var sum time.Duration
	var errs []string
	m := &Metrics{RequestCount: n, TotalTimeMs: res.ElapsedMs}
	for _, c := range calls {
		sum += c.elapsed
		if c.ok {
			m.SuccessCount++
		} else {
			errs = append(errs, c.err)
		}
	}
	avg := sum / time.Duration(n)
	m.AvgResponseTimeMs = float64(sum.Microseconds()) / float64(n) / 1000
	res.Metrics = m

	limit := h.runner.thresholds.BurstAverage
	switch {
	case m.SuccessCount != n:
		res.Status = StatusFailed
		res.Error = fmt.Sprintf("%d of %d concurrent requests failed: %s", n-m.SuccessCount, n, strings.Join(dedupe(errs), "; "))
	case limit > 0 && avg > limit:
		res.Status = StatusWarning
		res.Message = fmt.Sprintf("average response under load %.0fms exceeds %dms", m.AvgResponseTimeMs, limit.Milliseconds())
	default:
		res.Status = StatusSuccess
		res.Message = fmt.Sprintf("%d/%d succeeded, avg %.0fms", m.SuccessCount, n, m.AvgResponseTimeMs)
	}
	harnessLog.Debug("burst %s x%d: %d ok, avg %.1fms", endpoint, n, m.SuccessCount, m.AvgResponseTimeMs)
	return res
}

// Variance issues the same GET VarianceAttempts times in sequence. A failed
// attempt is kept as a -1 sample and excluded from the statistics.
func (h *Harness) Variance(ctx context.Context, name, endpoint string) TestResult {
	tc := TestCase{Name: name, Category: CategoryPerformance, Method: http.MethodGet, Endpoint: endpoint}
	res := TestResult{Test: tc, Status: StatusPending}

	samples := make([]int64, 0, VarianceAttempts)
	var total time.Duration
	var lastErr string
	for i := 0; i < VarianceAttempts; i++ {
		c := h.timedGet(ctx, endpoint)
		total += c.elapsed
		if c.ok {
			samples = append(samples, c.elapsed.Milliseconds())
		} else {
			samples = append(samples, failedSample)
			lastErr = c.err
		}
	}
	res.setElapsed(total)

	m := varianceStats(samples)
	res.Metrics = &m
	res.Status, res.Message = classifyVariance(m, h.runner.thresholds.Variance)
	if res.Status == StatusFailed {
		res.Error = "every attempt failed: " + lastErr
		res.Message = ""
	}
	harnessLog.Debug("variance %s samples=%v variance=%dms", endpoint, samples, m.VarianceMs)
	return res
}

// varianceStats computes min, max, mean and spread over the successful samples.
func varianceStats(samples []int64) Metrics {
	m := Metrics{SamplesMs: samples, RequestCount: len(samples)}
	var sum int64
	for _, s := range samples {
		if s == failedSample {
			continue
		}
		if m.SuccessCount == 0 || s < m.MinMs {
			m.MinMs = s
		}
		if s > m.MaxMs {
			m.MaxMs = s
		}
		sum += s
		m.SuccessCount++
	}
	if m.SuccessCount > 0 {
		m.AverageMs = sum / int64(m.SuccessCount)
		m.VarianceMs = m.MaxMs - m.MinMs
	}
	return m
}

// classifyVariance warns when the spread or the slowest sample exceeds bound,
// or when some attempts failed. It fails only when no attempt succeeded.
func classifyVariance(m Metrics, bound time.Duration) (Status, string) {
	if m.SuccessCount == 0 {
		return StatusFailed, ""
	}
	limit := bound.Milliseconds()
	var problems []string
	if failed := m.RequestCount - m.SuccessCount; failed > 0 {
		problems = append(problems, fmt.Sprintf("%d of %d attempts failed", failed, m.RequestCount))
	}
	if limit > 0 && (m.VarianceMs > limit || m.MaxMs > limit) {
		problems = append(problems, fmt.Sprintf("variance %dms (slowest %dms) exceeds %dms", m.VarianceMs, m.MaxMs, limit))
	}
	if len(problems) > 0 {
		return StatusWarning, strings.Join(problems, "; ")
	}
	return StatusSuccess, fmt.Sprintf("variance %dms", m.VarianceMs)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
