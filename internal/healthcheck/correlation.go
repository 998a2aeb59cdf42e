package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"crmcheck/internal/api"
	"crmcheck/internal/realtime"
	"crmcheck/pkg/logging"
)

// ErrChannelDisconnected is reported when a correlation test starts without
// a live push channel.
var ErrChannelDisconnected = errors.New("push channel is not connected; start the checker with --realtime or set realtime.url")

// Default correlation timings.
const (
	DefaultCorrelationDeadline = 5 * time.Second
	DefaultSettleDelay         = 250 * time.Millisecond
)

// Correlator verifies that a mutation made through the pipeline is observed
// on the push channel with the expected payload.
type Correlator struct {
	runner   *Runner
	channel  realtime.Channel
	cleaner  *cleaner
	deadline time.Duration
	settle   time.Duration
}

// CorrelatorOption configures a Correlator.
type CorrelatorOption func(*Correlator)

// WithDeadline bounds how long a correlation waits for its event.
func WithDeadline(d time.Duration) CorrelatorOption {
	return func(c *Correlator) {
		if d > 0 {
			c.deadline = d
		}
	}
}

// WithSettleDelay sets the pause between subscribing and triggering the
// mutation on channels that cannot acknowledge subscriptions.
func WithSettleDelay(d time.Duration) CorrelatorOption {
	return func(c *Correlator) {
		if d >= 0 {
			c.settle = d
		}
	}
}

// NewCorrelator returns a correlator. ch may be nil when no push channel is
// configured; every correlation then fails fast.
func NewCorrelator(r *Runner, ch realtime.Channel, reg *Registry, opts ...CorrelatorOption) *Correlator {
	c := &Correlator{
		runner:   r,
		channel:  ch,
		cleaner:  &cleaner{sender: r.sender, registry: reg},
		deadline: DefaultCorrelationDeadline,
		settle:   DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CorrelationName is the display name of a correlation test.
func CorrelationName(action string, view FieldView) string {
	return fmt.Sprintf("Realtime %s Event (%s fields)", capitalize(action), view)
}

// Correlate creates a record (and updates it for the updated action), then
// waits for the matching data:update event and checks its payload carries
// every field required by view. The record is removed on every path.
func (c *Correlator) Correlate(ctx context.Context, spec EntitySpec, action string, view FieldView, stamp Stamp) (res TestResult) {
	tc := TestCase{
		Name:     CorrelationName(action, view),
		Category: CategoryRealtime,
		Method:   http.MethodPost,
		Endpoint: spec.Path,
		Body:     spec.Create(stamp),
	}
	res = TestResult{Test: tc, Status: StatusPending}
	start := c.runner.now()
	defer func() { res.setElapsed(c.runner.now().Sub(start)) }()

	if c.channel == nil || !c.channel.IsConnected() {
		res.Status = StatusFailed
		res.Error = ErrChannelDisconnected.Error()
		return res
	}

	dctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	sub := realtime.Subscribe(dctx, c.channel, realtime.EventDataUpdate, func(ev realtime.Event) bool {
		return ev.Action == action && matchesEntityType(ev.EntityType, spec)
	})
	defer sub.Close()

	if err := c.awaitSettled(dctx); err != nil {
		res.Status = StatusFailed
		res.Error = "subscription was not established: " + err.Error()
		return res
	}

	out, err := c.runner.sender.Send(ctx, api.Request{Method: http.MethodPost, Endpoint: spec.Path, Body: tc.Body})
	if err != nil || !out.Succeeded() {
		res.Status = StatusFailed
		res.Error = "trigger create failed: " + failureMessage(out, err)
		return res
	}
	id, err := out.Payload.RecordID()
	if err != nil {
		res.Status = StatusFailed
		res.Error = "created record has no usable id: " + err.Error()
		return res
	}
	res.EntityID = id
	c.cleaner.registry.Add(spec.Name, id)
	defer func() {
		if err := c.cleaner.remove(ctx, spec, id); err != nil {
			logging.Warn("Correlation", "cleanup of %s %s failed: %v", spec.Name, id, err)
		}
	}()

	if action == realtime.ActionUpdated {
		out, err := c.runner.sender.Send(ctx, api.Request{Method: http.MethodPut, Endpoint: spec.RecordPath(id), Body: spec.Update})
		if err != nil || !out.Succeeded() {
			res.Status = StatusFailed
			res.Error = "trigger update failed: " + failureMessage(out, err)
			return res
		}
	}
	triggered := c.runner.now()

	for {
		ev, err := sub.Next(dctx)
		if err != nil {
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("no %s event for %s %s within %s", action, spec.EventType, id, c.deadline)
			return res
		}
		if ev.EntityID != id {
			continue
		}

		missing := EntityRecord(ev.Data).Missing(spec.RequiredFields(view))
		res.Metrics = &Metrics{
			EntityID:       id,
			EventAction:    ev.Action,
			EventLatencyMs: c.runner.now().Sub(triggered).Milliseconds(),
			MissingFields:  missing,
		}
		if len(missing) > 0 {
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("%s event for %s is missing required %s fields: %s", action, id, view, strings.Join(missing, ", "))
			return res
		}
		res.Status = StatusSuccess
		res.Message = fmt.Sprintf("%s event received in %dms", action, res.Metrics.EventLatencyMs)
		return res
	}
}

// awaitSettled waits for the server to confirm the subscription, or sleeps
// the settle delay on channels without acknowledgements.
func (c *Correlator) awaitSettled(ctx context.Context) error {
	if ack, ok := c.channel.(realtime.Acknowledger); ok {
		err := ack.AwaitSubscribed(ctx, realtime.EventDataUpdate)
		if !errors.Is(err, realtime.ErrAckUnsupported) {
			return err
		}
	}
	if c.settle <= 0 {
		return nil
	}
	t := time.NewTimer(c.settle)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func matchesEntityType(got string, spec EntitySpec) bool {
	return got == "" || strings.EqualFold(got, spec.EventType) || strings.EqualFold(got, spec.Name)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
