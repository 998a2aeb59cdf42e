package healthcheck

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"crmcheck/internal/api"
)

// notFoundSpellings are the accepted codes and messages for an absent record.
var notFoundSpellings = []string{
	"not_found",
	"not found",
	"notfound",
	"does not exist",
	"no longer exists",
}

// Classify turns the raw outcome of tc into a verdict according to its policy.
func Classify(tc TestCase, out *api.Outcome, err error, elapsed time.Duration, th Thresholds) TestResult {
	res := TestResult{Test: tc, Status: StatusPending}
	res.setElapsed(elapsed)
	if out != nil {
		res.HTTPStatus = out.Status
		res.ErrorKind = out.Kind
		res.Response = out.Raw
	}
	if err != nil {
		res.ErrorKind = api.KindOf(err)
		res.TerminalAuth = api.IsTerminalAuth(err)
	}

	switch tc.EffectivePolicy() {
	case PolicyExpectRejection:
		classifyRejection(&res, out, err)
	case PolicyExpectNotFound:
		classifyNotFound(&res, out, err)
	case PolicyLatency:
		classifyLatency(&res, out, err, elapsed, th.SlowResponse)
	default:
		classifyPayload(&res, out, err)
	}
	return res
}

func classifyPayload(res *TestResult, out *api.Outcome, err error) {
	if err == nil && out != nil && out.OK && out.Payload != nil && out.Payload.Success {
		res.Status = StatusSuccess
		return
	}
	res.Status = StatusFailed
	if err == nil && out != nil && out.OK && out.Payload == nil {
		// No envelope means no success indicator to trust.
		res.Error = "empty response body"
		return
	}
	res.Error = failureMessage(out, err)
}

func classifyRejection(res *TestResult, out *api.Outcome, err error) {
	switch {
	case api.IsKind(err, api.KindNetworkFailure):
		res.Status = StatusFailed
		res.Error = "no response to judge: " + api.ErrorMessage(err)
	case err != nil:
		res.Status = StatusSuccess
		res.Message = "rejected as expected: " + api.ErrorMessage(err)
	case out != nil && out.Payload != nil && !out.Payload.Success:
		res.Status = StatusSuccess
		res.Message = "rejected as expected: " + envelopeMessage(out.Payload)
	default:
		res.Status = StatusFailed
		res.Error = "expected the request to be rejected"
	}
}

func classifyNotFound(res *TestResult, out *api.Outcome, err error) {
	if isNotFound(out, err) {
		res.Status = StatusSuccess
		res.Error = ""
		res.Message = "confirmed not found"
		return
	}
	res.Status = StatusFailed
	if err != nil {
		res.Error = "expected not found, got: " + api.ErrorMessage(err)
		return
	}
	res.Error = "expected not found, but the record is still readable"
}

func classifyLatency(res *TestResult, out *api.Outcome, err error, elapsed, slow time.Duration) {
	if api.IsKind(err, api.KindNetworkFailure) {
		res.Status = StatusFailed
		res.Error = failureMessage(out, err)
		return
	}
	if err != nil {
		res.Error = api.ErrorMessage(err)
	}
	if slow > 0 && elapsed > slow {
		res.Status = StatusWarning
		res.Message = fmt.Sprintf("slow response: %dms exceeds %dms", elapsed.Milliseconds(), slow.Milliseconds())
		return
	}
	res.Status = StatusSuccess
}

// isNotFound accepts a NotFound kind or any canonical not-found spelling in
// the error code or message.
func isNotFound(out *api.Outcome, err error) bool {
	if api.IsKind(err, api.KindNotFound) || (out != nil && out.Kind == api.KindNotFound) {
		return true
	}
	var candidates []string
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		candidates = append(candidates, apiErr.Code, apiErr.Message)
	} else if err != nil {
		candidates = append(candidates, err.Error())
	}
	if out != nil && out.Payload != nil && !out.Payload.Success {
		candidates = append(candidates, out.Payload.ErrorCode(), out.Payload.ErrorMessage())
	}
	for _, c := range candidates {
		if matchesNotFound(c) {
			return true
		}
	}
	return false
}

func matchesNotFound(s string) bool {
	s = strings.ToLower(s)
	if s == "" {
		return false
	}
	for _, spelling := range notFoundSpellings {
		if strings.Contains(s, spelling) {
			return true
		}
	}
	return false
}

func failureMessage(out *api.Outcome, err error) string {
	if out != nil && out.Payload != nil {
		if msg := out.Payload.ErrorMessage(); msg != "" {
			return msg
		}
	}
	if err != nil {
		return api.ErrorMessage(err)
	}
	return "Request failed"
}

func envelopeMessage(env *api.Envelope) string {
	if msg := env.ErrorMessage(); msg != "" {
		return msg
	}
	if env.Message != "" {
		return env.Message
	}
	return "success=false"
}
