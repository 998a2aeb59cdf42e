package healthcheck

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"crmcheck/internal/api"
)

var testThresholds = Thresholds{
	SlowResponse: 2 * time.Second,
	BurstAverage: time.Second,
	Variance:     500 * time.Millisecond,
}

func okOutcome(status int, success bool) *api.Outcome {
	return &api.Outcome{
		OK:      status >= 200 && status < 300,
		Status:  status,
		Payload: &api.Envelope{Success: success, Data: json.RawMessage(`{"id":"e-1"}`)},
	}
}

func failed(status int, kind api.Kind, code, msg string) (*api.Outcome, error) {
	out := &api.Outcome{
		Status:  status,
		Kind:    kind,
		Payload: &api.Envelope{Success: false, Error: &api.EnvelopeError{Code: code, Message: msg}},
	}
	return out, &api.Error{Kind: kind, Status: status, Code: code, Message: msg, Method: http.MethodGet, Endpoint: "/escrows/x"}
}

func networkFailure() (*api.Outcome, error) {
	return &api.Outcome{Kind: api.KindNetworkFailure}, &api.Error{
		Kind:   api.KindNetworkFailure,
		Reason: "connection",
		Err:    errors.New("connection refused"),
	}
}

func TestClassify_PayloadSuccess(t *testing.T) {
	tc := TestCase{Name: "List All Escrows", Category: CategoryCritical}

	tests := []struct {
		name      string
		out       *api.Outcome
		err       error
		want      Status
		wantError string
	}{
		{name: "2xx success", out: okOutcome(200, true), want: StatusSuccess},
		{name: "204 without envelope", out: &api.Outcome{OK: true, Status: 204}, want: StatusFailed, wantError: "empty response body"},
		{name: "200 blank body", out: &api.Outcome{OK: true, Status: 200}, want: StatusFailed, wantError: "empty response body"},
		{name: "2xx success false", out: &api.Outcome{OK: true, Status: 200, Payload: &api.Envelope{Error: &api.EnvelopeError{Message: "soft failure"}}}, want: StatusFailed, wantError: "soft failure"},
		{name: "server error uses envelope message", out: mustOut(failed(500, api.KindServerError, "DB", "database unavailable")), err: mustErr(failed(500, api.KindServerError, "DB", "database unavailable")), want: StatusFailed, wantError: "database unavailable"},
		{name: "network failure", out: mustOut(networkFailure()), err: mustErr(networkFailure()), want: StatusFailed, wantError: "connection refused"},
		{name: "no outcome", want: StatusFailed, wantError: "Request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(tc, tt.out, tt.err, 10*time.Millisecond, testThresholds)
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, tt.wantError, res.Error)
			assert.Equal(t, int64(10), res.ElapsedMs)
		})
	}
}

func TestClassify_ErrorHandlingInvertsVerdict(t *testing.T) {
	tc := TestCase{Name: "Create Escrow - Missing Fields", Category: CategoryErrorHandling}

	tests := []struct {
		name string
		out  *api.Outcome
		err  error
		want Status
	}{
		{"2xx success true is a failure", okOutcome(201, true), nil, StatusFailed},
		{"400 validation", mustOut(failed(400, api.KindValidation, "VALIDATION_ERROR", "propertyAddress is required")), mustErr(failed(400, api.KindValidation, "VALIDATION_ERROR", "propertyAddress is required")), StatusSuccess},
		{"404 not found", mustOut(failed(404, api.KindNotFound, "NOT_FOUND", "Escrow not found")), mustErr(failed(404, api.KindNotFound, "NOT_FOUND", "Escrow not found")), StatusSuccess},
		{"500 server error", mustOut(failed(500, api.KindServerError, "", "boom")), mustErr(failed(500, api.KindServerError, "", "boom")), StatusSuccess},
		{"2xx success false", okOutcome(200, false), nil, StatusSuccess},
		{"network failure has no response to judge", mustOut(networkFailure()), mustErr(networkFailure()), StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(tc, tt.out, tt.err, time.Millisecond, testThresholds)
			assert.Equal(t, tt.want, res.Status)
			if tt.want == StatusFailed {
				assert.NotEmpty(t, res.Error)
			}
		})
	}
}

func TestClassify_VerifyDeletion(t *testing.T) {
	tc := TestCase{Name: "Verify Single Deletion", Category: CategoryWorkflow, Policy: PolicyExpectNotFound}

	tests := []struct {
		name string
		out  *api.Outcome
		err  error
		want Status
	}{
		{"404 kind", mustOut(failed(404, api.KindNotFound, "", "")), mustErr(failed(404, api.KindNotFound, "", "")), StatusSuccess},
		{"code NOT_FOUND on 400", mustOut(failed(400, api.KindValidation, "NOT_FOUND", "bad")), mustErr(failed(400, api.KindValidation, "NOT_FOUND", "bad")), StatusSuccess},
		{"message does not exist", mustOut(failed(500, api.KindServerError, "", "Record does not exist")), mustErr(failed(500, api.KindServerError, "", "Record does not exist")), StatusSuccess},
		{"message no longer exists", mustOut(failed(410, api.KindClientError, "GONE", "Escrow No Longer Exists")), mustErr(failed(410, api.KindClientError, "GONE", "Escrow No Longer Exists")), StatusSuccess},
		{"code notfound", mustOut(failed(400, api.KindValidation, "NotFound", "")), mustErr(failed(400, api.KindValidation, "NotFound", "")), StatusSuccess},
		{"2xx soft not found", &api.Outcome{OK: true, Status: 200, Payload: &api.Envelope{Error: &api.EnvelopeError{Code: "NOT_FOUND"}}}, nil, StatusSuccess},
		{"2xx record still readable", okOutcome(200, true), nil, StatusFailed},
		{"other server error", mustOut(failed(500, api.KindServerError, "DB", "database unavailable")), mustErr(failed(500, api.KindServerError, "DB", "database unavailable")), StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Classify(tc, tt.out, tt.err, time.Millisecond, testThresholds)
			assert.Equal(t, tt.want, res.Status)
			if tt.want == StatusSuccess {
				assert.Empty(t, res.Error)
			} else {
				assert.NotEmpty(t, res.Error)
			}
		})
	}
}

func TestClassify_Latency(t *testing.T) {
	tc := TestCase{Name: "Large Pagination", Category: CategoryPerformance}

	res := Classify(tc, okOutcome(200, true), nil, 100*time.Millisecond, testThresholds)
	assert.Equal(t, StatusSuccess, res.Status)

	res = Classify(tc, okOutcome(200, true), nil, 2500*time.Millisecond, testThresholds)
	assert.Equal(t, StatusWarning, res.Status)
	assert.Contains(t, res.Message, "2500ms exceeds 2000ms")

	out, err := failed(400, api.KindValidation, "", "page out of range")
	res = Classify(tc, out, err, 100*time.Millisecond, testThresholds)
	assert.Equal(t, StatusSuccess, res.Status, "functional errors never fail a performance test")

	out, err = networkFailure()
	res = Classify(tc, out, err, 100*time.Millisecond, testThresholds)
	assert.Equal(t, StatusFailed, res.Status)
}

func TestClassify_RecordsTerminalAuth(t *testing.T) {
	tc := TestCase{Name: "List All Escrows", Category: CategoryCritical}
	err := &api.Error{Kind: api.KindAuthRequired, Status: 401, Message: "token expired", Terminal: true}

	res := Classify(tc, &api.Outcome{Status: 401, Kind: api.KindAuthRequired}, err, time.Millisecond, testThresholds)
	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, res.TerminalAuth)
	assert.Equal(t, api.KindAuthRequired, res.ErrorKind)
	assert.Equal(t, "token expired", res.Error)
}

func TestDefaultPolicy(t *testing.T) {
	assert.Equal(t, PolicyExpectRejection, DefaultPolicy(CategoryErrorHandling))
	assert.Equal(t, PolicyLatency, DefaultPolicy(CategoryPerformance))
	assert.Equal(t, PolicyPayloadSuccess, DefaultPolicy(CategoryWidgetData))
	assert.Equal(t, PolicyExpectNotFound, TestCase{Category: CategoryWorkflow, Policy: PolicyExpectNotFound}.EffectivePolicy())
}

func mustOut(out *api.Outcome, _ error) *api.Outcome { return out }

func mustErr(_ *api.Outcome, err error) error { return err }
