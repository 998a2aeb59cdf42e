package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Kind classifies a failed outcome.
type Kind int

const (
	KindNone Kind = iota
	KindAuthRequired
	KindNotFound
	KindValidation
	KindClientError
	KindServerError
	KindNetworkFailure
)

func (k Kind) String() string {
	switch k {
	case KindAuthRequired:
		return "AuthRequired"
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "Validation"
	case KindClientError:
		return "ClientError"
	case KindServerError:
		return "ServerError"
	case KindNetworkFailure:
		return "NetworkFailure"
	default:
		return ""
	}
}

// MarshalText lets Kind render by name in JSON and YAML reports.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// kindForStatus maps a non-2xx status onto the taxonomy.
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthRequired
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest:
		return KindValidation
	case status >= 500:
		return KindServerError
	default:
		return KindClientError
	}
}

// RefreshState records how far the auth-refresh state machine got for a request.
type RefreshState int

const (
	RefreshFresh RefreshState = iota
	RefreshReplayed
	RefreshExhausted
)

func (s RefreshState) String() string {
	switch s {
	case RefreshReplayed:
		return "Replayed"
	case RefreshExhausted:
		return "Exhausted"
	default:
		return "Fresh"
	}
}

func (s RefreshState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Request describes one call through the pipeline.
type Request struct {
	Method   string
	Endpoint string
	Body     any
	Headers  http.Header

	replay bool
}

// IsReplay reports whether this request is the single post-refresh resend.
func (r Request) IsReplay() bool {
	return r.replay
}

// Outcome is the result of one Send. It is not modified after Send returns.
type Outcome struct {
	OK      bool            `json:"ok"`
	Status  int             `json:"status"`
	Payload *Envelope       `json:"payload,omitempty"`
	Raw     json.RawMessage `json:"-"`
	Elapsed time.Duration   `json:"elapsed"`
	Kind    Kind            `json:"kind,omitempty"`
	Refresh RefreshState    `json:"refresh"`
}

// Succeeded reports a 2xx whose envelope also says success.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.OK && o.Payload != nil && o.Payload.Success
}

// NormalizeEndpoint trims whitespace and guarantees exactly one leading slash.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	return "/" + strings.TrimLeft(endpoint, "/")
}

// NormalizeBaseURL strips trailing slashes and appends /v1 unless the URL
// already ends with it.
func NormalizeBaseURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}
