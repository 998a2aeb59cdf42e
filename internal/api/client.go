package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"crmcheck/internal/session"
	"crmcheck/internal/telemetry"
	"crmcheck/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultHTTPTimeout bounds a single request when no client is supplied.
	DefaultHTTPTimeout = 30 * time.Second

	HeaderAPIKey    = "X-API-Key"
	HeaderRequestID = "X-Request-ID"

	maxBodyBytes = 10 << 20
)

// Client is the request pipeline. Every call goes through Send.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Session
	telemetry  telemetry.Sink
	refresher  Refresher
	navigator  Navigator
	coalesce   bool

	refreshTimeout time.Duration
	refreshGroup   singleflight.Group
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. Give it a cookie jar if the
// refresh endpoint relies on a refresh cookie.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTelemetry sets the breadcrumb and exception sink.
func WithTelemetry(sink telemetry.Sink) ClientOption {
	return func(c *Client) {
		c.telemetry = sink
	}
}

// WithRefresher enables the refresh-and-replay path.
func WithRefresher(r Refresher) ClientOption {
	return func(c *Client) {
		c.refresher = r
	}
}

// WithNavigator sets the login redirect side effect.
func WithNavigator(n Navigator) ClientOption {
	return func(c *Client) {
		c.navigator = n
	}
}

// WithCoalescedRefresh makes concurrent 401s share one in-flight refresh.
// When disabled each failing request refreshes on its own.
func WithCoalescedRefresh(enabled bool) ClientOption {
	return func(c *Client) {
		c.coalesce = enabled
	}
}

// WithRefreshTimeout bounds a shared refresh, which outlives the request that started it.
func WithRefreshTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// NewClient creates a pipeline against baseURL using sess for credentials.
func NewClient(baseURL string, sess *session.Session, opts ...ClientOption) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL:    NormalizeBaseURL(baseURL),
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout, Jar: jar},
		session:    sess,
		telemetry:  telemetry.Nop{},
		coalesce:   true,

		refreshTimeout: DefaultHTTPTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.session == nil {
		c.session = session.New()
	}
	return c
}

// BaseURL returns the normalized base address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the credential store used by this client.
func (c *Client) Session() *session.Session {
	return c.session
}

// HTTPClient returns the underlying HTTP client so collaborators can share its cookie jar.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Get sends a GET with optional query parameters.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*Outcome, error) {
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}
	return c.Send(ctx, Request{Method: http.MethodGet, Endpoint: endpoint})
}

func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Outcome, error) {
	return c.Send(ctx, Request{Method: http.MethodPost, Endpoint: endpoint, Body: body})
}

func (c *Client) Put(ctx context.Context, endpoint string, body any) (*Outcome, error) {
	return c.Send(ctx, Request{Method: http.MethodPut, Endpoint: endpoint, Body: body})
}

func (c *Client) Patch(ctx context.Context, endpoint string, body any) (*Outcome, error) {
	return c.Send(ctx, Request{Method: http.MethodPatch, Endpoint: endpoint, Body: body})
}

func (c *Client) Delete(ctx context.Context, endpoint string) (*Outcome, error) {
	return c.Send(ctx, Request{Method: http.MethodDelete, Endpoint: endpoint})
}

// Send issues req and returns its outcome. Failed calls return both the
// outcome and an *Error of the same Kind. A 401 on a bearer-authenticated
// request is refreshed and replayed once before it is reported.
func (c *Client) Send(ctx context.Context, req Request) (*Outcome, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	req.Endpoint = NormalizeEndpoint(req.Endpoint)

	out, creds, err := c.do(ctx, req)
	if !IsKind(err, KindAuthRequired) {
		return out, err
	}
	if !shouldRefresh(req, creds) {
		c.authFailed(req, AuthMsgRequired)
		return out, terminal(err)
	}
	return c.refreshAndReplay(ctx, req, out, err)
}

// do performs exactly one HTTP exchange.
func (c *Client) do(ctx context.Context, req Request) (*Outcome, session.Credentials, error) {
	creds := c.session.Credentials()
	requestID := uuid.NewString()

	c.telemetry.AddBreadcrumb(telemetry.Breadcrumb{
		Category: "api",
		Message:  req.Method + " " + req.Endpoint,
		Data: map[string]any{
			"endpoint":  req.Endpoint,
			"method":    req.Method,
			"hasAuth":   creds.HasAuth(),
			"requestId": requestID,
			"replay":    req.replay,
		},
	})

	start := time.Now()
	httpReq, err := c.buildRequest(ctx, req, creds, requestID)
	if err != nil {
		return c.networkFailure(req, creds, start, 0, err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.networkFailure(req, creds, start, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.networkFailure(req, creds, start, resp.StatusCode, err)
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return c.networkFailure(req, creds, start, resp.StatusCode, err)
		}
		// Proxies answer errors with HTML; the status alone classifies those.
		logging.Debug("Pipeline", "%s %s -> %d with undecodable body: %v", req.Method, req.Endpoint, resp.StatusCode, err)
		env = nil
	}

	out := &Outcome{
		OK:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:  resp.StatusCode,
		Payload: env,
		Elapsed: time.Since(start),
		Refresh: RefreshFresh,
	}
	if env != nil {
		out.Raw = json.RawMessage(bytes.TrimSpace(body))
	}

	logging.Debug("Pipeline", "%s %s -> %d in %s", req.Method, req.Endpoint, resp.StatusCode, out.Elapsed)

	if out.OK {
		return out, creds, nil
	}

	out.Kind = kindForStatus(resp.StatusCode)
	return out, creds, &Error{
		Kind:     out.Kind,
		Status:   resp.StatusCode,
		Code:     env.ErrorCode(),
		Message:  statusMessage(resp, env),
		Method:   req.Method,
		Endpoint: req.Endpoint,
	}
}

func (c *Client) buildRequest(ctx context.Context, req Request, creds session.Credentials, requestID string) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, requestID)

	switch {
	case creds.APIKey != "":
		httpReq.Header.Set(HeaderAPIKey, creds.APIKey)
		httpReq.Header.Del("Authorization")
	case creds.BearerToken != "":
		httpReq.Header.Set("Authorization", "Bearer "+creds.BearerToken)
	}
	return httpReq, nil
}

func (c *Client) networkFailure(req Request, creds session.Credentials, start time.Time, status int, cause error) (*Outcome, session.Credentials, error) {
	reason := classifyTransportError(cause)
	out := &Outcome{
		Status:  status,
		Elapsed: time.Since(start),
		Kind:    KindNetworkFailure,
		Refresh: RefreshFresh,
	}
	eventID := c.telemetry.CaptureException(cause, telemetry.Context{
		Tags: map[string]string{
			"endpoint": req.Endpoint,
			"method":   req.Method,
			"status":   strconv.Itoa(status),
		},
		Extra: map[string]any{
			"url":     c.baseURL + req.Endpoint,
			"hasAuth": creds.HasAuth(),
			"reason":  reason,
		},
	})
	logging.Error("Pipeline", cause, "%s %s failed (%s, event %s)", req.Method, req.Endpoint, reason, eventID)

	return out, creds, &Error{
		Kind:     KindNetworkFailure,
		Status:   status,
		Message:  cause.Error(),
		Method:   req.Method,
		Endpoint: req.Endpoint,
		Reason:   reason,
		Err:      cause,
	}
}

func statusMessage(resp *http.Response, env *Envelope) string {
	if msg := env.ErrorMessage(); msg != "" {
		return msg
	}
	if resp.StatusCode == http.StatusNotFound {
		return "Endpoint not found"
	}
	return fmt.Sprintf("API Error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
