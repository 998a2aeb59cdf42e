package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crmcheck/internal/session"
	"crmcheck/pkg/logging"
)

// ErrNoRefresher is returned when a refresh is needed but none is configured.
var ErrNoRefresher = errors.New("no token refresher configured")

// Refresher obtains a new bearer token from the auth collaborator.
type Refresher interface {
	RefreshAccessToken(ctx context.Context) (RefreshResult, error)
}

// RefreshResult mirrors the collaborator's {success, token, error} reply.
type RefreshResult struct {
	Success bool
	Token   string
	Error   string
	// ExpiresIn is the token lifetime when the collaborator reports one.
	ExpiresIn time.Duration
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) (RefreshResult, error)

func (f RefresherFunc) RefreshAccessToken(ctx context.Context) (RefreshResult, error) {
	return f(ctx)
}

// isAuthEndpoint matches the credential management routes that must never
// trigger a refresh or a redirect.
func isAuthEndpoint(endpoint string) bool {
	return strings.Contains(endpoint, "/auth/") || strings.Contains(endpoint, "/api-keys")
}

// shouldRefresh is true only for a first attempt that used a bearer token
// (and no API key) against a non-auth endpoint.
func shouldRefresh(req Request, creds session.Credentials) bool {
	return !req.replay &&
		!isAuthEndpoint(req.Endpoint) &&
		creds.BearerToken != "" &&
		creds.APIKey == ""
}

func (c *Client) refreshAndReplay(ctx context.Context, req Request, first *Outcome, firstErr error) (*Outcome, error) {
	logging.Info("AuthRefresh", "%s %s returned 401, refreshing bearer token", req.Method, req.Endpoint)

	if err := c.refresh(ctx); err != nil {
		if ctx.Err() != nil {
			// A cancelled caller is not an auth failure.
			first.Kind = KindNetworkFailure
			return first, &Error{
				Kind:     KindNetworkFailure,
				Status:   first.Status,
				Message:  "request canceled during token refresh",
				Method:   req.Method,
				Endpoint: req.Endpoint,
				Reason:   classifyTransportError(ctx.Err()),
				Err:      ctx.Err(),
			}
		}
		logging.Warn("AuthRefresh", "refresh for %s %s failed: %v", req.Method, req.Endpoint, err)
		c.authFailed(req, AuthMsgRefreshFailed)
		first.Refresh = RefreshExhausted
		return first, &Error{
			Kind:     KindAuthRequired,
			Status:   first.Status,
			Message:  "session expired and token refresh failed",
			Method:   req.Method,
			Endpoint: req.Endpoint,
			Terminal: true,
			Err:      errors.Join(firstErr, err),
		}
	}

	replay := req
	replay.replay = true
	out, _, err := c.do(ctx, replay)
	out.Refresh = RefreshReplayed
	if IsKind(err, KindAuthRequired) {
		logging.Warn("AuthRefresh", "%s %s still unauthorized after replay", req.Method, req.Endpoint)
		out.Refresh = RefreshExhausted
		c.authFailed(req, AuthMsgReplayUnauthorized)
		return out, terminal(err)
	}
	return out, err
}

// refresh fetches a token and stores it in the session. With coalescing on,
// concurrent callers share one in-flight refresh. The shared refresh is
// detached from the caller that started it and bounded by refreshTimeout;
// each caller stops waiting when its own context ends.
func (c *Client) refresh(ctx context.Context) error {
	if c.refresher == nil {
		return ErrNoRefresher
	}
	if !c.coalesce {
		return c.refreshOnce(ctx)
	}

	ch := c.refreshGroup.DoChan("refresh", func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return nil, c.refreshOnce(shared)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-ch:
		if r.Shared {
			logging.Debug("AuthRefresh", "joined in-flight refresh")
		}
		return r.Err
	}
}

func (c *Client) refreshOnce(ctx context.Context) error {
	res, err := c.refresher.RefreshAccessToken(ctx)
	if err != nil {
		return err
	}
	if !res.Success || res.Token == "" {
		msg := res.Error
		if msg == "" {
			msg = "no token returned"
		}
		return fmt.Errorf("refresh rejected: %s", msg)
	}

	c.session.SetToken(res.Token)
	if res.ExpiresIn > 0 {
		c.session.SetTokenExpiry(time.Now().Add(res.ExpiresIn))
	}
	logging.Info("AuthRefresh", "bearer token refreshed (%s)", logging.Redact(res.Token))
	return nil
}

// authFailed clears cached session artifacts and redirects to login unless
// the user is already on a credential management surface.
func (c *Client) authFailed(req Request, reason string) {
	c.session.ClearArtifacts()
	if c.navigator == nil {
		return
	}
	if suppressRedirect(c.navigator.Location(), req.Endpoint) {
		logging.Debug("AuthRefresh", "redirect suppressed for %s at %s", req.Endpoint, c.navigator.Location())
		return
	}
	c.navigator.ToLogin(reason)
}

func terminal(err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		cp := *apiErr
		cp.Terminal = true
		return &cp
	}
	return err
}
