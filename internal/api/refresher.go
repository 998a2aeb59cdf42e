package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"crmcheck/pkg/logging"

	"golang.org/x/oauth2"
)

// HTTPRefresher calls the backend refresh endpoint. The refresh token travels
// as a cookie, so the HTTP client must share the pipeline's cookie jar.
type HTTPRefresher struct {
	url        string
	httpClient *http.Client
}

// NewHTTPRefresher posts to refreshURL with httpClient.
func NewHTTPRefresher(refreshURL string, httpClient *http.Client) *HTTPRefresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPRefresher{url: refreshURL, httpClient: httpClient}
}

type refreshData struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
	ExpiresIn   string `json:"expiresIn"`
}

func (r *HTTPRefresher) RefreshAccessToken(ctx context.Context) (RefreshResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return RefreshResult{}, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return RefreshResult{}, fmt.Errorf("failed to read refresh response: %w", err)
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		return RefreshResult{}, err
	}

	if resp.StatusCode != http.StatusOK || env == nil || !env.Success {
		msg := env.ErrorMessage()
		if msg == "" {
			msg = fmt.Sprintf("refresh returned %d", resp.StatusCode)
		}
		return RefreshResult{Success: false, Error: msg}, nil
	}

	var data refreshData
	if err := env.DecodeData(&data); err != nil {
		return RefreshResult{}, err
	}
	token := data.AccessToken
	if token == "" {
		token = data.Token
	}
	if token == "" {
		return RefreshResult{Success: false, Error: "refresh response carried no token"}, nil
	}

	res := RefreshResult{Success: true, Token: token}
	if d, err := time.ParseDuration(data.ExpiresIn); err == nil {
		res.ExpiresIn = d
	}
	return res, nil
}

// OAuth2Refresher exchanges a refresh token at an OAuth2 token endpoint.
type OAuth2Refresher struct {
	mu           sync.Mutex
	config       *oauth2.Config
	refreshToken string
	httpClient   *http.Client
}

// NewOAuth2Refresher uses cfg's token endpoint and the given refresh token.
func NewOAuth2Refresher(cfg *oauth2.Config, refreshToken string, httpClient *http.Client) *OAuth2Refresher {
	return &OAuth2Refresher{config: cfg, refreshToken: refreshToken, httpClient: httpClient}
}

func (r *OAuth2Refresher) RefreshAccessToken(ctx context.Context) (RefreshResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	// A token without an access token is always considered expired, so the
	// source goes straight to the refresh grant.
	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: r.refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return RefreshResult{Success: false, Error: retrieveErr.Error()}, nil
		}
		return RefreshResult{}, fmt.Errorf("oauth2 refresh failed: %w", err)
	}

	if tok.RefreshToken != "" && tok.RefreshToken != r.refreshToken {
		logging.Debug("AuthRefresh", "refresh token rotated")
		r.refreshToken = tok.RefreshToken
	}

	res := RefreshResult{Success: true, Token: tok.AccessToken}
	if !tok.Expiry.IsZero() {
		res.ExpiresIn = time.Until(tok.Expiry)
	}
	return res, nil
}
