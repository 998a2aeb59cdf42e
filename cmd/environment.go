package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"golang.org/x/oauth2"

	"crmcheck/internal/api"
	"crmcheck/internal/config"
	"crmcheck/internal/healthcheck"
	"crmcheck/internal/realtime"
	"crmcheck/internal/session"
	"crmcheck/internal/telemetry"
	"crmcheck/pkg/auth"
	"crmcheck/pkg/logging"
)

// maxBreadcrumbs bounds the telemetry trail kept for one process.
const maxBreadcrumbs = 500

// credentialFlags are explicit credentials given on the command line.
type credentialFlags struct {
	token  string
	apiKey string
}

// environment is everything a command needs to talk to the backend.
type environment struct {
	cfg       config.Config
	keys      *config.KeyStore
	session   *session.Session
	recorder  *telemetry.Recorder
	navigator *api.RecordingNavigator
	client    *api.Client
	refresh   auth.RefreshStatus

	keySource   string
	tokenSource string
}

// loadEnvironment reads .env and config.yaml and builds the session and the
// request pipeline. Credentials resolve as flag, then env or config, then the
// persisted key store.
func loadEnvironment(creds credentialFlags) (*environment, error) {
	if err := config.LoadDotEnv(rootEnvFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(rootConfigPath)
	if err != nil {
		return nil, err
	}

	env := &environment{
		cfg:       cfg,
		keys:      config.NewKeyStore(rootConfigPath),
		recorder:  telemetry.NewRecorder(maxBreadcrumbs),
		navigator: api.NewRecordingNavigator("/health"),
	}

	env.session = session.New(session.WithKeyPersister(env.keys))
	if env.session.APIKey() != "" {
		env.keySource = "keystore"
	}
	switch {
	case creds.apiKey != "":
		env.session.ReloadAPIKey(creds.apiKey)
		env.keySource = "flag"
	case cfg.API.APIKey != "":
		env.session.ReloadAPIKey(cfg.API.APIKey)
		env.keySource = "config"
	}
	switch {
	case creds.token != "":
		env.session.SetToken(creds.token)
		env.tokenSource = "flag"
	case cfg.API.Token != "":
		env.session.SetToken(cfg.API.Token)
		env.tokenSource = "config"
	}

	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{Timeout: cfg.API.Timeout, Jar: jar}
	refresher := env.newRefresher(httpClient)

	env.client = api.NewClient(cfg.API.BaseURL, env.session,
		api.WithHTTPClient(httpClient),
		api.WithTelemetry(telemetry.Multi{env.recorder, telemetry.LogSink{}}),
		api.WithRefresher(refresher),
		api.WithNavigator(env.navigator),
		api.WithCoalescedRefresh(cfg.Auth.CoalesceRefresh),
		api.WithRefreshTimeout(cfg.API.Timeout),
	)
	env.refresh.Coalesced = cfg.Auth.CoalesceRefresh
	return env, nil
}

func (e *environment) newRefresher(httpClient *http.Client) api.Refresher {
	if o := e.cfg.Auth.OAuth2; o != nil {
		e.refresh.Kind = "oauth2"
		e.refresh.Endpoint = o.TokenURL
		return api.NewOAuth2Refresher(&oauth2.Config{
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: o.TokenURL},
			Scopes:       o.Scopes,
		}, o.RefreshToken, httpClient)
	}
	refreshURL := e.cfg.Auth.RefreshURL
	if refreshURL == "" {
		refreshURL = api.NormalizeBaseURL(e.cfg.API.BaseURL) + "/auth/refresh"
	}
	e.refresh.Kind = "http"
	e.refresh.Endpoint = refreshURL
	return api.NewHTTPRefresher(refreshURL, httpClient)
}

// watchKeyStore keeps a persisted key in sync with the session until ctx is
// done. Explicit keys from flags or config are never replaced.
func (e *environment) watchKeyStore(ctx context.Context) {
	if e.keySource == "flag" || e.keySource == "config" {
		return
	}
	go func() {
		if err := e.keys.Watch(ctx, e.session.ReloadAPIKey); err != nil {
			logging.Warn("KeyStore", "api key watcher stopped: %v", err)
		}
	}()
}

// connectRealtime dials the push channel when one is configured. The
// channel carries the same credential the pipeline would send.
func (e *environment) connectRealtime(ctx context.Context) (*realtime.WebSocketChannel, error) {
	if e.cfg.Realtime.URL == "" {
		return nil, nil
	}
	header := http.Header{}
	creds := e.session.Credentials()
	switch {
	case creds.APIKey != "":
		header.Set(api.HeaderAPIKey, creds.APIKey)
	case creds.BearerToken != "":
		header.Set("Authorization", "Bearer "+creds.BearerToken)
	}

	ch := realtime.NewWebSocketChannel(e.cfg.Realtime.URL,
		realtime.WithHeader(header),
		realtime.WithAcknowledgements(e.cfg.Realtime.Acknowledge),
	)
	if err := ch.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", e.cfg.Realtime.URL, err)
	}
	return ch, nil
}

// newOrchestrator wires the pipeline, the optional push channel and the
// reporter into an orchestrator.
func (e *environment) newOrchestrator(ch realtime.Channel, reporter healthcheck.Reporter) *healthcheck.Orchestrator {
	opts := []healthcheck.Option{
		healthcheck.WithThresholds(healthcheck.Thresholds{
			SlowResponse: e.cfg.Thresholds.SlowResponse,
			BurstAverage: e.cfg.Thresholds.BurstAverage,
			Variance:     e.cfg.Thresholds.Variance,
		}),
		healthcheck.WithReporter(reporter),
		healthcheck.WithBreadcrumbCounter(e.recorder.BreadcrumbCount),
	}
	if ch != nil {
		opts = append(opts, healthcheck.WithChannel(ch,
			healthcheck.WithDeadline(e.cfg.Realtime.Deadline),
			healthcheck.WithSettleDelay(e.cfg.Realtime.SettleDelay),
		))
	}
	return healthcheck.NewOrchestrator(e.client, opts...)
}

// runOptions seeds healthcheck options from the suite configuration.
func (e *environment) runOptions() healthcheck.Options {
	return healthcheck.Options{
		Entities:      e.cfg.Suite.Entities,
		Pace:          e.cfg.Suite.Pace,
		BurstSize:     e.cfg.Suite.BurstSize,
		ArchiveMethod: strings.ToUpper(e.cfg.Suite.ArchiveMethod),
	}
}

// loadCustomSuites reads suite.customSuitesDir, or dir when given.
func (e *environment) loadCustomSuites(dir string) ([]healthcheck.CustomSuite, error) {
	if dir == "" {
		dir = e.cfg.Suite.CustomSuitesDir
	}
	if dir == "" {
		return nil, nil
	}
	return healthcheck.LoadCustomSuites(dir)
}

// status describes the active credentials without exposing them.
func (e *environment) status() auth.StatusResponse {
	creds := e.session.Credentials()
	res := auth.StatusResponse{
		BaseURL: e.client.BaseURL(),
		Scheme:  auth.Scheme(creds.APIKey, creds.BearerToken),
		Refresh: e.refresh,
	}
	if creds.APIKey != "" {
		res.APIKey = auth.CredentialStatus{Present: true, Preview: logging.Redact(creds.APIKey), Source: e.keySource}
	}
	if creds.BearerToken != "" {
		res.BearerToken = auth.CredentialStatus{Present: true, Preview: logging.Redact(creds.BearerToken), Source: e.tokenSource}
		if exp := e.session.TokenExpiry(); !exp.IsZero() {
			res.BearerToken.ExpiresAt = &exp
		}
	}
	return res
}
