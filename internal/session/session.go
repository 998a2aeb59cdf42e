package session

import (
	"encoding/json"
	"sync"
	"time"

	"crmcheck/pkg/logging"
)

// KeyPersister stores the API key across process lifetimes.
// config.KeyStore satisfies it.
type KeyPersister interface {
	Load() (string, error)
	Save(key string) error
	Clear() error
}

// Credentials is a point-in-time snapshot of what a request may send.
type Credentials struct {
	BearerToken string
	APIKey      string
}

// HasAuth reports whether any credential is present.
func (c Credentials) HasAuth() bool {
	return c.BearerToken != "" || c.APIKey != ""
}

// UsesAPIKey reports whether the API key wins for this snapshot.
func (c Credentials) UsesAPIKey() bool {
	return c.APIKey != ""
}

// Session is the credential store handed to the request pipeline.
//
// The bearer token is memory-only and must come from a login or refresh each
// process lifetime. The API key is written through to the KeyPersister when
// one is configured.
//
// Writes are last-writer-wins: a refresh racing an explicit SetToken keeps
// whichever lands second. The mutex only makes the fields safe to read while
// burst requests are in flight.
type Session struct {
	mu          sync.RWMutex
	token       string
	apiKey      string
	user        json.RawMessage
	tokenExpiry time.Time
	keys        KeyPersister
}

// Option configures a Session.
type Option func(*Session)

// WithKeyPersister loads the persisted API key and writes later changes back.
func WithKeyPersister(p KeyPersister) Option {
	return func(s *Session) {
		s.keys = p
	}
}

// WithToken seeds the in-memory bearer token.
func WithToken(token string) Option {
	return func(s *Session) {
		s.token = token
	}
}

// New creates a session. A persisted API key, if any, is loaded immediately.
func New(opts ...Option) *Session {
	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	if s.keys != nil {
		key, err := s.keys.Load()
		if err != nil {
			logging.Warn("Session", "could not load persisted api key: %v", err)
		} else if key != "" {
			s.apiKey = key
			logging.Debug("Session", "loaded persisted api key %s", logging.Redact(key))
		}
	}
	return s
}

// Credentials returns the current snapshot.
func (s *Session) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Credentials{BearerToken: s.token, APIKey: s.apiKey}
}

// Token returns the in-memory bearer token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken replaces the bearer token. It is never persisted.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	logging.Debug("Session", "bearer token set to %s", logging.Redact(token))
}

// APIKey returns the active API key.
func (s *Session) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey
}

// SetAPIKey activates key and persists it when a persister is configured.
func (s *Session) SetAPIKey(key string) error {
	if s.keys != nil {
		if err := s.keys.Save(key); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.apiKey = key
	s.mu.Unlock()
	return nil
}

// ClearAPIKey drops the API key from memory and from the persister.
func (s *Session) ClearAPIKey() error {
	if s.keys != nil {
		if err := s.keys.Clear(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.apiKey = ""
	s.mu.Unlock()
	return nil
}

// ReloadAPIKey swaps in a key observed on disk without writing it back.
func (s *Session) ReloadAPIKey(key string) {
	s.mu.Lock()
	s.apiKey = key
	s.mu.Unlock()
	logging.Info("Session", "api key reloaded (%s)", logging.Redact(key))
}

// SetUser caches the authenticated user's profile.
func (s *Session) SetUser(profile json.RawMessage) {
	s.mu.Lock()
	s.user = append(json.RawMessage(nil), profile...)
	s.mu.Unlock()
}

// User returns the cached profile, or nil.
func (s *Session) User() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SetTokenExpiry records when the bearer token stops being valid.
func (s *Session) SetTokenExpiry(t time.Time) {
	s.mu.Lock()
	s.tokenExpiry = t
	s.mu.Unlock()
}

// TokenExpiry returns the recorded expiry, zero when unknown.
func (s *Session) TokenExpiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenExpiry
}

// ClearArtifacts forgets the cached non-sensitive state (user profile, token
// expiry). Credentials are left alone.
func (s *Session) ClearArtifacts() {
	s.mu.Lock()
	s.user = nil
	s.tokenExpiry = time.Time{}
	s.mu.Unlock()
	logging.Debug("Session", "cleared session artifacts")
}
