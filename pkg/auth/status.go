package auth

import "time"

// Credential schemes, in order of precedence.
const (
	SchemeAPIKey = "api-key"
	SchemeBearer = "bearer"
	SchemeNone   = "none"
)

// StatusResponse describes the credentials a request would carry right now.
type StatusResponse struct {
	BaseURL string `json:"base_url"`

	// Scheme is the credential that wins: the API key when set, else the bearer token.
	Scheme string `json:"scheme"`

	APIKey      CredentialStatus `json:"api_key"`
	BearerToken CredentialStatus `json:"bearer_token"`
	Refresh     RefreshStatus    `json:"refresh"`
}

// CredentialStatus describes one credential without exposing it.
type CredentialStatus struct {
	Present bool `json:"present"`

	// Preview is a redacted prefix, e.g. "eyJh…".
	Preview string `json:"preview,omitempty"`

	// Source is where the value came from: "flag", "config" (file or environment) or "keystore".
	Source string `json:"source,omitempty"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// RefreshStatus describes the configured token refresher.
type RefreshStatus struct {
	// Kind is "http", "oauth2" or empty when refresh is disabled.
	Kind      string `json:"kind,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Coalesced bool   `json:"coalesced"`
}

// Scheme returns the scheme a request would use given the two credentials.
func Scheme(apiKey, token string) string {
	switch {
	case apiKey != "":
		return SchemeAPIKey
	case token != "":
		return SchemeBearer
	default:
		return SchemeNone
	}
}
