package config

import "time"

// Config is the top-level configuration structure for crmcheck.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Auth       AuthConfig       `yaml:"auth"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Realtime   RealtimeConfig   `yaml:"realtime"`
	Suite      SuiteConfig      `yaml:"suite"`
}

// APIConfig describes how the backend is reached.
type APIConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// Token and APIKey are normally supplied via env or flags, never written back to disk.
	Token  string `yaml:"token,omitempty"`
	APIKey string `yaml:"apiKey,omitempty"`
}

// AuthConfig configures the token refresh path.
type AuthConfig struct {
	RefreshURL      string        `yaml:"refreshURL,omitempty"`
	CoalesceRefresh bool          `yaml:"coalesceRefresh"`
	OAuth2          *OAuth2Config `yaml:"oauth2,omitempty"`
}

// OAuth2Config selects the OAuth2 refresh-token grant instead of the backend refresh endpoint.
type OAuth2Config struct {
	TokenURL     string   `yaml:"tokenURL"`
	ClientID     string   `yaml:"clientID"`
	ClientSecret string   `yaml:"clientSecret,omitempty"`
	RefreshToken string   `yaml:"refreshToken"`
	Scopes       []string `yaml:"scopes,omitempty"`
}

// ThresholdsConfig holds the latency bounds that turn a success into a warning.
type ThresholdsConfig struct {
	SlowResponse time.Duration `yaml:"slowResponse"`
	BurstAverage time.Duration `yaml:"burstAverage"`
	Variance     time.Duration `yaml:"variance"`
}

// RealtimeConfig configures the push channel used by correlation tests.
type RealtimeConfig struct {
	URL         string        `yaml:"url,omitempty"`
	Deadline    time.Duration `yaml:"deadline"`
	SettleDelay time.Duration `yaml:"settleDelay"`
	// Acknowledge waits for the server to confirm each subscription instead of sleeping SettleDelay.
	Acknowledge bool `yaml:"acknowledge,omitempty"`
}

// SuiteConfig controls which suites run and how they are paced.
type SuiteConfig struct {
	Entities        []string `yaml:"entities,omitempty"`
	Pace            float64  `yaml:"pace,omitempty"` // requests per second, 0 disables pacing
	CustomSuitesDir string   `yaml:"customSuitesDir,omitempty"`
	BurstSize       int      `yaml:"burstSize,omitempty"`
	// ArchiveMethod is PATCH on current backends; older ones accept PUT.
	ArchiveMethod string `yaml:"archiveMethod,omitempty"`
}
