package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"crmcheck/pkg/logging"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/crmcheck"
	configFileName = "config.yaml"
)

// Environment variables that override config.yaml.
const (
	EnvAPIURL      = "CRMCHECK_API_URL"
	EnvAPIKey      = "CRMCHECK_API_KEY"
	EnvToken       = "CRMCHECK_TOKEN"
	EnvRealtimeURL = "CRMCHECK_REALTIME_URL"
	EnvPace        = "CRMCHECK_PACE"
)

// DefaultConfigDir returns ~/.config/crmcheck.
func DefaultConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig reads config.yaml from configPath over the defaults and then
// applies environment overrides. A missing file is not an error.
func LoadConfig(configPath string) (Config, error) {
	cfg := GetDefaultConfig()

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, fmt.Errorf("error reading %s: %w", configFilePath, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Info("Config", "Loaded configuration from %s", configFilePath)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment without replacing
// variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
		logging.Debug("Config", "Loaded environment from %s", f)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv(EnvRealtimeURL); v != "" {
		cfg.Realtime.URL = v
	}
	if v := os.Getenv(EnvPace); v != "" {
		pace, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPace, v, err)
		}
		cfg.Suite.Pace = pace
	}
	return nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.baseURL %q is not an absolute URL", c.API.BaseURL)
	}
	if c.Realtime.URL != "" {
		ru, err := url.Parse(c.Realtime.URL)
		if err != nil || (ru.Scheme != "ws" && ru.Scheme != "wss") {
			return fmt.Errorf("realtime.url %q must use ws:// or wss://", c.Realtime.URL)
		}
	}
	if c.Suite.Pace < 0 {
		return fmt.Errorf("suite.pace must not be negative")
	}
	switch strings.ToUpper(c.Suite.ArchiveMethod) {
	case "", http.MethodPatch, http.MethodPut:
	default:
		return fmt.Errorf("suite.archiveMethod must be PATCH or PUT, got %q", c.Suite.ArchiveMethod)
	}
	if c.Auth.OAuth2 != nil && (c.Auth.OAuth2.TokenURL == "" || c.Auth.OAuth2.RefreshToken == "") {
		return fmt.Errorf("auth.oauth2 requires tokenURL and refreshToken")
	}
	return nil
}
