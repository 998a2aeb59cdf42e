package config

import "time"

const (
	DefaultBaseURL         = "http://localhost:5050/v1"
	DefaultTimeout         = 30 * time.Second
	DefaultSlowResponse    = 2 * time.Second
	DefaultBurstAverage    = time.Second
	DefaultVariance        = 500 * time.Millisecond
	DefaultRealtimeTimeout = 5 * time.Second
	DefaultSettleDelay     = 250 * time.Millisecond
	DefaultBurstSize       = 5
)

// DefaultEntities lists the suites in the order they run.
var DefaultEntities = []string{"escrows", "listings", "clients", "appointments", "leads"}

// GetDefaultConfig returns the configuration used when no config.yaml exists.
func GetDefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Auth: AuthConfig{
			CoalesceRefresh: true,
		},
		Thresholds: ThresholdsConfig{
			SlowResponse: DefaultSlowResponse,
			BurstAverage: DefaultBurstAverage,
			Variance:     DefaultVariance,
		},
		Realtime: RealtimeConfig{
			Deadline:    DefaultRealtimeTimeout,
			SettleDelay: DefaultSettleDelay,
		},
		Suite: SuiteConfig{
			Entities:  append([]string(nil), DefaultEntities...),
			BurstSize: DefaultBurstSize,
		},
	}
}
