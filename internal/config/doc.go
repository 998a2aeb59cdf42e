// Package config loads crmcheck settings.
//
// Values come from three layers, later ones winning: compiled-in defaults,
// config.yaml in the config directory (default ~/.config/crmcheck), and
// CRMCHECK_* environment variables (optionally seeded from a .env file).
//
// The persisted API key lives next to config.yaml and is managed by KeyStore,
// which can also watch the file so a running session picks up a key that was
// set or cleared by another process.
package config
