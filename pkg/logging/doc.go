// Package logging provides the structured logger used across crmcheck.
//
// It wraps log/slog with a small subsystem-first API so every line carries
// the component that produced it:
//
//	logging.Init(logging.LevelInfo, logging.FormatJSON, os.Stderr)
//
//	logging.Info("Pipeline", "GET %s -> %d", endpoint, status)
//	logging.Error("Correlation", err, "cleanup of %s failed", id)
//
//	log := logging.For("Harness")
//	log.Debug("burst of %d", n)
//
// Until Init is called all output is discarded, which keeps library use and
// tests quiet. Text output suits terminals; JSON suits CI log collectors.
//
// Credentials must never be logged verbatim; use Redact.
package logging
