// Package auth provides the credential status types shared by the CLI and
// the MCP tools when reporting how crmcheck will authenticate.
//
// Secrets never appear in these types; only redacted previews do.
package auth
