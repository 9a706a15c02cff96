// Package logging provides structured logging for the DALI bridge.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Per-gateway scoped loggers via ForGateway
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log secrets: gateway passwords and broker credentials must not
// appear in log fields.
package logging
