// Package logging provides structured logging for grayhub.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler, level and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	hubLogger := logger.Component("hub")
//	hubLogger.Info("connected", "ha_version", v)
//
// Never log the hub access token or broker passwords.
package logging
