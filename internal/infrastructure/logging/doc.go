// Package logging provides structured logging for the homelab dashboard.
//
// It wraps log/slog so every package logs the same way: JSON in production,
// text while developing, with service and version attached to each entry.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("server listening", "addr", addr)
//	logger.Error("user lookup failed", "error", err, "request_id", id)
//
// Never log passwords, password hashes, or bearer tokens.
package logging
