// Package logging provides structured logging using uber/zap.
//
// Two output modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// The gateway logs to stdout. The MCP front end logs to stderr (see
// StderrConfig) because stdout carries the protocol stream.
//
// Example Usage:
//
//	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	logger.Info("Gateway starting", zap.String("addr", cfg.Server.Addr()))
//	logger.Error("Callback rejected", zap.Error(err))
package logging
