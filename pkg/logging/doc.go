// Package logging provides structured logging configuration for httpmock.
//
// This package wraps log/slog so every component logs the same way. It is
// operational logging only; the requests a test inspects are kept by
// package requestlog.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("server started", "addr", "127.0.0.1:8082")
//
// Tee adds a JSON copy of every record in a file alongside the primary
// output, using MultiHandler.
//
// # Integration
//
// Components accept a *slog.Logger through an option or a setter. If no
// logger is provided they use logging.Nop().
package logging
