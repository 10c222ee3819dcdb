// Package logger provides structured logging for quicksave.
//
// The package wraps log/slog:
//
//   - logger.go: Logger interface, handler construction, global level
//   - context.go: operation ids and context-carried loggers
//   - redact.go: masking of secrets in attributes and captured command lines
//   - file.go: the optional dated log file under the log directory
package logger
