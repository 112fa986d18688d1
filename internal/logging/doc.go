// Package logging provides a simple leveled logging interface for
// video-rewrite.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is read once from the DEBUG and LOG_LEVEL environment
// variables. SetLevel overrides it, which the CLI does for --log-level.
package logging
