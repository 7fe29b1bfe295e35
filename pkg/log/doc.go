// Package log provides structured event capture for the bridge.
//
// This package defines the Logger interface and Event types for capturing
// bridge events across subsystems (network channel, serial relay,
// connectivity state machine, credential store). It is separate from
// operational logging (slog) - event capture provides a complete
// machine-readable trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/log/duckrelay/bridge.dlog")
//
//	// Both: use MultiLogger
//	cfg.EventLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("/var/log/duckrelay/bridge.dlog"),
//	)
//
// # Event Types
//
// Events carry one type-specific payload:
//   - CommandEvent: inbound remote commands and their disposition
//   - RelayEvent: serial sends, acknowledgements, timeouts
//   - StateChangeEvent: connectivity and link state transitions
//   - ErrorEventData: errors at any layer
//
// # File Format
//
// Log files use CBOR encoding with .dlog extension. The Reader type
// provides streaming decode with filtering.
package log
