// Package relay drives the point-to-point serial handshake with the
// downstream execution subsystem.
//
// Outbound commands are single JSON lines ({"ducky_script": ...}),
// flushed immediately. Responses are newline-terminated lines with
// fixed prefixes (PICO_DONE:, PICO_ERROR:, PICO_PROGRESS:) parsed into
// the closed Ack variant at the boundary. At most one transaction is
// in flight; Send rejects while busy, and an unanswered transaction is
// released after AckTimeout as assumed-completed.
package relay
