// Package credstore persists network credentials and the control secret
// in a fixed byte-region layout compatible with flash images written by
// earlier firmware revisions.
//
// The region layout:
//
//	offset 0       ssid length
//	offset 1-99    ssid bytes
//	offset 100     password length
//	offset 101-199 password bytes
//	offset 200-201 validity marker (0xAB12, big-endian)
//	offset 300     control-secret length
//	offset 301+    control-secret bytes
//
// A credential pair is considered present only when the validity marker
// matches; Save writes the marker last so an interrupted save reads back
// as absence, never as corruption. Storage faults are surfaced to the
// caller, retry policy is the caller's responsibility.
package credstore
