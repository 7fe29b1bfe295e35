// Package clock provides the monotonic millisecond tick source used for
// all elapsed-time decisions in the bridge (relay timeouts, health-check
// intervals, dedup timestamps).
//
// The counter is deliberately 32 bits wide to preserve the wraparound
// semantics of the device it replaces: comparisons must use Since, which
// performs an unsigned difference and therefore survives counter wrap.
package clock
