package gate

import (
	"github.com/duckrelay/duckrelay-go/pkg/clock"
)

// DedupWindow is the dedup memory window carried over from earlier
// firmware. It is intentionally unused: a remembered script never
// expires, matching the shipped behavior (repeat=false rejects an
// identical script regardless of elapsed time).
const DedupWindow clock.Millis = 60_000

// SecretSource supplies the current control secret. Satisfied by
// *credstore.Store.
type SecretSource interface {
	Secret() string
}

// Gate authenticates and deduplicates inbound remote commands.
//
// Authentication is evaluated strictly before deduplication; callers
// must not invoke ShouldExecute for a message that failed Authenticate,
// so an unauthenticated message can never influence dedup memory.
type Gate struct {
	secrets SecretSource

	// Dedup memory: at most one remembered script, overwritten on
	// every accepted command, never rolled back.
	lastScript string
	lastSeenAt clock.Millis
	haveLast   bool
}

// New creates a Gate reading secrets from the given source.
func New(secrets SecretSource) *Gate {
	return &Gate{secrets: secrets}
}

// Authenticate reports whether the supplied secret matches the current
// control secret. Exact match, no hashing: the secret is a short
// device-pairing code, not a cryptographic credential.
func (g *Gate) Authenticate(supplied string) bool {
	return supplied == g.secrets.Secret()
}

// ShouldExecute applies the dedup policy and updates dedup memory for
// every accepted command.
//
// With repeatAllowed the command is always accepted and the memory
// unconditionally overwritten. Without it, a script equal to the
// remembered one is rejected with no time bound; a novel script is
// accepted and remembered.
func (g *Gate) ShouldExecute(script string, repeatAllowed bool, now clock.Millis) bool {
	if repeatAllowed {
		g.remember(script, now)
		return true
	}

	if g.haveLast && script == g.lastScript {
		return false
	}

	g.remember(script, now)
	return true
}

// LastScript returns the remembered script and whether one is held.
func (g *Gate) LastScript() (string, bool) {
	return g.lastScript, g.haveLast
}

// LastSeenAt returns when the remembered script was accepted.
func (g *Gate) LastSeenAt() clock.Millis {
	return g.lastSeenAt
}

func (g *Gate) remember(script string, now clock.Millis) {
	g.lastScript = script
	g.lastSeenAt = now
	g.haveLast = true
}
