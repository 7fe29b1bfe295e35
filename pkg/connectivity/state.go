package connectivity

// State is the connectivity lifecycle state. Exactly one is active at
// a time, process-wide.
type State uint8

const (
	// StateStartup is entered once at boot, before credentials are
	// inspected.
	StateStartup State = iota

	// StateProvisioning hosts the local access point and configuration
	// server until a credential pair validates.
	StateProvisioning

	// StateValidating is attempting a station connection with stored
	// credentials, bounded by the validation timeout.
	StateValidating

	// StateOperational has an established station link and a messaging
	// channel.
	StateOperational

	// StateDegraded is Operational with the station link observed down
	// and bounded reconnection in progress.
	StateDegraded
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateStartup:
		return "STARTUP"
	case StateProvisioning:
		return "PROVISIONING"
	case StateValidating:
		return "VALIDATING"
	case StateOperational:
		return "OPERATIONAL"
	case StateDegraded:
		return "DEGRADED"
	default:
		return "UNKNOWN"
	}
}

// LinkStatus is the station link status reported by the network
// primitives collaborator.
type LinkStatus uint8

const (
	// LinkIdle means no station attempt is active.
	LinkIdle LinkStatus = iota

	// LinkConnecting means a station attempt is in progress.
	LinkConnecting

	// LinkUp means the station link is established.
	LinkUp

	// LinkDown means the station link was lost or the attempt failed.
	LinkDown
)

// String returns the link status name.
func (s LinkStatus) String() string {
	switch s {
	case LinkIdle:
		return "IDLE"
	case LinkConnecting:
		return "CONNECTING"
	case LinkUp:
		return "UP"
	case LinkDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}
