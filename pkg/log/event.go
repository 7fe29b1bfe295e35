package log

import (
	"time"
)

// Event represents a bridge log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// DeviceID is the bridge identity the event belongs to.
	DeviceID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Source is the subsystem that produced the event.
	Source Source `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Type-specific payload (one of these will be set).
	Command     *CommandEvent     `cbor:"10,keyasint,omitempty"` // Inbound remote commands
	Relay       *RelayEvent       `cbor:"11,keyasint,omitempty"` // Serial relay traffic
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connectivity/relay state
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Source indicates which subsystem produced the event.
type Source uint8

const (
	// SourceNetwork is the MQTT messaging channel.
	SourceNetwork Source = 0
	// SourceRelay is the serial relay link.
	SourceRelay Source = 1
	// SourceConnectivity is the connectivity state machine.
	SourceConnectivity Source = 2
	// SourceStorage is the credential store.
	SourceStorage Source = 3
	// SourceProvision is the provisioning HTTP server.
	SourceProvision Source = 4
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceNetwork:
		return "NETWORK"
	case SourceRelay:
		return "RELAY"
	case SourceConnectivity:
		return "CONNECTIVITY"
	case SourceStorage:
		return "STORAGE"
	case SourceProvision:
		return "PROVISION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a command or relay message.
	CategoryMessage Category = 0
	// CategoryReject indicates a command rejected by the gate.
	CategoryReject Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryTimeout indicates an expired wait.
	CategoryTimeout Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryReject:
		return "REJECT"
	case CategoryState:
		return "STATE"
	case CategoryTimeout:
		return "TIMEOUT"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// CommandEvent captures an inbound remote command as seen by the gate.
type CommandEvent struct {
	// Script is the command script (may be truncated for large scripts).
	Script string `cbor:"1,keyasint"`

	// Repeat is the repeat-allowed flag from the message.
	Repeat bool `cbor:"2,keyasint,omitempty"`

	// Disposition records what the bridge did with the command.
	Disposition string `cbor:"3,keyasint"`

	// Truncated indicates if Script was truncated.
	Truncated bool `cbor:"4,keyasint,omitempty"`
}

// RelayEvent captures traffic on the serial relay link.
type RelayEvent struct {
	// Kind distinguishes sends, acknowledgements, and timeouts.
	Kind RelayEventKind `cbor:"1,keyasint"`

	// Command is the echoed command for DONE acknowledgements.
	Command string `cbor:"2,keyasint,omitempty"`

	// Status is the execution status for DONE acknowledgements.
	Status string `cbor:"3,keyasint,omitempty"`

	// ExecutionTimeMs is the reported execution time for DONE.
	ExecutionTimeMs int64 `cbor:"4,keyasint,omitempty"`

	// Detail carries the free-text remainder for ERROR and PROGRESS.
	Detail string `cbor:"5,keyasint,omitempty"`
}

// RelayEventKind indicates the kind of relay event.
type RelayEventKind uint8

const (
	// RelaySend indicates a command written to the link.
	RelaySend RelayEventKind = 0
	// RelayDone indicates a terminal DONE acknowledgement.
	RelayDone RelayEventKind = 1
	// RelayError indicates a terminal ERROR acknowledgement.
	RelayError RelayEventKind = 2
	// RelayProgress indicates a non-terminal progress line.
	RelayProgress RelayEventKind = 3
	// RelayTimeout indicates the in-flight wait expired.
	RelayTimeout RelayEventKind = 4
)

// String returns the relay event kind name.
func (k RelayEventKind) String() string {
	switch k {
	case RelaySend:
		return "SEND"
	case RelayDone:
		return "DONE"
	case RelayError:
		return "ERROR"
	case RelayProgress:
		return "PROGRESS"
	case RelayTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connectivity and link lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnectivity indicates a connectivity mode change.
	StateEntityConnectivity StateEntity = 0
	// StateEntityMessaging indicates a messaging client change.
	StateEntityMessaging StateEntity = 1
	// StateEntityRelay indicates a relay transaction change.
	StateEntityRelay StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnectivity:
		return "CONNECTIVITY"
	case StateEntityMessaging:
		return "MESSAGING"
	case StateEntityRelay:
		return "RELAY"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
