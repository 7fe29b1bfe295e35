package relay

import (
	"encoding/json"
	"strings"
)

// Line prefixes of the executor's response protocol. The values are
// fixed for compatibility with the downstream firmware.
const (
	prefixDone     = "PICO_DONE:"
	prefixError    = "PICO_ERROR:"
	prefixProgress = "PICO_PROGRESS:"
)

// Ack is a parsed response line from the executor. The raw text protocol
// is converted into this closed variant at the boundary so internal
// logic never matches on prefixes again.
//
// Exactly three variants exist: Done, ExecError, and Progress.
type Ack interface {
	isAck()
}

// Done is a terminal acknowledgement: the executor finished a command.
type Done struct {
	// Command is the command the executor reports having run.
	Command string

	// Status is the executor's reported outcome.
	Status string

	// ExecutionTimeMs is the reported execution time in milliseconds.
	ExecutionTimeMs int64

	// Malformed is set when the embedded payload could not be parsed.
	// The transaction still completes, but no confirmation may be
	// derived from this acknowledgement.
	Malformed bool
}

// ExecError is a terminal acknowledgement: the executor failed.
type ExecError struct {
	// Message is the free-text error detail.
	Message string
}

// Progress is a non-terminal progress update; the transaction stays
// in flight.
type Progress struct {
	// Message is the free-text progress detail.
	Message string
}

func (Done) isAck()      {}
func (ExecError) isAck() {}
func (Progress) isAck()  {}

// donePayload is the JSON payload embedded in a DONE line.
type donePayload struct {
	Command       string `json:"command"`
	Status        string `json:"status"`
	ExecutionTime int64  `json:"execution_time"`
}

// ParseAck classifies a single response line. Unrecognized lines return
// (nil, false); they are ignored by the pump, not treated as errors.
func ParseAck(line string) (Ack, bool) {
	line = strings.TrimRight(line, "\r\n")

	switch {
	case strings.HasPrefix(line, prefixDone):
		raw := line[len(prefixDone):]
		var payload donePayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return Done{Malformed: true}, true
		}
		return Done{
			Command:         payload.Command,
			Status:          payload.Status,
			ExecutionTimeMs: payload.ExecutionTime,
		}, true

	case strings.HasPrefix(line, prefixError):
		return ExecError{Message: line[len(prefixError):]}, true

	case strings.HasPrefix(line, prefixProgress):
		return Progress{Message: line[len(prefixProgress):]}, true

	default:
		return nil, false
	}
}
