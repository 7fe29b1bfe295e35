package bridge

// Disposition records what the bridge did with an inbound command.
type Disposition uint8

const (
	// DispositionForwarded means the command was relayed downstream.
	DispositionForwarded Disposition = iota

	// DispositionMalformed means the payload was not valid JSON.
	DispositionMalformed

	// DispositionRejectedEmpty means the script field was empty.
	DispositionRejectedEmpty

	// DispositionRejectedAuth means the control password did not match.
	DispositionRejectedAuth

	// DispositionRejectedDuplicate means the dedup gate rejected the
	// script.
	DispositionRejectedDuplicate

	// DispositionRejectedBusy means a relay transaction was already in
	// flight.
	DispositionRejectedBusy

	// DispositionSendFailed means the serial write failed.
	DispositionSendFailed
)

// String returns the disposition name.
func (d Disposition) String() string {
	switch d {
	case DispositionForwarded:
		return "FORWARDED"
	case DispositionMalformed:
		return "MALFORMED"
	case DispositionRejectedEmpty:
		return "REJECTED_EMPTY"
	case DispositionRejectedAuth:
		return "REJECTED_AUTH"
	case DispositionRejectedDuplicate:
		return "REJECTED_DUPLICATE"
	case DispositionRejectedBusy:
		return "REJECTED_BUSY"
	case DispositionSendFailed:
		return "SEND_FAILED"
	}
	return "UNKNOWN"
}
