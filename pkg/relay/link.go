package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/duckrelay/duckrelay-go/pkg/clock"
	"github.com/duckrelay/duckrelay-go/pkg/log"
)

// Link timing and batching constants.
const (
	// AckTimeout is how long a transaction may stay in flight before it
	// is released as assumed-completed.
	AckTimeout clock.Millis = 10_000

	// DefaultPumpBatch bounds how many response lines are processed per
	// controller tick, so a chatty executor cannot starve the network.
	DefaultPumpBatch = 5
)

// ErrBusy is returned by Send while a transaction is still in flight.
// The link models at most one outstanding transaction; callers decide
// whether to drop or retry later.
var ErrBusy = errors.New("relay: transaction in flight")

// Port is the serial duplex channel to the executor. ReadLine must not
// block: it returns ok=false when no complete line is available yet.
type Port interface {
	io.Writer

	// ReadLine returns the next newline-terminated line without the
	// terminator. ok is false when no complete line is buffered.
	ReadLine() (line string, ok bool, err error)

	// Flush blocks until buffered output has been transmitted.
	Flush() error
}

// command is the outbound wire message, one JSON object per line.
type command struct {
	DuckyScript string `json:"ducky_script"`
}

// Link drives the relay handshake: send a command, await a terminal
// acknowledgement, release on timeout. At most one transaction is
// outstanding; Send rejects while busy (see ErrBusy).
//
// Link is not safe for concurrent use; the controller tick loop is the
// single writer.
type Link struct {
	port   Port
	clk    clock.Clock
	events log.Logger

	inFlight bool
	sentAt   clock.Millis
}

// New creates a Link over the given port. events may be nil.
func New(port Port, clk clock.Clock, events log.Logger) *Link {
	if events == nil {
		events = log.NoopLogger{}
	}
	return &Link{port: port, clk: clk, events: events}
}

// InFlight reports whether a transaction is awaiting acknowledgement.
func (l *Link) InFlight() bool {
	return l.inFlight
}

// SentAt returns when the in-flight transaction was sent.
func (l *Link) SentAt() clock.Millis {
	return l.sentAt
}

// Send serializes the script as a single JSON line, writes and flushes
// it, and marks the transaction in flight. Returns ErrBusy while a
// previous transaction is still awaiting acknowledgement.
func (l *Link) Send(script string) error {
	if l.inFlight {
		return ErrBusy
	}

	msg, err := json.Marshal(command{DuckyScript: script})
	if err != nil {
		return fmt.Errorf("relay: encode command: %w", err)
	}
	msg = append(msg, '\n')

	if _, err := l.port.Write(msg); err != nil {
		return fmt.Errorf("relay: write: %w", err)
	}
	if err := l.port.Flush(); err != nil {
		return fmt.Errorf("relay: flush: %w", err)
	}

	l.inFlight = true
	l.sentAt = l.clk.Now()

	l.events.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionOut,
		Source:    log.SourceRelay,
		Category:  log.CategoryMessage,
		Relay:     &log.RelayEvent{Kind: log.RelaySend, Command: script},
	})
	return nil
}

// Pump reads and classifies up to batch response lines. Terminal
// acknowledgements (Done, ExecError) clear the in-flight flag; Progress
// does not; unrecognized lines are skipped. The returned acks are in
// arrival order. A port read fault stops the pump and is returned after
// any acks already collected.
func (l *Link) Pump(batch int) ([]Ack, error) {
	if batch <= 0 {
		batch = DefaultPumpBatch
	}

	var acks []Ack
	for i := 0; i < batch; i++ {
		line, ok, err := l.port.ReadLine()
		if err != nil {
			return acks, fmt.Errorf("relay: read: %w", err)
		}
		if !ok {
			break
		}

		ack, recognized := ParseAck(line)
		if !recognized {
			continue
		}

		switch a := ack.(type) {
		case Done:
			l.inFlight = false
			l.events.Log(log.Event{
				Timestamp: time.Now(),
				Direction: log.DirectionIn,
				Source:    log.SourceRelay,
				Category:  log.CategoryMessage,
				Relay: &log.RelayEvent{
					Kind:            log.RelayDone,
					Command:         a.Command,
					Status:          a.Status,
					ExecutionTimeMs: a.ExecutionTimeMs,
				},
			})
		case ExecError:
			l.inFlight = false
			l.events.Log(log.Event{
				Timestamp: time.Now(),
				Direction: log.DirectionIn,
				Source:    log.SourceRelay,
				Category:  log.CategoryError,
				Relay:     &log.RelayEvent{Kind: log.RelayError, Detail: a.Message},
			})
		case Progress:
			l.events.Log(log.Event{
				Timestamp: time.Now(),
				Direction: log.DirectionIn,
				Source:    log.SourceRelay,
				Category:  log.CategoryMessage,
				Relay:     &log.RelayEvent{Kind: log.RelayProgress, Detail: a.Message},
			})
		}

		acks = append(acks, ack)
	}
	return acks, nil
}

// CheckTimeout releases the in-flight flag when the acknowledgement
// wait has exceeded AckTimeout. Returns true exactly once per expired
// transaction; the command is assumed completed, no confirmation is
// published and no retry is attempted.
func (l *Link) CheckTimeout(now clock.Millis) bool {
	if !l.inFlight || clock.Since(now, l.sentAt) <= AckTimeout {
		return false
	}

	l.inFlight = false
	l.events.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Source:    log.SourceRelay,
		Category:  log.CategoryTimeout,
		Relay:     &log.RelayEvent{Kind: log.RelayTimeout},
	})
	return true
}

// Abandon drops any in-flight transaction without waiting for the
// executor. Used when the bridge falls back to provisioning mode.
func (l *Link) Abandon() {
	l.inFlight = false
}
