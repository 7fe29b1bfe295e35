package bridge

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/duckrelay/duckrelay-go/pkg/clock"
	"github.com/duckrelay/duckrelay-go/pkg/connectivity"
	"github.com/duckrelay/duckrelay-go/pkg/gate"
	"github.com/duckrelay/duckrelay-go/pkg/log"
	"github.com/duckrelay/duckrelay-go/pkg/mqttlink"
	"github.com/duckrelay/duckrelay-go/pkg/relay"
)

// maxLoggedScript caps how much of a script body is captured in log
// events.
const maxLoggedScript = 256

// Publisher is the outbound side of the messaging client.
type Publisher interface {
	Connected() bool
	Publish(topic string, payload []byte) error
}

// Lifecycle is the connectivity manager surface the bridge drives.
type Lifecycle interface {
	Start()
	Tick(now clock.Millis)
	PumpMessaging()
	State() connectivity.State
	OnStateChange(fn func(oldState, newState connectivity.State))
}

// Config configures a Bridge.
type Config struct {
	// DeviceID stamps confirmations and log events, and derives the
	// broker topics.
	DeviceID string

	Gate         *gate.Gate
	Link         *relay.Link
	Connectivity Lifecycle
	Publisher    Publisher
	Clock        clock.Clock

	// Logger and Events may be nil.
	Logger *slog.Logger
	Events log.Logger
}

// Bridge is the controller: it gates inbound remote commands, relays
// accepted ones downstream, republishes execution confirmations, and
// drives the connectivity lifecycle. All work happens on the caller's
// goroutine through Tick and HandleCommand.
type Bridge struct {
	cfg    Config
	topics mqttlink.Topics
	logger *slog.Logger
	events log.Logger

	onStateChange func(oldState, newState connectivity.State)
}

// New creates a Bridge and hooks it into the connectivity lifecycle:
// any fallback to provisioning abandons the in-flight relay
// transaction before the caller's own state handler runs.
func New(cfg Config) *Bridge {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Events == nil {
		cfg.Events = log.NoopLogger{}
	}

	b := &Bridge{
		cfg:    cfg,
		topics: mqttlink.TopicsFor(cfg.DeviceID),
		logger: cfg.Logger,
		events: cfg.Events,
	}

	cfg.Connectivity.OnStateChange(func(oldState, newState connectivity.State) {
		if newState == connectivity.StateProvisioning {
			b.cfg.Link.Abandon()
		}
		if b.onStateChange != nil {
			b.onStateChange(oldState, newState)
		}
	})

	return b
}

// Topics returns the device's broker topics.
func (b *Bridge) Topics() mqttlink.Topics {
	return b.topics
}

// OnStateChange sets a callback invoked after every connectivity
// transition, once the bridge's own cleanup has run. The caller uses
// it to start and stop the provisioning surface.
func (b *Bridge) OnStateChange(fn func(oldState, newState connectivity.State)) {
	b.onStateChange = fn
}

// Start runs the connectivity boot sequence.
func (b *Bridge) Start() {
	b.cfg.Connectivity.Start()
}

// Tick is one controller pass: service the messaging session, drain
// relay acknowledgements, run the connectivity health check, and
// release an expired relay wait.
func (b *Bridge) Tick() {
	b.cfg.Connectivity.PumpMessaging()

	acks, err := b.cfg.Link.Pump(relay.DefaultPumpBatch)
	if err != nil {
		b.logger.Error("relay pump failed", "err", err)
	}
	for _, ack := range acks {
		if done, ok := ack.(relay.Done); ok && !done.Malformed {
			b.publishConfirmation(done)
		}
	}

	now := b.cfg.Clock.Now()
	b.cfg.Connectivity.Tick(now)

	if b.cfg.Link.CheckTimeout(now) {
		b.logger.Warn("relay acknowledgement timed out, assuming completed")
	}
}

// commandMessage is the inbound wire format on the command topic.
type commandMessage struct {
	Script   string `json:"script"`
	Repeat   bool   `json:"repeat"`
	Password string `json:"password"`
}

// confirmMessage is the outbound wire format on the confirm topic.
type confirmMessage struct {
	EspID         string `json:"esp_id"`
	Command       string `json:"command"`
	Status        string `json:"status"`
	ExecutionTime int64  `json:"execution_time"`
	Timestamp     uint32 `json:"timestamp"`
}

// HandleCommand processes one inbound command message: parse,
// authenticate, deduplicate, relay. Rejections are silent on the
// network; the disposition is returned for the caller and captured in
// the event log.
func (b *Bridge) HandleCommand(payload []byte) Disposition {
	var msg commandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logger.Warn("unparseable command payload", "err", err)
		b.logEventError("parse command", err)
		return DispositionMalformed
	}

	if msg.Script == "" {
		b.logger.Warn("command with empty script rejected")
		b.logCommand(msg, DispositionRejectedEmpty)
		return DispositionRejectedEmpty
	}

	// Authentication strictly precedes dedup: a failed password must
	// not touch dedup memory.
	if !b.cfg.Gate.Authenticate(msg.Password) {
		b.logger.Warn("command authentication failed")
		b.logCommand(msg, DispositionRejectedAuth)
		return DispositionRejectedAuth
	}

	if !b.cfg.Gate.ShouldExecute(msg.Script, msg.Repeat, b.cfg.Clock.Now()) {
		b.logger.Info("duplicate command rejected")
		b.logCommand(msg, DispositionRejectedDuplicate)
		return DispositionRejectedDuplicate
	}

	if err := b.cfg.Link.Send(msg.Script); err != nil {
		if errors.Is(err, relay.ErrBusy) {
			b.logger.Warn("relay busy, dropping command")
			b.logCommand(msg, DispositionRejectedBusy)
			return DispositionRejectedBusy
		}
		b.logger.Error("relay send failed", "err", err)
		b.logEventError("relay send", err)
		return DispositionSendFailed
	}

	b.logger.Info("command forwarded", "repeat", msg.Repeat)
	b.logCommand(msg, DispositionForwarded)
	return DispositionForwarded
}

// publishConfirmation republishes a terminal DONE acknowledgement on
// the confirm topic. Publish faults are logged and dropped; the
// executor already ran the command, there is nothing to roll back.
func (b *Bridge) publishConfirmation(done relay.Done) {
	msg := confirmMessage{
		EspID:         b.cfg.DeviceID,
		Command:       done.Command,
		Status:        done.Status,
		ExecutionTime: done.ExecutionTimeMs,
		Timestamp:     uint32(b.cfg.Clock.Now()),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("encode confirmation failed", "err", err)
		return
	}

	if err := b.cfg.Publisher.Publish(b.topics.Confirm, payload); err != nil {
		b.logger.Warn("publish confirmation failed", "err", err)
		return
	}

	b.events.Log(log.Event{
		Timestamp: time.Now(),
		DeviceID:  b.cfg.DeviceID,
		Direction: log.DirectionOut,
		Source:    log.SourceNetwork,
		Category:  log.CategoryMessage,
		Relay: &log.RelayEvent{
			Kind:            log.RelayDone,
			Command:         done.Command,
			Status:          done.Status,
			ExecutionTimeMs: done.ExecutionTimeMs,
		},
	})
}

func (b *Bridge) logCommand(msg commandMessage, d Disposition) {
	script := msg.Script
	truncated := false
	if len(script) > maxLoggedScript {
		script = script[:maxLoggedScript]
		truncated = true
	}

	category := log.CategoryMessage
	if d != DispositionForwarded {
		category = log.CategoryReject
	}

	b.events.Log(log.Event{
		Timestamp: time.Now(),
		DeviceID:  b.cfg.DeviceID,
		Direction: log.DirectionIn,
		Source:    log.SourceNetwork,
		Category:  category,
		Command: &log.CommandEvent{
			Script:      script,
			Repeat:      msg.Repeat,
			Disposition: d.String(),
			Truncated:   truncated,
		},
	})
}

func (b *Bridge) logEventError(context string, err error) {
	b.events.Log(log.Event{
		Timestamp: time.Now(),
		DeviceID:  b.cfg.DeviceID,
		Direction: log.DirectionIn,
		Source:    log.SourceNetwork,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Message: err.Error(),
			Context: context,
		},
	})
}
