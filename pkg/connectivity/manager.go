package connectivity

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duckrelay/duckrelay-go/pkg/clock"
	"github.com/duckrelay/duckrelay-go/pkg/credstore"
	"github.com/duckrelay/duckrelay-go/pkg/log"
)

// Lifecycle timing and retry constants.
const (
	// ValidationTimeout bounds the startup station attempt with stored
	// credentials.
	ValidationTimeout clock.Millis = 10_000

	// ProvisionConnectTimeout bounds a connection test requested
	// through the provisioning flow.
	ProvisionConnectTimeout clock.Millis = 20_000

	// HealthCheckInterval is how often the station link is polled
	// while operational.
	HealthCheckInterval clock.Millis = 1_000

	// MaxLinkRetries is the consecutive health-check failure cap;
	// exceeding it forces a fallback to provisioning.
	MaxLinkRetries = 5

	// MaxReconnectAttempts bounds messaging reconnect attempts within
	// one tick.
	MaxReconnectAttempts = 5

	// MinSecretLen is the minimum control secret length accepted from
	// the provisioning flow.
	MinSecretLen = 4

	// statusPollInterval paces the synchronous connection-test polls.
	statusPollInterval = 500 * time.Millisecond
)

// Manager errors.
var (
	// ErrConnectFailed is returned when a requested station connection
	// does not come up within its bound.
	ErrConnectFailed = errors.New("connectivity: connection failed")

	// ErrSecretTooShort is returned for control secrets shorter than
	// MinSecretLen.
	ErrSecretTooShort = errors.New("connectivity: control secret too short")

	// ErrNotProvisioning is returned when a provisioning-only request
	// arrives in another state.
	ErrNotProvisioning = errors.New("connectivity: not in provisioning mode")
)

// Config configures a Manager.
type Config struct {
	// APSSID and APPassword identify the local provisioning access
	// point.
	APSSID     string
	APPassword string

	// ResetSignal reports whether the hardware factory-reset input is
	// asserted at boot. May be nil.
	ResetSignal func() bool

	// Restart schedules a device restart; invoked after a credential
	// wipe requested through the provisioning flow. May be nil.
	Restart func()
}

// DefaultConfig returns a Config with the stock provisioning identity.
func DefaultConfig() Config {
	return Config{
		APSSID:     "DuckRelay_Setup",
		APPassword: "12345678",
	}
}

// Manager is the connectivity lifecycle state machine: provisioning
// versus operational network identity, credential validation, and
// bounded recovery from station loss.
//
// Manager is driven cooperatively: Start once at boot, then Tick on
// every controller pass. It is not safe for concurrent use.
type Manager struct {
	cfg    Config
	store  *credstore.Store
	net    Network
	msg    Messaging
	clk    clock.Clock
	logger *slog.Logger
	events log.Logger

	state           State
	validateStart   clock.Millis
	lastHealthCheck clock.Millis
	linkRetries     int

	onStateChange func(oldState, newState State)

	// sleep paces synchronous connection tests; replaced in tests.
	sleep func(time.Duration)
}

// NewManager creates a connectivity manager. logger and events may be nil.
func NewManager(cfg Config, store *credstore.Store, network Network, messaging Messaging,
	clk clock.Clock, logger *slog.Logger, events log.Logger) *Manager {

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if events == nil {
		events = log.NoopLogger{}
	}

	return &Manager{
		cfg:    cfg,
		store:  store,
		net:    network,
		msg:    messaging,
		clk:    clk,
		logger: logger,
		events: events,
		state:  StateStartup,
		sleep:  time.Sleep,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// LinkRetries returns the consecutive failed health-check count.
func (m *Manager) LinkRetries() int {
	return m.linkRetries
}

// OnStateChange sets a callback invoked after every state transition.
// The bridge uses it to start and stop the provisioning server and to
// abandon in-flight relay activity.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.onStateChange = fn
}

// Start runs the boot sequence: a factory-reset signal wipes the store
// and enters provisioning; otherwise stored credentials are loaded and
// validated, and their absence enters provisioning.
func (m *Manager) Start() {
	if m.cfg.ResetSignal != nil && m.cfg.ResetSignal() {
		m.logger.Info("reset signal asserted, clearing persisted state")
		if err := m.store.ClearAll(); err != nil {
			m.logger.Error("clear store failed", "err", err)
		}
		m.enterProvisioning("factory reset")
		return
	}

	creds, err := m.store.Load()
	if err != nil {
		m.logger.Error("load credentials failed", "err", err)
		m.enterProvisioning("credential load failed")
		return
	}
	if creds == nil {
		m.enterProvisioning("no stored credentials")
		return
	}

	m.logger.Info("validating stored credentials", "ssid", creds.SSID)
	if err := m.net.Join(creds.SSID, creds.Password); err != nil {
		m.logger.Error("station join failed", "err", err)
		m.enterProvisioning("station join failed")
		return
	}
	m.validateStart = m.clk.Now()
	m.setState(StateValidating, "stored credentials present")
}

// Tick advances the state machine: validation polling while
// Validating, periodic health checks and bounded station recovery
// while Operational or Degraded. Provisioning is driven externally by
// the configuration server.
func (m *Manager) Tick(now clock.Millis) {
	switch m.state {
	case StateValidating:
		m.tickValidating(now)
	case StateOperational, StateDegraded:
		m.tickHealthCheck(now)
	}
}

func (m *Manager) tickValidating(now clock.Millis) {
	switch m.net.Status() {
	case LinkUp:
		m.linkRetries = 0
		m.setState(StateOperational, "validation succeeded")
	case LinkConnecting:
		if clock.Since(now, m.validateStart) > ValidationTimeout {
			m.net.Leave()
			m.enterProvisioning("validation timeout")
		}
	default:
		m.net.Leave()
		m.enterProvisioning("validation failed")
	}
}

func (m *Manager) tickHealthCheck(now clock.Millis) {
	if clock.Since(now, m.lastHealthCheck) <= HealthCheckInterval {
		return
	}
	m.lastHealthCheck = now

	if m.net.Status() == LinkUp {
		if m.state == StateDegraded {
			m.linkRetries = 0
			m.setState(StateOperational, "station link recovered")
		}
		return
	}

	m.linkRetries++
	m.logger.Warn("station link down", "retries", m.linkRetries)

	if m.linkRetries >= MaxLinkRetries {
		m.enterProvisioning("station retry cap exceeded")
		return
	}

	if m.state == StateOperational {
		m.setState(StateDegraded, "station link lost")
	}

	// Re-attempt the association with the stored credentials.
	creds, err := m.store.Load()
	if err != nil || creds == nil {
		m.enterProvisioning("credentials unavailable during recovery")
		return
	}
	if err := m.net.Join(creds.SSID, creds.Password); err != nil {
		m.logger.Error("station rejoin failed", "err", err)
	}
}

// PumpMessaging services the messaging client: a bounded number of
// reconnect attempts when the session is down, then one poll. Only
// active while Operational; a degraded station link skips the pump.
func (m *Manager) PumpMessaging() {
	if m.state != StateOperational {
		return
	}

	for attempts := 0; !m.msg.Connected() && attempts < MaxReconnectAttempts; attempts++ {
		if err := m.msg.Reconnect(); err != nil {
			m.logger.Warn("messaging reconnect failed", "attempt", attempts+1, "err", err)
		}
	}
	m.msg.Poll()
}

// ScanNetworks lists visible networks for the provisioning flow.
func (m *Manager) ScanNetworks() ([]NetworkInfo, error) {
	return m.net.Scan()
}

// AttemptConnect validates a submitted credential pair: it starts a
// station attempt and polls synchronously, bounded by
// ProvisionConnectTimeout. Success persists the credentials, stops the
// access point, and transitions to Operational; failure restores the
// provisioning state and returns ErrConnectFailed.
func (m *Manager) AttemptConnect(ssid, password string) (string, error) {
	if m.state != StateProvisioning {
		return "", ErrNotProvisioning
	}

	if err := m.net.Join(ssid, password); err != nil {
		return "", fmt.Errorf("connectivity: station join: %w", err)
	}

	start := m.clk.Now()
	for {
		switch m.net.Status() {
		case LinkUp:
			return m.completeProvisioning(ssid, password)
		case LinkDown, LinkIdle:
			m.net.Leave()
			return "", ErrConnectFailed
		}

		if clock.Since(m.clk.Now(), start) > ProvisionConnectTimeout {
			m.net.Leave()
			return "", ErrConnectFailed
		}
		m.sleep(statusPollInterval)
	}
}

func (m *Manager) completeProvisioning(ssid, password string) (string, error) {
	if err := m.store.Save(ssid, password); err != nil {
		// Without persisted credentials the next boot would land in
		// provisioning anyway; surface the fault and stay put.
		m.net.Leave()
		return "", fmt.Errorf("connectivity: persist credentials: %w", err)
	}

	ip := m.net.LocalIP()
	if err := m.net.StopAccessPoint(); err != nil {
		m.logger.Warn("stop access point failed", "err", err)
	}

	m.linkRetries = 0
	m.setState(StateOperational, "provisioning succeeded")
	return ip, nil
}

// ClearCredentials wipes the store and schedules a restart. The store
// wipe itself never restarts the device; the restart decision lives
// here, in the calling flow.
func (m *Manager) ClearCredentials() error {
	if err := m.store.ClearAll(); err != nil {
		return err
	}
	if m.cfg.Restart != nil {
		m.cfg.Restart()
	}
	return nil
}

// SetControlSecret validates and persists a new control secret.
func (m *Manager) SetControlSecret(secret string) error {
	if len(secret) < MinSecretLen {
		return ErrSecretTooShort
	}
	return m.store.SaveSecret(secret)
}

func (m *Manager) enterProvisioning(reason string) {
	m.net.Leave()
	if m.msg != nil {
		m.msg.Disconnect()
	}
	m.linkRetries = 0

	if err := m.net.StartAccessPoint(m.cfg.APSSID, m.cfg.APPassword); err != nil {
		m.logger.Error("start access point failed", "err", err)
	}

	m.setState(StateProvisioning, reason)
}

func (m *Manager) setState(newState State, reason string) {
	if m.state == newState {
		return
	}
	oldState := m.state
	m.state = newState

	m.logger.Info("connectivity state change",
		"old", oldState.String(), "new", newState.String(), "reason", reason)
	m.events.Log(log.Event{
		Timestamp: time.Now(),
		Source:    log.SourceConnectivity,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnectivity,
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})

	if m.onStateChange != nil {
		m.onStateChange(oldState, newState)
	}
}
