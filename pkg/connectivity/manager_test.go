package connectivity

import (
	"errors"
	"testing"
	"time"

	"github.com/duckrelay/duckrelay-go/pkg/clock"
	"github.com/duckrelay/duckrelay-go/pkg/credstore"
)

// fakeNetwork is a scripted Network collaborator.
type fakeNetwork struct {
	status     LinkStatus
	networks   []NetworkInfo
	ip         string
	joined     []string // "ssid/password" per Join
	left       int
	apUp       bool
	apSSID     string
	joinErr    error
	scanErr    error
	apStartErr error

	// onJoin lets tests flip the status when an association starts.
	onJoin func()
}

func (f *fakeNetwork) Scan() ([]NetworkInfo, error) { return f.networks, f.scanErr }

func (f *fakeNetwork) Join(ssid, password string) error {
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joined = append(f.joined, ssid+"/"+password)
	if f.onJoin != nil {
		f.onJoin()
	}
	return nil
}

func (f *fakeNetwork) Status() LinkStatus { return f.status }
func (f *fakeNetwork) LocalIP() string    { return f.ip }

func (f *fakeNetwork) Leave() error {
	f.left++
	return nil
}

func (f *fakeNetwork) StartAccessPoint(ssid, password string) error {
	if f.apStartErr != nil {
		return f.apStartErr
	}
	f.apUp = true
	f.apSSID = ssid
	return nil
}

func (f *fakeNetwork) StopAccessPoint() error {
	f.apUp = false
	return nil
}

// fakeMessaging is a scripted Messaging collaborator.
type fakeMessaging struct {
	connected     bool
	reconnects    int
	reconnectErr  error
	polls         int
	disconnects   int
	connectOnTry  int // become connected after this many reconnect calls (0 = never)
}

func (f *fakeMessaging) Connected() bool { return f.connected }

func (f *fakeMessaging) Reconnect() error {
	f.reconnects++
	if f.connectOnTry > 0 && f.reconnects >= f.connectOnTry {
		f.connected = true
	}
	return f.reconnectErr
}

func (f *fakeMessaging) Poll() { f.polls++ }

func (f *fakeMessaging) Disconnect() {
	f.connected = false
	f.disconnects++
}

func newTestStore(t *testing.T) *credstore.Store {
	t.Helper()
	store, err := credstore.Open(credstore.NewMemFlash())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func newTestManager(t *testing.T, net *fakeNetwork, msg *fakeMessaging, clk clock.Clock) (*Manager, *credstore.Store) {
	t.Helper()
	store := newTestStore(t)
	m := NewManager(DefaultConfig(), store, net, msg, clk, nil, nil)
	m.sleep = func(time.Duration) {} // never really sleep in tests
	return m, store
}

func TestStartupWithoutCredentialsEntersProvisioning(t *testing.T) {
	net := &fakeNetwork{}
	m, _ := newTestManager(t, net, &fakeMessaging{}, clock.NewFake(0))

	m.Start()

	if m.State() != StateProvisioning {
		t.Errorf("State = %v, want PROVISIONING", m.State())
	}
	if !net.apUp {
		t.Error("access point not started")
	}
	if net.apSSID != "DuckRelay_Setup" {
		t.Errorf("AP ssid = %q", net.apSSID)
	}
}

func TestStartupWithCredentialsEntersValidating(t *testing.T) {
	net := &fakeNetwork{status: LinkConnecting}
	m, store := newTestManager(t, net, &fakeMessaging{}, clock.NewFake(0))
	store.Save("Home", "pw")

	m.Start()

	if m.State() != StateValidating {
		t.Errorf("State = %v, want VALIDATING", m.State())
	}
	if len(net.joined) != 1 || net.joined[0] != "Home/pw" {
		t.Errorf("joined = %v", net.joined)
	}
}

func TestStartupResetSignalClearsAndProvisions(t *testing.T) {
	net := &fakeNetwork{}
	store := newTestStore(t)
	store.Save("Home", "pw")
	store.SaveSecret("secret99")

	cfg := DefaultConfig()
	cfg.ResetSignal = func() bool { return true }
	m := NewManager(cfg, store, net, &fakeMessaging{}, clock.NewFake(0), nil, nil)

	m.Start()

	if m.State() != StateProvisioning {
		t.Errorf("State = %v, want PROVISIONING", m.State())
	}
	if creds, _ := store.Load(); creds != nil {
		t.Error("credentials survived factory reset")
	}
	if store.Secret() != credstore.DefaultSecret {
		t.Error("control secret not reset to default")
	}
}

func TestValidationSuccess(t *testing.T) {
	net := &fakeNetwork{status: LinkConnecting}
	clk := clock.NewFake(0)
	m, store := newTestManager(t, net, &fakeMessaging{}, clk)
	store.Save("Home", "pw")
	m.Start()

	net.status = LinkUp
	clk.Advance(500)
	m.Tick(clk.Now())

	if m.State() != StateOperational {
		t.Errorf("State = %v, want OPERATIONAL", m.State())
	}
}

func TestValidationTimeoutFallsBackToProvisioning(t *testing.T) {
	net := &fakeNetwork{status: LinkConnecting}
	clk := clock.NewFake(0)
	m, store := newTestManager(t, net, &fakeMessaging{}, clk)
	store.Save("Home", "pw")
	m.Start()

	// Inside the bound: still validating.
	clk.Advance(ValidationTimeout)
	m.Tick(clk.Now())
	if m.State() != StateValidating {
		t.Fatalf("State = %v, want VALIDATING inside timeout", m.State())
	}

	clk.Advance(1)
	m.Tick(clk.Now())
	if m.State() != StateProvisioning {
		t.Errorf("State = %v, want PROVISIONING after timeout", m.State())
	}
	if !net.apUp {
		t.Error("access point not started after validation timeout")
	}
}

func TestHealthCheckEscalationAfterFiveLosses(t *testing.T) {
	net := &fakeNetwork{status: LinkConnecting}
	clk := clock.NewFake(0)
	m, store := newTestManager(t, net, &fakeMessaging{}, clk)
	store.Save("Home", "pw")
	m.Start()

	net.status = LinkUp
	m.Tick(clk.Now())
	if m.State() != StateOperational {
		t.Fatalf("State = %v, want OPERATIONAL", m.State())
	}

	// Simulate persistent loss across health checks.
	net.status = LinkDown
	for i := 1; i <= 4; i++ {
		clk.Advance(HealthCheckInterval + 1)
		m.Tick(clk.Now())
		if m.State() == StateProvisioning {
			t.Fatalf("escalated to PROVISIONING after %d losses, want 5", i)
		}
	}
	if m.State() != StateDegraded {
		t.Errorf("State = %v, want DEGRADED during recovery", m.State())
	}
	if m.LinkRetries() != 4 {
		t.Errorf("LinkRetries = %d, want 4", m.LinkRetries())
	}

	clk.Advance(HealthCheckInterval + 1)
	m.Tick(clk.Now())
	if m.State() != StateProvisioning {
		t.Errorf("State = %v, want PROVISIONING after 5th loss", m.State())
	}
}

func TestHealthCheckRecoveryResetsRetries(t *testing.T) {
	net := &fakeNetwork{status: LinkConnecting}
	clk := clock.NewFake(0)
	m, store := newTestManager(t, net, &fakeMessaging{}, clk)
	store.Save("Home", "pw")
	m.Start()

	net.status = LinkUp
	m.Tick(clk.Now())

	net.status = LinkDown
	for i := 0; i < 3; i++ {
		clk.Advance(HealthCheckInterval + 1)
		m.Tick(clk.Now())
	}
	if m.State() != StateDegraded {
		t.Fatalf("State = %v, want DEGRADED", m.State())
	}

	net.status = LinkUp
	clk.Advance(HealthCheckInterval + 1)
	m.Tick(clk.Now())

	if m.State() != StateOperational {
		t.Errorf("State = %v, want OPERATIONAL after recovery", m.State())
	}
	if m.LinkRetries() != 0 {
		t.Errorf("LinkRetries = %d, want 0 after recovery", m.LinkRetries())
	}

	// Losses after a recovery start counting from zero again.
	net.status = LinkDown
	for i := 0; i < 4; i++ {
		clk.Advance(HealthCheckInterval + 1)
		m.Tick(clk.Now())
	}
	if m.State() == StateProvisioning {
		t.Error("escalated with fewer than 5 consecutive losses after recovery")
	}
}

func TestPumpMessagingBoundedReconnect(t *testing.T) {
	net := &fakeNetwork{status: LinkConnecting}
	msg := &fakeMessaging{}
	clk := clock.NewFake(0)
	m, store := newTestManager(t, net, msg, clk)
	store.Save("Home", "pw")
	m.Start()
	net.status = LinkUp
	m.Tick(clk.Now())

	// Never connects: attempts are bounded per tick.
	m.PumpMessaging()
	if msg.reconnects != MaxReconnectAttempts {
		t.Errorf("reconnects = %d, want %d", msg.reconnects, MaxReconnectAttempts)
	}
	if msg.polls != 1 {
		t.Errorf("polls = %d, want 1", msg.polls)
	}

	// Connects on the second attempt of the next tick.
	msg.reconnects = 0
	msg.connectOnTry = 2
	m.PumpMessaging()
	if msg.reconnects != 2 {
		t.Errorf("reconnects = %d, want 2 (stop once connected)", msg.reconnects)
	}
}

func TestPumpMessagingSkippedOutsideOperational(t *testing.T) {
	net := &fakeNetwork{}
	msg := &fakeMessaging{}
	m, _ := newTestManager(t, net, msg, clock.NewFake(0))
	m.Start() // provisioning

	m.PumpMessaging()
	if msg.reconnects != 0 || msg.polls != 0 {
		t.Error("messaging pumped while provisioning")
	}
}

func TestAttemptConnectSuccess(t *testing.T) {
	net := &fakeNetwork{ip: "192.168.1.40"}
	clk := clock.NewFake(0)
	m, store := newTestManager(t, net, &fakeMessaging{}, clk)
	m.Start() // provisioning (no credentials)

	net.onJoin = func() { net.status = LinkUp }

	ip, err := m.AttemptConnect("Home", "secret1")
	if err != nil {
		t.Fatalf("AttemptConnect failed: %v", err)
	}
	if ip != "192.168.1.40" {
		t.Errorf("ip = %q", ip)
	}
	if m.State() != StateOperational {
		t.Errorf("State = %v, want OPERATIONAL", m.State())
	}
	if net.apUp {
		t.Error("access point still up after successful provisioning")
	}

	creds, err := store.Load()
	if err != nil || creds == nil {
		t.Fatalf("Load after provisioning = (%v, %v)", creds, err)
	}
	if creds.SSID != "Home" || creds.Password != "secret1" {
		t.Errorf("persisted = %+v", creds)
	}
}

func TestAttemptConnectFailureStaysProvisioning(t *testing.T) {
	net := &fakeNetwork{}
	clk := clock.NewFake(0)
	m, store := newTestManager(t, net, &fakeMessaging{}, clk)
	m.Start()

	net.onJoin = func() { net.status = LinkDown }

	if _, err := m.AttemptConnect("Home", "bad"); !errors.Is(err, ErrConnectFailed) {
		t.Errorf("AttemptConnect = %v, want ErrConnectFailed", err)
	}
	if m.State() != StateProvisioning {
		t.Errorf("State = %v, want PROVISIONING after failed attempt", m.State())
	}
	if creds, _ := store.Load(); creds != nil {
		t.Error("failed attempt persisted credentials")
	}
}

func TestAttemptConnectTimeout(t *testing.T) {
	net := &fakeNetwork{}
	clk := clock.NewFake(0)
	m, _ := newTestManager(t, net, &fakeMessaging{}, clk)
	m.Start()

	net.onJoin = func() { net.status = LinkConnecting }
	// Each poll sleep advances the fake clock past the bound eventually.
	m.sleep = func(time.Duration) { clk.Advance(5_000) }

	if _, err := m.AttemptConnect("Home", "pw"); !errors.Is(err, ErrConnectFailed) {
		t.Errorf("AttemptConnect = %v, want ErrConnectFailed on timeout", err)
	}
}

func TestAttemptConnectRejectedOutsideProvisioning(t *testing.T) {
	net := &fakeNetwork{status: LinkConnecting}
	clk := clock.NewFake(0)
	m, store := newTestManager(t, net, &fakeMessaging{}, clk)
	store.Save("Home", "pw")
	m.Start() // validating

	if _, err := m.AttemptConnect("Other", "pw"); !errors.Is(err, ErrNotProvisioning) {
		t.Errorf("AttemptConnect = %v, want ErrNotProvisioning", err)
	}
}

func TestClearCredentialsSchedulesRestart(t *testing.T) {
	net := &fakeNetwork{}
	store := newTestStore(t)
	store.Save("Home", "pw")

	restarted := false
	cfg := DefaultConfig()
	cfg.Restart = func() { restarted = true }
	m := NewManager(cfg, store, net, &fakeMessaging{}, clock.NewFake(0), nil, nil)

	if err := m.ClearCredentials(); err != nil {
		t.Fatalf("ClearCredentials failed: %v", err)
	}
	if !restarted {
		t.Error("restart not scheduled")
	}
	if creds, _ := store.Load(); creds != nil {
		t.Error("credentials survived clear")
	}
}

func TestSetControlSecret(t *testing.T) {
	net := &fakeNetwork{}
	m, store := newTestManager(t, net, &fakeMessaging{}, clock.NewFake(0))

	if err := m.SetControlSecret("abc"); !errors.Is(err, ErrSecretTooShort) {
		t.Errorf("SetControlSecret(abc) = %v, want ErrSecretTooShort", err)
	}
	if err := m.SetControlSecret("abcd"); err != nil {
		t.Errorf("SetControlSecret(abcd) = %v", err)
	}
	if store.Secret() != "abcd" {
		t.Errorf("Secret = %q, want abcd", store.Secret())
	}
}

func TestEnterProvisioningDisconnectsMessaging(t *testing.T) {
	net := &fakeNetwork{status: LinkConnecting}
	msg := &fakeMessaging{connected: true}
	clk := clock.NewFake(0)
	m, store := newTestManager(t, net, msg, clk)
	store.Save("Home", "pw")
	m.Start()
	net.status = LinkUp
	m.Tick(clk.Now())

	// Force escalation.
	net.status = LinkDown
	for i := 0; i < 5; i++ {
		clk.Advance(HealthCheckInterval + 1)
		m.Tick(clk.Now())
	}

	if msg.disconnects == 0 {
		t.Error("messaging session not dropped on fallback to provisioning")
	}
}

func TestStateChangeCallback(t *testing.T) {
	net := &fakeNetwork{}
	m, _ := newTestManager(t, net, &fakeMessaging{}, clock.NewFake(0))

	var transitions []string
	m.OnStateChange(func(oldState, newState State) {
		transitions = append(transitions, oldState.String()+">"+newState.String())
	})

	m.Start()

	if len(transitions) != 1 || transitions[0] != "STARTUP>PROVISIONING" {
		t.Errorf("transitions = %v", transitions)
	}
}
