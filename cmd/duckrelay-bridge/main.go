// Command duckrelay-bridge is the network side of the relay pair: it
// accepts command messages from an MQTT broker, authenticates and
// deduplicates them, forwards accepted scripts over a serial link to
// the executor, and republishes execution confirmations.
//
// Usage:
//
//	duckrelay-bridge [flags]
//
// Flags:
//
//	-config string     YAML configuration file path
//	-device-id string  Device identity; derives the broker topics
//	-broker string     MQTT broker URL (default "tcp://localhost:1883")
//	-serial string     Serial device of the executor (default "/dev/ttyACM0")
//	-baud int          Serial baud rate (default 115200)
//	-iface string      Wireless interface (default "wlan0")
//	-flash string      Credential store backing file
//	-event-log string  Structured event capture file (empty disables)
//	-log-level string  debug, info, warn, error (default "info")
//	-factory-reset     Wipe stored credentials and start provisioning
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/duckrelay/duckrelay-go/pkg/bridge"
	"github.com/duckrelay/duckrelay-go/pkg/clock"
	"github.com/duckrelay/duckrelay-go/pkg/connectivity"
	"github.com/duckrelay/duckrelay-go/pkg/credstore"
	"github.com/duckrelay/duckrelay-go/pkg/gate"
	"github.com/duckrelay/duckrelay-go/pkg/log"
	"github.com/duckrelay/duckrelay-go/pkg/mqttlink"
	"github.com/duckrelay/duckrelay-go/pkg/provision"
	"github.com/duckrelay/duckrelay-go/pkg/relay"
)

// tickInterval paces the controller loop. The health-check and
// timeout cadences live in their packages; the loop just has to be
// comfortably faster than both.
const tickInterval = 50 * time.Millisecond

// restartDelay lets the provisioning HTTP response flush before the
// process exits for a restart.
const restartDelay = time.Second

func main() {
	cfg, factoryReset := parseFlags()

	logger := newLogger(cfg.LogLevel)
	events, closeEvents, err := newEventLogger(cfg, logger)
	if err != nil {
		logger.Error("event log setup failed", "err", err)
		os.Exit(1)
	}
	defer closeEvents()

	flash, err := credstore.NewFileFlash(cfg.FlashPath)
	if err != nil {
		logger.Error("open credential store", "path", cfg.FlashPath, "err", err)
		os.Exit(1)
	}
	store, err := credstore.Open(flash)
	if err != nil {
		logger.Error("read credential store", "path", cfg.FlashPath, "err", err)
		os.Exit(1)
	}

	port, err := relay.OpenSerialPort(cfg.Serial.Device, cfg.Serial.Baud)
	if err != nil {
		logger.Error("open serial port", "device", cfg.Serial.Device, "err", err)
		os.Exit(1)
	}
	defer port.Close()

	clk := clock.NewSystemClock()
	link := relay.New(port, clk, events)

	topics := mqttlink.TopicsFor(cfg.DeviceID)
	messaging := mqttlink.NewClient(mqttlink.Config{
		BrokerURL:      cfg.MQTT.Broker,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ClientIDPrefix: cfg.DeviceID,
		CommandTopic:   topics.Command,
	}, logger)

	network := newNMCLINetwork(cfg.Network.Interface)

	connCfg := connectivity.DefaultConfig()
	connCfg.APSSID = cfg.Network.APSSID
	connCfg.APPassword = cfg.Network.APPassword
	connCfg.ResetSignal = func() bool { return factoryReset }
	connCfg.Restart = func() {
		logger.Info("restart scheduled")
		time.AfterFunc(restartDelay, func() { os.Exit(0) })
	}
	conn := connectivity.NewManager(connCfg, store, network, messaging, clk, logger, events)

	b := bridge.New(bridge.Config{
		DeviceID:     cfg.DeviceID,
		Gate:         gate.New(store),
		Link:         link,
		Connectivity: conn,
		Publisher:    messaging,
		Clock:        clk,
		Logger:       logger,
		Events:       events,
	})

	messaging.OnMessage(func(topic string, payload []byte) {
		b.HandleCommand(payload)
	})

	// Provisioning HTTP handlers run on their own goroutines; this
	// mutex serializes them against the tick loop, which is the only
	// other writer to the shared state.
	var mu sync.Mutex

	prov := newProvisioner(cfg, &lockedController{mu: &mu, m: conn}, logger)
	b.OnStateChange(func(oldState, newState connectivity.State) {
		switch {
		case newState == connectivity.StateProvisioning:
			prov.start()
		case oldState == connectivity.StateProvisioning:
			prov.stop()
		}
	})

	logger.Info("starting bridge",
		"device_id", cfg.DeviceID,
		"broker", cfg.MQTT.Broker,
		"serial", cfg.Serial.Device,
		"command_topic", topics.Command)

	mu.Lock()
	b.Start()
	mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigCh:
			logger.Info("shutting down", "signal", sig.String())
			prov.stop()
			messaging.Disconnect()
			return
		case <-ticker.C:
			mu.Lock()
			b.Tick()
			mu.Unlock()
		}
	}
}

func parseFlags() (Config, bool) {
	var (
		configFile   = flag.String("config", "", "YAML configuration file path")
		deviceID     = flag.String("device-id", "", "Device identity; derives the broker topics")
		broker       = flag.String("broker", "", "MQTT broker URL")
		serialDev    = flag.String("serial", "", "Serial device of the executor")
		baud         = flag.Int("baud", 0, "Serial baud rate")
		iface        = flag.String("iface", "", "Wireless interface")
		flashPath    = flag.String("flash", "", "Credential store backing file")
		eventLog     = flag.String("event-log", "", "Structured event capture file")
		logLevel     = flag.String("log-level", "", "Log level: debug, info, warn, error")
		factoryReset = flag.Bool("factory-reset", false, "Wipe stored credentials and start provisioning")
	)
	flag.Parse()

	cfg := DefaultConfig()
	if *configFile != "" {
		if err := loadConfigFile(&cfg, *configFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	// Flags win over the file.
	if *deviceID != "" {
		cfg.DeviceID = *deviceID
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}
	if *serialDev != "" {
		cfg.Serial.Device = *serialDev
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *iface != "" {
		cfg.Network.Interface = *iface
	}
	if *flashPath != "" {
		cfg.FlashPath = *flashPath
	}
	if *eventLog != "" {
		cfg.EventLog = *eventLog
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	return cfg, *factoryReset
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// newEventLogger assembles the structured event capture: the file
// logger when configured, mirrored to slog at debug level.
func newEventLogger(cfg Config, logger *slog.Logger) (log.Logger, func(), error) {
	var loggers []log.Logger

	closeFn := func() {}
	if cfg.EventLog != "" {
		fl, err := log.NewFileLogger(cfg.EventLog)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, fl)
		closeFn = func() { fl.Close() }
	}
	if cfg.LogLevel == "debug" {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}

	switch len(loggers) {
	case 0:
		return log.NoopLogger{}, closeFn, nil
	case 1:
		return loggers[0], closeFn, nil
	default:
		return log.NewMultiLogger(loggers...), closeFn, nil
	}
}

// lockedController serializes the provisioning HTTP handlers with the
// tick loop.
type lockedController struct {
	mu *sync.Mutex
	m  *connectivity.Manager
}

func (c *lockedController) ScanNetworks() ([]connectivity.NetworkInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.ScanNetworks()
}

func (c *lockedController) AttemptConnect(ssid, password string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.AttemptConnect(ssid, password)
}

func (c *lockedController) ClearCredentials() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.ClearCredentials()
}

func (c *lockedController) SetControlSecret(secret string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.SetControlSecret(secret)
}

// provisioner owns the provisioning HTTP server and its mDNS
// announcement, started and stopped with the connectivity state.
type provisioner struct {
	cfg    Config
	ctrl   provision.Controller
	logger *slog.Logger

	srv *provision.Server
	adv *provision.SetupAdvertiser
}

func newProvisioner(cfg Config, ctrl provision.Controller, logger *slog.Logger) *provisioner {
	return &provisioner{cfg: cfg, ctrl: ctrl, logger: logger}
}

func (p *provisioner) start() {
	if p.srv != nil {
		return
	}

	p.srv = provision.NewServer(provision.ServerConfig{
		Addr:     p.cfg.Provision.Addr,
		DeviceID: p.cfg.DeviceID,
	}, p.ctrl, p.logger)
	go func(srv *provision.Server) {
		if err := srv.ListenAndServe(); err != nil {
			p.logger.Error("provisioning server failed", "err", err)
		}
	}(p.srv)

	p.adv = provision.NewSetupAdvertiser(provision.AdvertiserConfig{
		DeviceID:  p.cfg.DeviceID,
		Port:      p.cfg.Provision.Port,
		Interface: p.cfg.Network.Interface,
	})
	if err := p.adv.Start(); err != nil {
		p.logger.Warn("setup announcement failed", "err", err)
	}
}

func (p *provisioner) stop() {
	if p.srv == nil {
		return
	}

	if p.adv != nil {
		p.adv.Stop()
		p.adv = nil
	}

	// Deferred so the response of the request that triggered the stop
	// still reaches the client.
	srv := p.srv
	p.srv = nil
	time.AfterFunc(restartDelay, func() { srv.Close() })
}
