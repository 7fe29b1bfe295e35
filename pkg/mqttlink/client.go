package mqttlink

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/duckrelay/duckrelay-go/pkg/connectivity"
)

const (
	// inboundQueueSize bounds messages buffered between the broker
	// callback and Poll. Overflow drops the oldest behavior is not
	// needed; new messages are dropped and logged instead.
	inboundQueueSize = 32

	// connectTimeout bounds one broker connection attempt.
	connectTimeout = 5 * time.Second

	// disconnectQuiesce is the paho disconnect drain in milliseconds.
	disconnectQuiesce = 250
)

// ErrNotConnected is returned by Publish when the session is down.
var ErrNotConnected = errors.New("mqttlink: not connected")

// MessageHandler receives one inbound message. Handlers run on the
// Poll caller's goroutine, never on the broker client's.
type MessageHandler func(topic string, payload []byte)

// Config configures a Client.
type Config struct {
	// BrokerURL is the broker address, e.g. "tcp://broker:1883".
	BrokerURL string
	Username  string
	Password  string

	// ClientIDPrefix is prepended to a random suffix on every
	// connection attempt, so a half-open stale session on the broker
	// never collides with the new one.
	ClientIDPrefix string

	// CommandTopic is subscribed on every (re)connect.
	CommandTopic string

	// QoS applies to the subscription and to Publish.
	QoS byte
}

type inbound struct {
	topic   string
	payload []byte
}

// Client is the broker session. Inbound messages are buffered on the
// broker client's goroutine and delivered synchronously from Poll, so
// the rest of the system stays single-threaded.
type Client struct {
	cfg    Config
	logger *slog.Logger

	client  mqtt.Client
	queue   chan inbound
	handler MessageHandler

	// newClient builds the underlying broker client; replaced in tests.
	newClient func(opts *mqtt.ClientOptions) mqtt.Client
}

// NewClient creates a broker client. logger may be nil. The session is
// not established until Reconnect.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		cfg:       cfg,
		logger:    logger,
		queue:     make(chan inbound, inboundQueueSize),
		newClient: mqtt.NewClient,
	}
}

// OnMessage sets the handler invoked from Poll for each inbound
// message on the command topic.
func (c *Client) OnMessage(fn MessageHandler) {
	c.handler = fn
}

// Connected reports whether the broker session is up.
func (c *Client) Connected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Reconnect makes one attempt to establish the session and subscribe
// to the command topic. A fresh randomized client ID is used per
// attempt.
func (c *Client) Reconnect() error {
	if c.Connected() {
		return nil
	}
	if c.client != nil {
		c.client.Disconnect(0)
		c.client = nil
	}

	clientID := fmt.Sprintf("%s-%s", c.cfg.ClientIDPrefix, uuid.NewString()[:8])

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.BrokerURL)
	opts.SetClientID(clientID)
	opts.SetUsername(c.cfg.Username)
	opts.SetPassword(c.cfg.Password)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(connectTimeout)

	client := c.newClient(opts)

	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqttlink: connect %s: %w", c.cfg.BrokerURL, err)
	}

	sub := client.Subscribe(c.cfg.CommandTopic, c.cfg.QoS, c.enqueue)
	sub.Wait()
	if err := sub.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqttlink: subscribe %s: %w", c.cfg.CommandTopic, err)
	}

	c.client = client
	c.logger.Info("broker session established",
		"broker", c.cfg.BrokerURL, "client_id", clientID, "topic", c.cfg.CommandTopic)
	return nil
}

// enqueue runs on the broker client's goroutine.
func (c *Client) enqueue(_ mqtt.Client, msg mqtt.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	select {
	case c.queue <- inbound{topic: msg.Topic(), payload: payload}:
	default:
		c.logger.Warn("inbound queue full, dropping message", "topic", msg.Topic())
	}
}

// Poll delivers all currently queued inbound messages to the handler.
func (c *Client) Poll() {
	for {
		select {
		case in := <-c.queue:
			if c.handler != nil {
				c.handler(in.topic, in.payload)
			}
		default:
			return
		}
	}
}

// Publish sends one message and waits for the client's acknowledgement
// at the configured QoS.
func (c *Client) Publish(topic string, payload []byte) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, c.cfg.QoS, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqttlink: publish %s: %w", topic, err)
	}
	return nil
}

// Disconnect drops the session.
func (c *Client) Disconnect() {
	if c.client != nil {
		c.client.Disconnect(disconnectQuiesce)
		c.client = nil
	}
}

var _ connectivity.Messaging = (*Client)(nil)
