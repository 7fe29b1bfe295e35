// Command duckrelay-console is an operator console for a duckrelay
// bridge: it publishes command messages to the device's command topic
// and watches the confirmation topic.
//
// Usage:
//
//	duckrelay-console -broker tcp://broker:1883 -device-id esp01 -password 1234
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/duckrelay/duckrelay-go/pkg/mqttlink"
)

// pollInterval paces confirmation watching while the prompt is idle.
const pollInterval = 200 * time.Millisecond

type commandMessage struct {
	Script   string `json:"script"`
	Repeat   bool   `json:"repeat"`
	Password string `json:"password"`
}

type console struct {
	client   *mqttlink.Client
	topics   mqttlink.Topics
	password string
	rl       *readline.Instance
}

func main() {
	var (
		broker   = flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
		username = flag.String("username", "", "MQTT username")
		mqttPass = flag.String("mqtt-password", "", "MQTT password")
		deviceID = flag.String("device-id", "duckrelay", "Target device identity")
		password = flag.String("password", "1234", "Control password sent with commands")
	)
	flag.Parse()

	topics := mqttlink.TopicsFor(*deviceID)

	// The console's inbound side is the device's confirmation stream.
	client := mqttlink.NewClient(mqttlink.Config{
		BrokerURL:      *broker,
		Username:       *username,
		Password:       *mqttPass,
		ClientIDPrefix: "duckrelay-console",
		CommandTopic:   topics.Confirm,
	}, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := client.Reconnect(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer client.Disconnect()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "duckrelay> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rl.Close()

	c := &console{
		client:   client,
		topics:   topics,
		password: *password,
		rl:       rl,
	}

	client.OnMessage(c.printConfirmation)
	go c.watch()

	fmt.Fprintf(rl.Stdout(), "Connected to %s, device %s\n", *broker, *deviceID)
	c.printHelp()
	c.run()
}

// watch pumps confirmations onto the prompt's output.
func (c *console) watch() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.client.Poll()
	}
}

func (c *console) printConfirmation(topic string, payload []byte) {
	var confirm struct {
		EspID         string `json:"esp_id"`
		Command       string `json:"command"`
		Status        string `json:"status"`
		ExecutionTime int64  `json:"execution_time"`
	}
	if err := json.Unmarshal(payload, &confirm); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "<- %s: %s\n", topic, payload)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "<- %s: %q %s in %dms\n",
		confirm.EspID, confirm.Command, confirm.Status, confirm.ExecutionTime)
}

func (c *console) run() {
	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.SplitN(input, " ", 2)
		cmd := strings.ToLower(parts[0])
		arg := ""
		if len(parts) > 1 {
			arg = parts[1]
		}

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "send", "s":
			c.publish(arg, false)

		case "repeat", "r":
			c.publish(arg, true)

		case "password", "pw":
			if arg == "" {
				fmt.Fprintln(c.rl.Stdout(), "usage: password <control password>")
				continue
			}
			c.password = arg
			fmt.Fprintln(c.rl.Stdout(), "control password updated")

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *console) publish(script string, repeat bool) {
	if script == "" {
		fmt.Fprintln(c.rl.Stdout(), "usage: send <script>")
		return
	}

	payload, err := json.Marshal(commandMessage{
		Script:   script,
		Repeat:   repeat,
		Password: c.password,
	})
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "encode failed: %v\n", err)
		return
	}

	if err := c.client.Publish(c.topics.Command, payload); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "publish failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "-> %s (repeat=%v)\n", c.topics.Command, repeat)
}

func (c *console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
DuckRelay Console Commands:
  send <script>     - Send a script (repeat not allowed)
  repeat <script>   - Send a script with the repeat flag set
  password <value>  - Change the control password used for commands
  help              - Show this help
  quit              - Exit`)
}
