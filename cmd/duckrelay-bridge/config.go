package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the bridge configuration, from flags and optionally a
// YAML file. Flags win over the file.
type Config struct {
	// DeviceID derives the broker topics and stamps confirmations.
	DeviceID string `yaml:"device_id"`

	MQTT struct {
		Broker   string `yaml:"broker"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"mqtt"`

	Serial struct {
		Device string `yaml:"device"`
		Baud   int    `yaml:"baud"`
	} `yaml:"serial"`

	Network struct {
		// Interface is the wireless interface driven over nmcli.
		Interface string `yaml:"interface"`

		// APSSID and APPassword identify the provisioning hotspot.
		APSSID     string `yaml:"ap_ssid"`
		APPassword string `yaml:"ap_password"`
	} `yaml:"network"`

	Provision struct {
		// Addr is the provisioning HTTP listen address.
		Addr string `yaml:"addr"`

		// Port must match Addr; it is what mDNS announces.
		Port int `yaml:"port"`
	} `yaml:"provision"`

	// FlashPath is the credential store backing file.
	FlashPath string `yaml:"flash_path"`

	// EventLog is the structured event capture file. Empty disables it.
	EventLog string `yaml:"event_log"`

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	var cfg Config
	cfg.DeviceID = "duckrelay"
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.Serial.Device = "/dev/ttyACM0"
	cfg.Serial.Baud = 115200
	cfg.Network.Interface = "wlan0"
	cfg.Network.APSSID = "DuckRelay_Setup"
	cfg.Network.APPassword = "12345678"
	cfg.Provision.Addr = ":8080"
	cfg.Provision.Port = 8080
	cfg.FlashPath = "duckrelay-store.bin"
	cfg.LogLevel = "info"
	return cfg
}

// loadConfigFile merges a YAML file over cfg.
func loadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
