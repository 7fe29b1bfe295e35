package mqttlink

// Topics holds the device's broker topics, derived from its ID.
type Topics struct {
	// Command carries inbound execution requests.
	Command string

	// Confirm carries outbound execution confirmations.
	Confirm string
}

// TopicsFor derives the topic pair for a device ID.
func TopicsFor(deviceID string) Topics {
	return Topics{
		Command: deviceID + "/ducky_script",
		Confirm: deviceID + "/pico_execution_done",
	}
}
