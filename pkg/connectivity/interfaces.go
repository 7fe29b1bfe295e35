package connectivity

// NetworkInfo describes one visible wireless network.
type NetworkInfo struct {
	SSID string
	RSSI int
}

// Network is the wireless-primitives collaborator. Implementations wrap
// whatever radio or host networking stack is underneath; the manager
// only drives the logical station/access-point lifecycle.
type Network interface {
	// Scan returns visible networks in scan order.
	Scan() ([]NetworkInfo, error)

	// Join begins a station association with the given credentials.
	// It returns once the attempt has started; progress is observed
	// through Status.
	Join(ssid, password string) error

	// Status reports the current station link status.
	Status() LinkStatus

	// LocalIP returns the station address, or "" when not connected.
	LocalIP() string

	// Leave tears down the station association.
	Leave() error

	// StartAccessPoint brings up the local provisioning AP.
	StartAccessPoint(ssid, password string) error

	// StopAccessPoint tears the provisioning AP down.
	StopAccessPoint() error
}

// Messaging is the network messaging collaborator (the MQTT client).
// The manager only needs its connection lifecycle; message routing is
// wired by the bridge.
type Messaging interface {
	// Connected reports whether the messaging session is up.
	Connected() bool

	// Reconnect makes one attempt to establish the session and
	// resubscribe. It is invoked a bounded number of times per tick.
	Reconnect() error

	// Poll services the client (dispatch inbound messages, keepalive).
	Poll()

	// Disconnect drops the session without graceful drain.
	Disconnect()
}
