package provision

import (
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

const (
	// ServiceTypeSetup is the mDNS service type announced while the
	// device is in provisioning mode.
	ServiceTypeSetup = "_duckrelay-setup._tcp"

	// Domain is the mDNS domain.
	Domain = "local."
)

// AdvertiserConfig configures the setup advertiser.
type AdvertiserConfig struct {
	// DeviceID becomes the service instance name.
	DeviceID string

	// Port is the provisioning server's TCP port.
	Port int

	// Interface restricts advertising to a named interface. Empty
	// means all interfaces.
	Interface string
}

// SetupAdvertiser announces the provisioning server over mDNS so the
// setup page is findable without knowing the access point address.
type SetupAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewSetupAdvertiser creates a setup advertiser.
func NewSetupAdvertiser(config AdvertiserConfig) *SetupAdvertiser {
	return &SetupAdvertiser{config: config}
}

// getInterfaces returns the network interfaces to advertise on.
// Returns nil to use all interfaces.
func (a *SetupAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Start begins advertising. A previous announcement is replaced.
func (a *SetupAdvertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	txt := []string{"id=" + a.config.DeviceID}

	server, err := zeroconf.Register(
		a.config.DeviceID,
		ServiceTypeSetup,
		Domain,
		a.config.Port,
		txt,
		a.getInterfaces(),
	)
	if err != nil {
		return fmt.Errorf("failed to register setup service: %w", err)
	}

	a.server = server
	return nil
}

// Stop withdraws the announcement.
func (a *SetupAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
