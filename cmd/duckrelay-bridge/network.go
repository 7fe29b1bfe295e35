package main

import (
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/duckrelay/duckrelay-go/pkg/connectivity"
)

// hotspotName is the NetworkManager connection name used for the
// provisioning access point.
const hotspotName = "duckrelay-hotspot"

// nmcliNetwork drives the host's wireless interface through nmcli. A
// station attempt runs on its own goroutine because nmcli blocks; the
// connectivity manager observes progress through Status.
type nmcliNetwork struct {
	iface string

	mu      sync.Mutex
	joining bool
	joinErr error
}

func newNMCLINetwork(iface string) *nmcliNetwork {
	return &nmcliNetwork{iface: iface}
}

func (n *nmcliNetwork) Scan() ([]connectivity.NetworkInfo, error) {
	out, err := exec.Command("nmcli", "-t", "-f", "SSID,SIGNAL",
		"dev", "wifi", "list", "ifname", n.iface, "--rescan", "yes").Output()
	if err != nil {
		return nil, fmt.Errorf("nmcli scan: %w", err)
	}

	var networks []connectivity.NetworkInfo
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		idx := strings.LastIndex(line, ":")
		if idx <= 0 {
			continue
		}
		ssid := line[:idx]
		signal, err := strconv.Atoi(line[idx+1:])
		if err != nil || ssid == "" {
			continue
		}
		// nmcli reports signal 0-100; map to an approximate dBm value.
		networks = append(networks, connectivity.NetworkInfo{
			SSID: ssid,
			RSSI: signal/2 - 100,
		})
	}
	return networks, nil
}

func (n *nmcliNetwork) Join(ssid, password string) error {
	n.mu.Lock()
	if n.joining {
		n.mu.Unlock()
		return nil
	}
	n.joining = true
	n.joinErr = nil
	n.mu.Unlock()

	go func() {
		err := exec.Command("nmcli", "dev", "wifi", "connect", ssid,
			"password", password, "ifname", n.iface).Run()

		n.mu.Lock()
		n.joining = false
		n.joinErr = err
		n.mu.Unlock()
	}()
	return nil
}

func (n *nmcliNetwork) Status() connectivity.LinkStatus {
	n.mu.Lock()
	joining, joinErr := n.joining, n.joinErr
	n.mu.Unlock()

	if joining {
		return connectivity.LinkConnecting
	}
	if joinErr != nil {
		return connectivity.LinkDown
	}

	out, err := exec.Command("nmcli", "-t", "-f", "DEVICE,STATE", "dev", "status").Output()
	if err != nil {
		return connectivity.LinkDown
	}
	for _, line := range strings.Split(string(out), "\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 && parts[0] == n.iface {
			switch parts[1] {
			case "connected":
				return connectivity.LinkUp
			case "connecting", "connecting (configuring)", "connecting (getting IP configuration)":
				return connectivity.LinkConnecting
			default:
				return connectivity.LinkDown
			}
		}
	}
	return connectivity.LinkIdle
}

func (n *nmcliNetwork) LocalIP() string {
	iface, err := net.InterfaceByName(n.iface)
	if err != nil {
		return ""
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String()
			}
		}
	}
	return ""
}

func (n *nmcliNetwork) Leave() error {
	return exec.Command("nmcli", "dev", "disconnect", n.iface).Run()
}

func (n *nmcliNetwork) StartAccessPoint(ssid, password string) error {
	if err := exec.Command("nmcli", "dev", "wifi", "hotspot",
		"ifname", n.iface, "con-name", hotspotName,
		"ssid", ssid, "password", password).Run(); err != nil {
		return fmt.Errorf("nmcli hotspot: %w", err)
	}
	return nil
}

func (n *nmcliNetwork) StopAccessPoint() error {
	return exec.Command("nmcli", "connection", "down", hotspotName).Run()
}

var _ connectivity.Network = (*nmcliNetwork)(nil)
