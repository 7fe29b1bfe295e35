// Package connectivity implements the network-identity lifecycle state
// machine of the bridge.
//
// The device is either provisioning (local access point + configuration
// server) or operational (station link + messaging channel), never
// both. Startup validates stored credentials under a bounded timeout;
// operational mode polls link health every second and falls back to
// provisioning after five consecutive losses. All waits are polled
// against the monotonic tick counter; the only blocking sequences are
// the explicit, internally bounded connection tests requested through
// the provisioning flow.
package connectivity
