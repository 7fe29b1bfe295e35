// Package provision implements the device's provisioning surface: the
// HTTP configuration server reachable over the setup access point, and
// the mDNS announcement that makes it findable.
//
// The package is transport only. Scanning, connection testing,
// credential persistence, and control-secret validation are delegated
// to the Controller (the connectivity manager); the endpoints here
// carry no authentication or deduplication of their own.
package provision
