// Package bridge is the controller tying the system together: inbound
// broker commands pass the authentication and dedup gate, accepted
// ones are relayed over the serial link, and terminal acknowledgements
// are republished as execution confirmations.
//
// The bridge is cooperative and single-threaded. One Tick per loop
// pass services messaging, drains relay responses, runs the
// connectivity health check, and releases expired relay waits.
package bridge
