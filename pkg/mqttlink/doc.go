// Package mqttlink is the MQTT session layer: one broker client per
// device, subscribed to the device's command topic and publishing its
// execution confirmations.
//
// The client buffers inbound messages internally and hands them out
// only from Poll, keeping message handling on the controller loop's
// goroutine.
package mqttlink
