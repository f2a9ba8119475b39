// Package daemon wires the sentinel-server process together: configuration,
// state store, cat detector, the security controller, the MQTT bridge and
// the HTTP monitor.
package daemon
