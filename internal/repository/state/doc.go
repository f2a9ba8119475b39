// Package state implements persistence for the security system state.
//
// The Repository interface covers everything the controller reads and
// writes: arming status, alarm status, the cat detection flag and the sensor
// set. Three implementations are provided: an in-memory store, a JSON file
// store and a bbolt-backed store.
package state
