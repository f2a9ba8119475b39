// Package security contains core domain types for the alarm decision logic.
//
// It defines the AlarmStatus and ArmingStatus enumerations, the Sensor
// entity and a Clone helper to avoid leaking internal references.
package security
