// Package security implements the alarm decision logic.
//
// The Service receives arming changes, sensor activity and camera frames,
// decides the resulting alarm status and forwards every state change to the
// state repository. Observers subscribe through the listener registry and
// are notified synchronously after each change.
package security
