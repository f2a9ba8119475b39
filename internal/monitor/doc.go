// Package monitor exposes a small HTTP surface over the running controller:
// a JSON status snapshot and the last analyzed camera frame with detection
// regions drawn in.
package monitor
