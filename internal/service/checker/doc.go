// Package checker implements the sentinel-checker loop: it verifies a
// sentinel-server process is running on the machine and polls the monitor
// endpoint for the current alarm state.
package checker
