// Package config defines the daemon settings and provides helpers to load,
// validate and save them in YAML format.
//
// The Config type holds the MQTT broker connection, the sensor and camera
// topic map, the cat-detection service URL, the state store backend and the
// monitor listen address.
package config
