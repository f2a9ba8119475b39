// Package mqtt bridges the security controller to an MQTT broker. It
// subscribes the configured sensor topics, the camera frame topic and the
// arming command topic, and publishes alarm status and cat detection results
// back out as retained messages.
package mqtt
