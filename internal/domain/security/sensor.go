package security

import "sort"

// SensorType is the kind of device a sensor is.
type SensorType string

const (
	// SensorTypeDoor is a door contact sensor.
	SensorTypeDoor SensorType = "door"
	// SensorTypeWindow is a window contact sensor.
	SensorTypeWindow SensorType = "window"
	// SensorTypeMotion is a motion detector.
	SensorTypeMotion SensorType = "motion"
)

// Sensor is a named device with an activation flag. The name is the sensor's
// identity: two sensors with the same name describe the same device.
type Sensor struct {
	// Name uniquely identifies the sensor.
	Name string `json:"name" yaml:"name"`
	// Type is the kind of device (door, window, motion).
	Type SensorType `json:"type" yaml:"type"`
	// Active indicates whether the sensor is currently tripped.
	Active bool `json:"active" yaml:"active"`
}

// NewSensor creates an inactive sensor of the given type.
func NewSensor(name string, sensorType SensorType) *Sensor {
	return &Sensor{
		Name: name,
		Type: sensorType,
	}
}

// Clone returns a copy of the sensor and handles nil safely.
func (s *Sensor) Clone() *Sensor {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}

// SortSensors orders sensors by name in place so walks over the set are
// deterministic.
func SortSensors(sensors []*Sensor) {
	sort.Slice(sensors, func(i, j int) bool {
		return sensors[i].Name < sensors[j].Name
	})
}
