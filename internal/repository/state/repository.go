package state

import (
	"context"
	"errors"

	domain "home-sentinel/internal/domain/security"
)

// Repository defines persistence operations for the security system state.
// The controller is the only mutator; transports and monitors read through it.
type Repository interface {
	// ArmingStatus returns the current arming status.
	ArmingStatus(ctx context.Context) (domain.ArmingStatus, error)
	// SetArmingStatus persists a new arming status.
	SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error
	// AlarmStatus returns the current alarm status.
	AlarmStatus(ctx context.Context) (domain.AlarmStatus, error)
	// SetAlarmStatus persists a new alarm status.
	SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error
	// CatDetected returns whether the camera currently shows a cat.
	CatDetected(ctx context.Context) (bool, error)
	// SetCatDetected persists the cat detection flag.
	SetCatDetected(ctx context.Context, detected bool) error
	// Sensors returns the known sensors ordered by name.
	Sensors(ctx context.Context) ([]*domain.Sensor, error)
	// AddSensor registers a new sensor.
	AddSensor(ctx context.Context, sensor *domain.Sensor) error
	// RemoveSensor deletes the sensor with the given name.
	RemoveSensor(ctx context.Context, name string) error
	// UpdateSensor persists the state of a known sensor.
	UpdateSensor(ctx context.Context, sensor *domain.Sensor) error
}

var (
	// ErrNotFound is returned when a state file or record does not exist yet.
	ErrNotFound = errors.New("state not found")
	// ErrSensorNotFound is returned when updating or removing an unknown sensor.
	ErrSensorNotFound = errors.New("sensor not found")
	// ErrSensorExists is returned when adding a sensor whose name is taken.
	ErrSensorExists = errors.New("sensor already exists")
)

// snapshot is the serialized form shared by the file and bolt backends.
type snapshot struct {
	// ArmingStatus is the persisted arming status.
	ArmingStatus domain.ArmingStatus `json:"arming_status"`
	// AlarmStatus is the persisted alarm status.
	AlarmStatus domain.AlarmStatus `json:"alarm_status"`
	// CatDetected is the persisted cat detection flag.
	CatDetected bool `json:"cat_detected"`
	// Sensors is the persisted sensor set.
	Sensors []*domain.Sensor `json:"sensors"`
}

// defaultSnapshot is the state of a freshly installed system.
func defaultSnapshot() snapshot {
	return snapshot{
		ArmingStatus: domain.ArmingStatusDisarmed,
		AlarmStatus:  domain.AlarmStatusNoAlarm,
	}
}
