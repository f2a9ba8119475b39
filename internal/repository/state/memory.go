package state

import (
	"context"
	"sync"

	domain "home-sentinel/internal/domain/security"
)

// MemoryRepository keeps the whole system state in process memory.
// It is the default backend and the reference implementation for tests.
type MemoryRepository struct {
	// mu protects all fields below.
	mu sync.RWMutex
	// armingStatus is the current arming status.
	armingStatus domain.ArmingStatus
	// alarmStatus is the current alarm status.
	alarmStatus domain.AlarmStatus
	// catDetected is the current cat detection flag.
	catDetected bool
	// sensors maps sensor names to their stored state.
	sensors map[string]*domain.Sensor
}

// NewMemoryRepository creates an empty repository in the disarmed, quiet state.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		armingStatus: domain.ArmingStatusDisarmed,
		alarmStatus:  domain.AlarmStatusNoAlarm,
		sensors:      make(map[string]*domain.Sensor),
	}
}

// ArmingStatus returns the current arming status.
func (r *MemoryRepository) ArmingStatus(_ context.Context) (domain.ArmingStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.armingStatus, nil
}

// SetArmingStatus persists a new arming status.
func (r *MemoryRepository) SetArmingStatus(_ context.Context, status domain.ArmingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.armingStatus = status

	return nil
}

// AlarmStatus returns the current alarm status.
func (r *MemoryRepository) AlarmStatus(_ context.Context) (domain.AlarmStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.alarmStatus, nil
}

// SetAlarmStatus persists a new alarm status.
func (r *MemoryRepository) SetAlarmStatus(_ context.Context, status domain.AlarmStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.alarmStatus = status

	return nil
}

// CatDetected returns whether the camera currently shows a cat.
func (r *MemoryRepository) CatDetected(_ context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.catDetected, nil
}

// SetCatDetected persists the cat detection flag.
func (r *MemoryRepository) SetCatDetected(_ context.Context, detected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.catDetected = detected

	return nil
}

// Sensors returns clones of the known sensors ordered by name.
func (r *MemoryRepository) Sensors(_ context.Context) ([]*domain.Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sensors := make([]*domain.Sensor, 0, len(r.sensors))
	for _, sensor := range r.sensors {
		sensors = append(sensors, sensor.Clone())
	}

	domain.SortSensors(sensors)

	return sensors, nil
}

// AddSensor registers a new sensor.
func (r *MemoryRepository) AddSensor(_ context.Context, sensor *domain.Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sensors[sensor.Name]; ok {
		return ErrSensorExists
	}

	r.sensors[sensor.Name] = sensor.Clone()

	return nil
}

// RemoveSensor deletes the sensor with the given name.
func (r *MemoryRepository) RemoveSensor(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sensors[name]; !ok {
		return ErrSensorNotFound
	}

	delete(r.sensors, name)

	return nil
}

// UpdateSensor persists the state of a known sensor.
func (r *MemoryRepository) UpdateSensor(_ context.Context, sensor *domain.Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sensors[sensor.Name]; !ok {
		return ErrSensorNotFound
	}

	r.sensors[sensor.Name] = sensor.Clone()

	return nil
}

// snapshot captures the full state for the persistent backends.
func (r *MemoryRepository) snapshot() snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sensors := make([]*domain.Sensor, 0, len(r.sensors))
	for _, sensor := range r.sensors {
		sensors = append(sensors, sensor.Clone())
	}

	domain.SortSensors(sensors)

	return snapshot{
		ArmingStatus: r.armingStatus,
		AlarmStatus:  r.alarmStatus,
		CatDetected:  r.catDetected,
		Sensors:      sensors,
	}
}

// restore replaces the full state from a persisted snapshot.
func (r *MemoryRepository) restore(snap snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.armingStatus = snap.ArmingStatus
	r.alarmStatus = snap.AlarmStatus
	r.catDetected = snap.CatDetected
	r.sensors = make(map[string]*domain.Sensor, len(snap.Sensors))

	for _, sensor := range snap.Sensors {
		r.sensors[sensor.Name] = sensor.Clone()
	}
}
