package security

import (
	"context"
	"fmt"
	"image"
	"sync"

	domain "home-sentinel/internal/domain/security"
	"home-sentinel/internal/imaging"
	"home-sentinel/internal/logger"
	repo "home-sentinel/internal/repository/state"
)

// catConfidenceThreshold is the fixed confidence the oracle is consulted at.
const catConfidenceThreshold = 0.5

// Service receives information about changes to the security system. It is
// responsible for forwarding updates to the repository and making every
// decision about changing the alarm status.
//
// The transition logic itself is sequential: callers are expected to drive
// it one event at a time. Only the listener registry carries its own lock.
type Service struct {
	// repo handles persistent storage of the system state.
	repo repo.Repository
	// detector is the oracle consulted for camera frames.
	detector imaging.Detector
	// mu protects the listener registries.
	mu sync.Mutex
	// statusListeners are notified after every alarm status change.
	statusListeners map[StatusListener]struct{}
	// catListeners are notified after every analyzed frame.
	catListeners map[CatDetectionListener]struct{}
}

// NewService creates a controller backed by the provided repository and oracle.
func NewService(repository repo.Repository, detector imaging.Detector) *Service {
	return &Service{
		repo:            repository,
		detector:        detector,
		statusListeners: make(map[StatusListener]struct{}),
		catListeners:    make(map[CatDetectionListener]struct{}),
	}
}

// SetArmingStatus changes the arming mode. Disarming clears any alert;
// arming resets all sensors, and arming home while the camera shows a cat is
// itself an alarm condition. The new arming status is persisted last, after
// any sensor resets and status changes it triggered.
func (s *Service) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error {
	if status == domain.ArmingStatusDisarmed {
		if err := s.SetAlarmStatus(ctx, domain.AlarmStatusNoAlarm); err != nil {
			return err
		}
	} else {
		cat := false

		if status == domain.ArmingStatusArmedHome {
			var err error
			if cat, err = s.repo.CatDetected(ctx); err != nil {
				return fmt.Errorf("read cat flag: %w", err)
			}
		}

		if err := s.deactivateAllSensors(ctx); err != nil {
			return err
		}

		if cat {
			if err := s.SetAlarmStatus(ctx, domain.AlarmStatusAlarm); err != nil {
				return err
			}
		}
	}

	if err := s.repo.SetArmingStatus(ctx, status); err != nil {
		return fmt.Errorf("persist arming status: %w", err)
	}

	logger.InfoKV(ctx, "Arming status changed", "arming_status", status)

	return nil
}

// ChangeSensorActivation updates a sensor's activation flag and applies the
// resulting alarm transition. The rules are evaluated against the status as
// it was before this event. The sensor is persisted unconditionally, even
// when nothing changed.
func (s *Service) ChangeSensorActivation(ctx context.Context, sensor *domain.Sensor, active bool) error {
	switch {
	case !sensor.Active && active:
		sensor.Active = true

		if err := s.handleSensorActivated(ctx); err != nil {
			return err
		}
	case sensor.Active && active:
		if err := s.handleSensorReactivated(ctx); err != nil {
			return err
		}
	case sensor.Active && !active:
		sensor.Active = false

		if err := s.handleSensorDeactivated(ctx, sensor); err != nil {
			return err
		}
	default:
		// Deactivating an already inactive sensor is an explicit no-op:
		// no rule fires and no notification goes out.
	}

	if err := s.repo.UpdateSensor(ctx, sensor); err != nil {
		return fmt.Errorf("persist sensor %q: %w", sensor.Name, err)
	}

	logger.DebugKV(ctx, "Sensor updated", "sensor", sensor.Name, "active", sensor.Active)

	return nil
}

// ProcessImage runs a camera frame through the oracle and applies the cat
// detection rules to the result. Oracle failures propagate to the caller and
// leave the system state untouched.
func (s *Service) ProcessImage(ctx context.Context, img image.Image) error {
	cat, err := s.detector.ContainsCat(ctx, img, catConfidenceThreshold)
	if err != nil {
		return fmt.Errorf("analyze image: %w", err)
	}

	return s.catDetected(ctx, cat)
}

// SetAlarmStatus persists the new status and notifies every registered
// status listener. All alarm status changes flow through here.
func (s *Service) SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error {
	if err := s.repo.SetAlarmStatus(ctx, status); err != nil {
		return fmt.Errorf("persist alarm status: %w", err)
	}

	logger.InfoKV(ctx, "Alarm status changed", "alarm_status", status)

	s.notifyStatus(status)

	return nil
}

// catDetected applies the detection result: a cat while armed-home raises
// the alarm, and a clear frame with every sensor quiet stands the system
// down. Listeners hear about every result and the flag is always persisted.
func (s *Service) catDetected(ctx context.Context, cat bool) error {
	if cat {
		arming, err := s.repo.ArmingStatus(ctx)
		if err != nil {
			return fmt.Errorf("read arming status: %w", err)
		}

		if arming == domain.ArmingStatusArmedHome {
			if err = s.SetAlarmStatus(ctx, domain.AlarmStatusAlarm); err != nil {
				return err
			}
		}
	} else {
		quiet, err := s.allSensorsInactive(ctx, nil)
		if err != nil {
			return err
		}

		if quiet {
			if err = s.SetAlarmStatus(ctx, domain.AlarmStatusNoAlarm); err != nil {
				return err
			}
		}
	}

	s.notifyCatDetected(cat)

	if err := s.repo.SetCatDetected(ctx, cat); err != nil {
		return fmt.Errorf("persist cat flag: %w", err)
	}

	logger.DebugKV(ctx, "Image analyzed", "cat_detected", cat)

	return nil
}

// handleSensorActivated escalates the alarm status for a sensor going
// active. Nothing happens while the system is disarmed.
func (s *Service) handleSensorActivated(ctx context.Context) error {
	arming, err := s.repo.ArmingStatus(ctx)
	if err != nil {
		return fmt.Errorf("read arming status: %w", err)
	}

	if arming == domain.ArmingStatusDisarmed {
		return nil
	}

	alarm, err := s.repo.AlarmStatus(ctx)
	if err != nil {
		return fmt.Errorf("read alarm status: %w", err)
	}

	switch alarm {
	case domain.AlarmStatusNoAlarm:
		return s.SetAlarmStatus(ctx, domain.AlarmStatusPending)
	case domain.AlarmStatusPending:
		return s.SetAlarmStatus(ctx, domain.AlarmStatusAlarm)
	default:
		return nil
	}
}

// handleSensorReactivated escalates a pending alarm when an already active
// sensor reports activity again.
func (s *Service) handleSensorReactivated(ctx context.Context) error {
	alarm, err := s.repo.AlarmStatus(ctx)
	if err != nil {
		return fmt.Errorf("read alarm status: %w", err)
	}

	if alarm == domain.AlarmStatusPending {
		return s.SetAlarmStatus(ctx, domain.AlarmStatusAlarm)
	}

	return nil
}

// handleSensorDeactivated stands a pending alarm down once the last sensor
// goes quiet. A sounding alarm is never cleared by sensor activity.
func (s *Service) handleSensorDeactivated(ctx context.Context, changed *domain.Sensor) error {
	alarm, err := s.repo.AlarmStatus(ctx)
	if err != nil {
		return fmt.Errorf("read alarm status: %w", err)
	}

	if alarm != domain.AlarmStatusPending {
		return nil
	}

	quiet, err := s.allSensorsInactive(ctx, changed)
	if err != nil {
		return err
	}

	if quiet {
		return s.SetAlarmStatus(ctx, domain.AlarmStatusNoAlarm)
	}

	return nil
}

// allSensorsInactive reports whether every known sensor is inactive. The
// changed sensor's in-flight flag overrides the stored one, because the rule
// runs before the change is persisted.
func (s *Service) allSensorsInactive(ctx context.Context, changed *domain.Sensor) (bool, error) {
	sensors, err := s.repo.Sensors(ctx)
	if err != nil {
		return false, fmt.Errorf("read sensors: %w", err)
	}

	for _, sensor := range sensors {
		active := sensor.Active
		if changed != nil && sensor.Name == changed.Name {
			active = changed.Active
		}

		if active {
			return false, nil
		}
	}

	return true, nil
}

// deactivateAllSensors resets every sensor through the normal activation
// path, in name order, so the usual deactivation rules and notifications
// still apply.
func (s *Service) deactivateAllSensors(ctx context.Context) error {
	sensors, err := s.repo.Sensors(ctx)
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}

	domain.SortSensors(sensors)

	for _, sensor := range sensors {
		if err = s.ChangeSensorActivation(ctx, sensor, false); err != nil {
			return err
		}
	}

	return nil
}

// AlarmStatus returns the current alarm status.
func (s *Service) AlarmStatus(ctx context.Context) (domain.AlarmStatus, error) {
	return s.repo.AlarmStatus(ctx)
}

// ArmingStatus returns the current arming status.
func (s *Service) ArmingStatus(ctx context.Context) (domain.ArmingStatus, error) {
	return s.repo.ArmingStatus(ctx)
}

// CatDetected returns whether the camera currently shows a cat.
func (s *Service) CatDetected(ctx context.Context) (bool, error) {
	return s.repo.CatDetected(ctx)
}

// Sensors returns the known sensors ordered by name.
func (s *Service) Sensors(ctx context.Context) ([]*domain.Sensor, error) {
	return s.repo.Sensors(ctx)
}

// AddSensor registers a new sensor with the repository.
func (s *Service) AddSensor(ctx context.Context, sensor *domain.Sensor) error {
	return s.repo.AddSensor(ctx, sensor)
}

// RemoveSensor deletes a sensor from the repository.
func (s *Service) RemoveSensor(ctx context.Context, name string) error {
	return s.repo.RemoveSensor(ctx, name)
}
