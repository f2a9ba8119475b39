package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	domain "home-sentinel/internal/domain/security"
)

var (
	bucketState   = []byte("state")
	bucketSensors = []byte("sensors")

	keyArmingStatus = []byte("arming_status")
	keyAlarmStatus  = []byte("alarm_status")
	keyCatDetected  = []byte("cat_detected")
)

// boltOpenTimeout bounds how long opening the database may block on the
// file lock held by another process.
const boltOpenTimeout = 5 * time.Second

// BoltRepository persists the system state in a bbolt database. Each field
// is written in its own transaction, so readers never observe a torn state.
type BoltRepository struct {
	db *bolt.DB
}

// NewBoltRepository opens or creates a bbolt database at the provided path.
func NewBoltRepository(path string) (*BoltRepository, error) {
	db, err := bolt.Open(path, statePermissions, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketState, bucketSensors} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltRepository{db: db}, nil
}

// Close releases the underlying database file.
func (r *BoltRepository) Close() error {
	return r.db.Close()
}

// getStateKey reads one value from the state bucket, falling back to the
// provided default when the key has never been written.
func (r *BoltRepository) getStateKey(key []byte, fallback string) (string, error) {
	value := fallback

	err := r.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketState).Get(key); data != nil {
			value = string(data)
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}

	return value, nil
}

// putStateKey writes one value into the state bucket.
func (r *BoltRepository) putStateKey(key []byte, value string) error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Put(key, []byte(value))
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	return nil
}

// ArmingStatus returns the current arming status.
func (r *BoltRepository) ArmingStatus(_ context.Context) (domain.ArmingStatus, error) {
	value, err := r.getStateKey(keyArmingStatus, string(domain.ArmingStatusDisarmed))
	if err != nil {
		return "", err
	}

	return domain.ParseArmingStatus(value)
}

// SetArmingStatus persists a new arming status.
func (r *BoltRepository) SetArmingStatus(_ context.Context, status domain.ArmingStatus) error {
	return r.putStateKey(keyArmingStatus, string(status))
}

// AlarmStatus returns the current alarm status.
func (r *BoltRepository) AlarmStatus(_ context.Context) (domain.AlarmStatus, error) {
	value, err := r.getStateKey(keyAlarmStatus, string(domain.AlarmStatusNoAlarm))
	if err != nil {
		return "", err
	}

	return domain.ParseAlarmStatus(value)
}

// SetAlarmStatus persists a new alarm status.
func (r *BoltRepository) SetAlarmStatus(_ context.Context, status domain.AlarmStatus) error {
	return r.putStateKey(keyAlarmStatus, string(status))
}

// CatDetected returns whether the camera currently shows a cat.
func (r *BoltRepository) CatDetected(_ context.Context) (bool, error) {
	value, err := r.getStateKey(keyCatDetected, "false")
	if err != nil {
		return false, err
	}

	return value == "true", nil
}

// SetCatDetected persists the cat detection flag.
func (r *BoltRepository) SetCatDetected(_ context.Context, detected bool) error {
	value := "false"
	if detected {
		value = "true"
	}

	return r.putStateKey(keyCatDetected, value)
}

// Sensors returns the known sensors ordered by name.
func (r *BoltRepository) Sensors(_ context.Context) ([]*domain.Sensor, error) {
	var sensors []*domain.Sensor

	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSensors)
		sensors = make([]*domain.Sensor, 0, b.Stats().KeyN)

		return b.ForEach(func(_, v []byte) error {
			var sensor domain.Sensor
			if err := json.Unmarshal(v, &sensor); err != nil {
				return err
			}

			sensors = append(sensors, &sensor)

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}

	domain.SortSensors(sensors)

	return sensors, nil
}

// AddSensor registers a new sensor.
func (r *BoltRepository) AddSensor(_ context.Context, sensor *domain.Sensor) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSensors)
		if b.Get([]byte(sensor.Name)) != nil {
			return ErrSensorExists
		}

		return putSensor(b, sensor)
	})
}

// RemoveSensor deletes the sensor with the given name.
func (r *BoltRepository) RemoveSensor(_ context.Context, name string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSensors)
		if b.Get([]byte(name)) == nil {
			return ErrSensorNotFound
		}

		return b.Delete([]byte(name))
	})
}

// UpdateSensor persists the state of a known sensor.
func (r *BoltRepository) UpdateSensor(_ context.Context, sensor *domain.Sensor) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSensors)
		if b.Get([]byte(sensor.Name)) == nil {
			return ErrSensorNotFound
		}

		return putSensor(b, sensor)
	})
}

// putSensor serializes a sensor into the sensors bucket.
func putSensor(b *bolt.Bucket, sensor *domain.Sensor) error {
	data, err := json.Marshal(sensor)
	if err != nil {
		return err
	}

	return b.Put([]byte(sensor.Name), data)
}
