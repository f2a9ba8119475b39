package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	domain "home-sentinel/internal/domain/security"
)

// statePermissions restricts the state file to the owning user.
const statePermissions = 0o600

// FileRepository persists the system state to a JSON file on disk.
// The full snapshot is rewritten on every mutation; state is served from an
// in-memory copy so reads never touch the disk.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mem holds the working copy of the state.
	mem *MemoryRepository
}

// NewFileRepository creates a repository backed by JSON at the provided path.
// An existing state file is loaded; a missing one starts a fresh state.
func NewFileRepository(path string) (*FileRepository, error) {
	r := &FileRepository{
		path: filepath.Clean(path),
		mem:  NewMemoryRepository(),
	}

	if err := r.load(); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return r, nil
}

// load reads the snapshot from disk into the working copy.
func (r *FileRepository) load() error {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}

		return fmt.Errorf("read state file: %w", err)
	}

	snap := defaultSnapshot()
	if err = json.Unmarshal(contents, &snap); err != nil {
		return fmt.Errorf("decode state file: %w", err)
	}

	r.mem.restore(snap)

	return nil
}

// persist writes the working copy to disk.
func (r *FileRepository) persist() error {
	data, err := json.Marshal(r.mem.snapshot())
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, statePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// ArmingStatus returns the current arming status.
func (r *FileRepository) ArmingStatus(ctx context.Context) (domain.ArmingStatus, error) {
	return r.mem.ArmingStatus(ctx)
}

// SetArmingStatus persists a new arming status.
func (r *FileRepository) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error {
	if err := r.mem.SetArmingStatus(ctx, status); err != nil {
		return err
	}

	return r.persist()
}

// AlarmStatus returns the current alarm status.
func (r *FileRepository) AlarmStatus(ctx context.Context) (domain.AlarmStatus, error) {
	return r.mem.AlarmStatus(ctx)
}

// SetAlarmStatus persists a new alarm status.
func (r *FileRepository) SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error {
	if err := r.mem.SetAlarmStatus(ctx, status); err != nil {
		return err
	}

	return r.persist()
}

// CatDetected returns whether the camera currently shows a cat.
func (r *FileRepository) CatDetected(ctx context.Context) (bool, error) {
	return r.mem.CatDetected(ctx)
}

// SetCatDetected persists the cat detection flag.
func (r *FileRepository) SetCatDetected(ctx context.Context, detected bool) error {
	if err := r.mem.SetCatDetected(ctx, detected); err != nil {
		return err
	}

	return r.persist()
}

// Sensors returns the known sensors ordered by name.
func (r *FileRepository) Sensors(ctx context.Context) ([]*domain.Sensor, error) {
	return r.mem.Sensors(ctx)
}

// AddSensor registers a new sensor.
func (r *FileRepository) AddSensor(ctx context.Context, sensor *domain.Sensor) error {
	if err := r.mem.AddSensor(ctx, sensor); err != nil {
		return err
	}

	return r.persist()
}

// RemoveSensor deletes the sensor with the given name.
func (r *FileRepository) RemoveSensor(ctx context.Context, name string) error {
	if err := r.mem.RemoveSensor(ctx, name); err != nil {
		return err
	}

	return r.persist()
}

// UpdateSensor persists the state of a known sensor.
func (r *FileRepository) UpdateSensor(ctx context.Context, sensor *domain.Sensor) error {
	if err := r.mem.UpdateSensor(ctx, sensor); err != nil {
		return err
	}

	return r.persist()
}
