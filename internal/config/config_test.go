package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	domain "home-sentinel/internal/domain/security"
)

// TestValidate checks required fields and format validations for settings.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing broker.
	cfg := new(Config)

	err := Validate(cfg)
	require.Error(t, err)

	// Defaults are filled for a minimal config.
	cfg = &Config{
		BrokerURI: "tcp://127.0.0.1:1883",
	}

	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultClientID, cfg.ClientID)
	require.Equal(t, DefaultStatusTopic, cfg.StatusTopic)
	require.Equal(t, DefaultCatTopic, cfg.CatTopic)
	require.Equal(t, DefaultCommandTopic, cfg.CommandTopic)
	require.Equal(t, DefaultAvailabilityTopic, cfg.AvailabilityTopic)
	require.Equal(t, DefaultMonitorAddress, cfg.MonitorAddress)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, StoreMemory, cfg.Store.Backend)

	// Bad monitor address.
	cfg = &Config{
		BrokerURI:      "tcp://127.0.0.1:1883",
		MonitorAddress: "bad:address",
	}

	require.Error(t, Validate(cfg))

	// Persistent backend without a path.
	cfg = &Config{
		BrokerURI: "tcp://127.0.0.1:1883",
		Store:     Store{Backend: StoreBolt},
	}

	require.Error(t, Validate(cfg))

	// Unknown backend.
	cfg = &Config{
		BrokerURI: "tcp://127.0.0.1:1883",
		Store:     Store{Backend: "redis"},
	}

	require.Error(t, Validate(cfg))
}

// TestValidateSensors covers the sensor topic map checks.
func TestValidateSensors(t *testing.T) {
	t.Parallel()

	base := Config{
		BrokerURI: "tcp://127.0.0.1:1883",
	}

	// Sensor without a topic.
	cfg := base
	cfg.Sensors = []SensorTopic{{Name: "front door", Type: domain.SensorTypeDoor}}
	require.Error(t, Validate(&cfg))

	// Sensor without a name.
	cfg = base
	cfg.Sensors = []SensorTopic{{Topic: "hab/front/door", Type: domain.SensorTypeDoor}}
	require.Error(t, Validate(&cfg))

	// Duplicate names.
	cfg = base
	cfg.Sensors = []SensorTopic{
		{Name: "front door", Type: domain.SensorTypeDoor, Topic: "hab/front/door"},
		{Name: "front door", Type: domain.SensorTypeMotion, Topic: "hab/front/motion"},
	}
	require.Error(t, Validate(&cfg))

	// Valid map.
	cfg = base
	cfg.Sensors = []SensorTopic{
		{Name: "front door", Type: domain.SensorTypeDoor, Topic: "hab/front/door"},
		{Name: "hallway motion", Type: domain.SensorTypeMotion, Topic: "hab/hall/motion"},
	}
	require.NoError(t, Validate(&cfg))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		BrokerURI:   "tcp://127.0.0.1:1883",
		DetectorURL: "http://127.0.0.1:5000/v1/vision/detection",
		Sensors: []SensorTopic{
			{Name: "back door", Type: domain.SensorTypeDoor, Topic: "hab/back/door"},
		},
		Store: Store{Backend: StoreFile, Path: filepath.Join(dir, "state.json")},
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.BrokerURI, loaded.BrokerURI)
	require.Equal(t, cfg.DetectorURL, loaded.DetectorURL)
	require.Equal(t, cfg.Sensors, loaded.Sensors)
	require.Equal(t, cfg.Store, loaded.Store)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}
