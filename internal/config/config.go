package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	domain "home-sentinel/internal/domain/security"
)

// SensorTopic binds a named sensor to the MQTT topic reporting its activity.
type SensorTopic struct {
	// Name uniquely identifies the sensor within the system.
	Name string `yaml:"name"`
	// Type is the kind of device (door, window, motion).
	Type domain.SensorType `yaml:"type"`
	// Topic is the MQTT topic carrying ON/OFF style payloads for the sensor.
	Topic string `yaml:"topic"`
}

// Store selects and configures the state persistence backend.
type Store struct {
	// Backend is one of "memory", "file" or "bolt".
	Backend string `yaml:"backend"`
	// Path is the state file location for the file and bolt backends.
	Path string `yaml:"path"`
}

// Config holds the settings shared by the sentinel binaries.
type Config struct {
	// BrokerURI is the MQTT broker address, e.g. tcp://mqtt:1883.
	BrokerURI string `yaml:"broker_uri"`
	// ClientID is the base MQTT client identifier.
	ClientID string `yaml:"client_id"`
	// Username authenticates against the MQTT broker. Optional.
	Username string `yaml:"username"`
	// Password authenticates against the MQTT broker. Optional.
	Password string `yaml:"password"`
	// Sensors maps sensor names to the topics reporting their activity.
	Sensors []SensorTopic `yaml:"sensors"`
	// CameraTopic carries JPEG frames to run through cat detection. Optional.
	CameraTopic string `yaml:"camera_topic"`
	// StatusTopic is where alarm status changes are published.
	StatusTopic string `yaml:"status_topic"`
	// CatTopic is where cat detection results are published.
	CatTopic string `yaml:"cat_topic"`
	// CommandTopic accepts arming commands (disarmed, armed_home, armed_away).
	CommandTopic string `yaml:"command_topic"`
	// AvailabilityTopic carries the bridge online/offline state.
	AvailabilityTopic string `yaml:"availability_topic"`
	// DetectorURL is the HTTP endpoint of the image classification service.
	// When empty, a static always-negative detector is used.
	DetectorURL string `yaml:"detector_url"`
	// Store selects the state persistence backend.
	Store Store `yaml:"store"`
	// MonitorAddress is the HTTP monitor listen address, e.g. ":8130".
	MonitorAddress string `yaml:"monitor_addr"`
	// Timeout is the duration for detector HTTP calls and MQTT operations.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel sets the daemon logging verbosity.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for daemon settings.
	DefaultConfigFilename = "home-sentinel.yaml"

	// DefaultMonitorAddress is the default HTTP monitor listen address.
	DefaultMonitorAddress = ":8130"

	// DefaultStatusTopic is the default alarm status publish topic.
	DefaultStatusTopic = "sentinel/alarm/status"

	// DefaultCatTopic is the default cat detection publish topic.
	DefaultCatTopic = "sentinel/alarm/cat"

	// DefaultCommandTopic is the default arming command topic.
	DefaultCommandTopic = "sentinel/alarm/set"

	// DefaultAvailabilityTopic is the default bridge availability topic.
	DefaultAvailabilityTopic = "sentinel/alarm/online"

	// DefaultClientID is the base MQTT client identifier.
	DefaultClientID = "home-sentinel"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600
)

// Store backend names accepted by Validate.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreBolt   = "bolt"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBrokerRequired is returned when the MQTT broker URI is missing.
	errBrokerRequired = errors.New("broker URI must be provided")
	// errStorePathRequired is returned when a persistent backend has no path.
	errStorePathRequired = errors.New("store path must be provided for file and bolt backends")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting,
// filling defaults for optional ones.
//
//nolint:cyclop // Field-by-field validation reads better as a single pass.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.BrokerURI == "" {
		return errBrokerRequired
	}

	if _, err := url.Parse(cfg.BrokerURI); err != nil {
		return fmt.Errorf("invalid broker URI: %w", err)
	}

	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}

	if cfg.StatusTopic == "" {
		cfg.StatusTopic = DefaultStatusTopic
	}

	if cfg.CatTopic == "" {
		cfg.CatTopic = DefaultCatTopic
	}

	if cfg.CommandTopic == "" {
		cfg.CommandTopic = DefaultCommandTopic
	}

	if cfg.AvailabilityTopic == "" {
		cfg.AvailabilityTopic = DefaultAvailabilityTopic
	}

	if cfg.MonitorAddress == "" {
		cfg.MonitorAddress = DefaultMonitorAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.MonitorAddress); err != nil {
		return fmt.Errorf("invalid monitor address: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.DetectorURL != "" {
		if _, err := url.ParseRequestURI(cfg.DetectorURL); err != nil {
			return fmt.Errorf("invalid detector URL: %w", err)
		}
	}

	if err := validateStore(&cfg.Store); err != nil {
		return err
	}

	return validateSensors(cfg.Sensors)
}

// validateStore checks the backend selection and path requirements.
func validateStore(store *Store) error {
	switch store.Backend {
	case "":
		store.Backend = StoreMemory
	case StoreMemory:
	case StoreFile, StoreBolt:
		if store.Path == "" {
			return errStorePathRequired
		}
	default:
		return fmt.Errorf("unknown store backend %q", store.Backend)
	}

	return nil
}

// validateSensors ensures every sensor has a name and a topic, and that
// names are unique since they are the sensor identity.
func validateSensors(sensors []SensorTopic) error {
	seen := make(map[string]struct{}, len(sensors))

	for _, sensor := range sensors {
		if sensor.Name == "" {
			return fmt.Errorf("sensor with topic %q has no name", sensor.Topic)
		}

		if sensor.Topic == "" {
			return fmt.Errorf("sensor %q has no topic", sensor.Name)
		}

		if _, ok := seen[sensor.Name]; ok {
			return fmt.Errorf("duplicate sensor name %q", sensor.Name)
		}

		seen[sensor.Name] = struct{}{}
	}

	return nil
}
