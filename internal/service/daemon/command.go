package daemon

import (
	"context"
	"errors"
	"fmt"

	"home-sentinel/internal/config"
	domain "home-sentinel/internal/domain/security"
	"home-sentinel/internal/imaging"
	"home-sentinel/internal/logger"
	"home-sentinel/internal/monitor"
	repository "home-sentinel/internal/repository/state"
	"home-sentinel/internal/service/security"
	"home-sentinel/internal/transport/mqtt"
)

// Options controls the sentinel-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// MonitorAddress provides an optional listen address override for the
	// HTTP monitor.
	MonitorAddress string
	// StorePath provides an optional state file override for the file and
	// bolt backends.
	StorePath string
}

// detector couples the oracle with the frame cache the monitor reads. Both
// detector implementations satisfy it.
type detector interface {
	imaging.Detector
	monitor.FrameSource
}

// Run starts the daemon and blocks until the context is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "sentinel-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.MonitorAddress != "" {
		settings.MonitorAddress = opts.MonitorAddress
	}

	if opts.StorePath != "" {
		settings.Store.Path = opts.StorePath
	}

	repo, closeRepo, err := newRepository(settings.Store)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer func() {
		if err := closeRepo(); err != nil {
			logger.ErrorKV(ctx, "failed to close state store", "error", err)
		}
	}()

	oracle := newDetector(settings)
	svc := security.NewService(repo, oracle)

	if err = seedSensors(ctx, svc, settings.Sensors); err != nil {
		return err
	}

	bridge := mqtt.NewBridge(ctx, settings, svc)
	if err = bridge.Start(); err != nil {
		return fmt.Errorf("start MQTT bridge: %w", err)
	}
	defer bridge.Stop()

	mon := monitor.NewServer(settings.MonitorAddress, svc, oracle)
	mon.Start(ctx)

	logger.InfoKV(ctx, "sentinel server running",
		"broker", settings.BrokerURI,
		"monitor_address", settings.MonitorAddress,
		"store_backend", settings.Store.Backend)

	<-ctx.Done()

	logger.Info(ctx, "shutting down")

	if err = mon.Stop(context.WithoutCancel(ctx)); err != nil {
		logger.ErrorKV(ctx, "failed to stop monitor server", "error", err)
	}

	return nil
}

// newRepository opens the configured state backend. The returned close
// function releases backend resources.
func newRepository(store config.Store) (repository.Repository, func() error, error) {
	noop := func() error { return nil }

	switch store.Backend {
	case config.StoreMemory:
		return repository.NewMemoryRepository(), noop, nil
	case config.StoreFile:
		repo, err := repository.NewFileRepository(store.Path)
		if err != nil {
			return nil, nil, err
		}

		return repo, noop, nil
	case config.StoreBolt:
		repo, err := repository.NewBoltRepository(store.Path)
		if err != nil {
			return nil, nil, err
		}

		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", store.Backend)
	}
}

// newDetector picks the HTTP oracle when a detection service is configured
// and falls back to a static always-negative one otherwise.
func newDetector(settings *config.Config) detector {
	if settings.DetectorURL != "" {
		return imaging.NewHTTPDetector(settings.DetectorURL, settings.Timeout)
	}

	return imaging.NewStaticDetector(false)
}

// seedSensors registers the configured sensors with the controller. Sensors
// already present in a persistent store are kept as they are.
func seedSensors(ctx context.Context, svc *security.Service, defs []config.SensorTopic) error {
	for _, def := range defs {
		err := svc.AddSensor(ctx, domain.NewSensor(def.Name, def.Type))
		if errors.Is(err, repository.ErrSensorExists) {
			continue
		}

		if err != nil {
			return fmt.Errorf("seed sensor %q: %w", def.Name, err)
		}
	}

	return nil
}
