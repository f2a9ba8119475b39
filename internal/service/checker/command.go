package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"home-sentinel/internal/config"
	"home-sentinel/internal/logger"
	"home-sentinel/internal/monitor"
)

// Options controls the checker polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// MonitorURL provides an optional monitor endpoint override.
	MonitorURL string
	// PollInterval defines the interval between health checks.
	PollInterval time.Duration
}

// DefaultPollInterval defines the fixed polling interval for health checks.
const DefaultPollInterval = 5 * time.Second

// serverExecutable is the process name the checker expects to find.
const serverExecutable = "sentinel-server"

// errServerNotRunning indicates no sentinel-server process was found.
var errServerNotRunning = errors.New("no sentinel-server process found")

// Run polls the daemon's health and blocks until the context is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "sentinel-checker")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	monitorURL, err := resolveMonitorURL(cfg.MonitorAddress, opts.MonitorURL)
	if err != nil {
		return fmt.Errorf("resolve monitor URL: %w", err)
	}

	client := &http.Client{Timeout: cfg.Timeout}

	logger.InfoKV(ctx, "Polling sentinel health",
		"monitor_url", monitorURL,
		"interval", opts.PollInterval.String())

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-ticker.C:
			if err = check(ctx, client, monitorURL); err != nil {
				logger.ErrorKV(ctx, "Health check failed", "error", err)
			}
		}
	}
}

// check verifies the server process is alive and reports its alarm state.
func check(ctx context.Context, client *http.Client, monitorURL string) error {
	processes, err := ps.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	if !serverProcessRunning(processes) {
		return errServerNotRunning
	}

	status, err := fetchStatus(ctx, client, monitorURL)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Sentinel state",
		"alarm_status", status.AlarmStatus,
		"arming_status", status.ArmingStatus,
		"cat_detected", status.CatDetected,
		"sensors", len(status.Sensors))

	return nil
}

// serverProcessRunning scans the process list for the server executable.
// Windows binaries carry an .exe suffix.
func serverProcessRunning(processes []ps.Process) bool {
	for _, process := range processes {
		name := strings.TrimSuffix(process.Executable(), ".exe")
		if name == serverExecutable {
			return true
		}
	}

	return false
}

// fetchStatus requests the monitor's status snapshot.
func fetchStatus(ctx context.Context, client *http.Client, monitorURL string) (*monitor.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, monitorURL+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request status: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("monitor returned %s", resp.Status)
	}

	var status monitor.Status
	if err = json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}

	return &status, nil
}

// resolveMonitorURL builds the monitor base URL from the configured listen
// address unless an explicit override is provided.
func resolveMonitorURL(listenAddress, override string) (string, error) {
	if override != "" {
		return strings.TrimRight(override, "/"), nil
	}

	host, port, err := net.SplitHostPort(listenAddress)
	if err != nil {
		return "", fmt.Errorf("invalid monitor address %q: %w", listenAddress, err)
	}

	if host == "" {
		host = "127.0.0.1"
	}

	return fmt.Sprintf("http://%s", net.JoinHostPort(host, port)), nil
}
