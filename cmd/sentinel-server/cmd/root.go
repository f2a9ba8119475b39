package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"home-sentinel/internal/config"
	"home-sentinel/internal/service/daemon"
	"home-sentinel/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// storePath overrides the state file location for persistent backends.
	storePath string

	// rootCmd represents the base command for running the sentinel daemon.
	rootCmd = &cobra.Command{
		Use:   "sentinel-server [monitor-address]",
		Short: "Run the home security controller.",
		Long: `Starts the home security daemon that decides the alarm status from sensor
activity, arming mode and camera analysis.

Sensor and camera events arrive over MQTT; alarm status and cat detection
results are published back to the broker as retained messages. An HTTP
monitor endpoint serves the current state and the last analyzed frame.
The monitor listen address can be provided as argument to override the
configuration (e.g., :9090, 0.0.0.0:8130).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use monitor address argument if provided, otherwise rely on config.
			var monitorAddress string
			if len(args) > 0 {
				monitorAddress = args[0]
			}

			options := &daemon.Options{
				ConfigPath:     configPath,
				MonitorAddress: monitorAddress,
				StorePath:      storePath,
			}

			return daemon.Run(ctx, options)
		},
	}
)

// Execute runs the sentinel-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&storePath, "store-path", "s", "", "path to persist controller state (file and bolt backends)")
}
