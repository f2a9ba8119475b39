package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"home-sentinel/internal/config"
	"home-sentinel/internal/service/checker"
	"home-sentinel/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// pollInterval between health checks.
	pollInterval time.Duration

	// rootCmd represents the base command for polling daemon health.
	rootCmd = &cobra.Command{
		Use:   "sentinel-checker [monitor-url]",
		Short: "Watch the sentinel daemon and report its state.",
		Long: `Background service that verifies a sentinel-server process is running and
polls its monitor endpoint for the current alarm state.

The monitor URL is derived from the configuration file unless provided as
argument (e.g., http://127.0.0.1:8130). Failed checks are logged so a
supervisor can alert on them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use monitor URL argument if provided, otherwise rely on config.
			var monitorURL string
			if len(args) > 0 {
				monitorURL = args[0]
			}

			checkerOptions := &checker.Options{
				ConfigPath:   configPath,
				MonitorURL:   monitorURL,
				PollInterval: pollInterval,
			}

			return checker.Run(ctx, checkerOptions)
		},
	}
)

// Execute runs the sentinel-checker CLI and exits with non-zero status on error.
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
		DurationVarP(&pollInterval, "interval", "i", checker.DefaultPollInterval, "interval between health checks")
}
