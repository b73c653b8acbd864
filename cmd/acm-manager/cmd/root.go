package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/acm-simulator/internal/config"
	"github.com/oshokin/acm-simulator/internal/service/manager"
	"github.com/oshokin/acm-simulator/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for running the alert manager.
	rootCmd = &cobra.Command{
		Use:   "acm-manager [listen-address]",
		Short: "Run the simulated HL7 alert manager.",
		Long: `Starts the alert manager that accepts framed HL7 alert reports over TCP.

Heartbeats are answered with a fixed ACK literal, alarms with an ACK^R40
reply that marks the alert delivered. Every connection carries one frame.
Listen address can be provided as argument to override config (e.g., 0.0.0.0:8888).
The optional status (gRPC) and metrics (HTTP) endpoints are configured in the settings file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return manager.Run(ctx, &manager.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
			})
		},
	}
)

// Execute runs the acm-manager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
}
