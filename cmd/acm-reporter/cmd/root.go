package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/acm-simulator/internal/config"
	"github.com/oshokin/acm-simulator/internal/service/reporter"
	"github.com/oshokin/acm-simulator/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for running the alert reporter.
	rootCmd = &cobra.Command{
		Use:   "acm-reporter [manager-address]",
		Short: "Run the simulated HL7 alert reporter.",
		Long: `Connects to an alert manager and sends a heartbeat report at a fixed interval.

Keys read from standard input, each followed by Enter:
  a  send one example alarm and print the reply
  t  toggle heartbeats on and off
  q  quit

Manager address can be provided as argument or loaded from configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use manager address argument if provided, otherwise rely on config.
			var managerAddress string
			if len(args) > 0 {
				managerAddress = args[0]
			}

			return reporter.Run(ctx, &reporter.Options{
				ConfigPath:     configPath,
				ManagerAddress: managerAddress,
				Input:          cmd.InOrStdin(),
				Output:         cmd.OutOrStdout(),
			})
		},
	}
)

// Execute runs the acm-reporter CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
}
