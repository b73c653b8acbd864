package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/acm-simulator/internal/config"
	"github.com/oshokin/acm-simulator/internal/service/common"
)

var errStatusDisabled = errors.New("status address is not configured")

// statusCmd queries a running manager for its statistics.
var statusCmd = &cobra.Command{
	Use:   "status [status-address]",
	Short: "Print statistics of a running manager.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		settings, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		address := settings.Manager.StatusAddress
		if len(args) > 0 {
			address = args[0]
		}

		if address == "" {
			return errStatusDisabled
		}

		client, err := common.Dial(ctx, address)
		if err != nil {
			return err
		}

		defer func() {
			//nolint:errcheck // Connection is discarded anyway.
			client.Close()
		}()

		resp, err := client.GetStatus(ctx)
		if err != nil {
			return fmt.Errorf("get status: %w", err)
		}

		data, err := protojson.MarshalOptions{Multiline: true}.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encode status: %w", err)
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))

		return err
	},
}
