package reporter

import (
	"context"
	"fmt"
	"io"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/acm-simulator/internal/config"
	"github.com/oshokin/acm-simulator/internal/domain/alert"
	"github.com/oshokin/acm-simulator/internal/logger"
	"github.com/oshokin/acm-simulator/internal/metrics"
	"github.com/oshokin/acm-simulator/internal/service/common"
)

// fallbackFacility is used when the hostname cannot be detected.
const fallbackFacility = "localhost"

// Options controls the acm-reporter process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ManagerAddress overrides the configured manager address.
	ManagerAddress string
	// Input feeds the console; nil disables it.
	Input io.Reader
	// Output receives console feedback.
	Output io.Writer
}

// Run starts the reporter loops and the console and blocks until ctx is
// cancelled or q is entered.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "acm-reporter")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	closeLog, err := logger.Configure(settings.Log.Level, settings.Log.FileSink())
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	defer func() {
		//nolint:errcheck // Nothing to do about a failed flush on exit.
		closeLog()
	}()

	address := settings.Reporter.ManagerAddress
	if opts.ManagerAddress != "" {
		address = opts.ManagerAddress
	}

	device := alert.Device{
		ID:       settings.Reporter.DeviceID,
		Location: settings.Reporter.DeviceLocation,
		Facility: sendingFacility(ctx, settings.Reporter.SendingFacility),
	}

	collectors := metrics.NewReporter()

	r := New(address, device,
		WithCodec(settings.Framing.Codec()),
		WithHeartbeatInterval(settings.Reporter.HeartbeatInterval),
		WithReadTimeout(settings.Reporter.ReadTimeout),
		WithReconnectDelay(settings.Reporter.ReconnectDelay),
		WithDialTimeout(settings.Reporter.DialTimeout),
		WithMetrics(collectors),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	if addr := settings.Reporter.MetricsAddress; addr != "" {
		lc := net.ListenConfig{}

		lis, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}

		group.Go(func() error {
			return metrics.Serve(groupCtx, lis, collectors.Registry())
		})
	}

	logger.InfoKV(ctx, "Alert reporter starting",
		"manager_address", address,
		"device_id", device.ID,
		"facility", device.Facility,
		"heartbeat_interval", settings.Reporter.HeartbeatInterval,
	)

	// The console blocks on input that cannot be interrupted, so it is not
	// joined; q cancels ctx and the loops below return.
	if opts.Input != nil {
		output := opts.Output
		if output == nil {
			output = io.Discard
		}

		go func() {
			if err := r.Console(groupCtx, opts.Input, output, cancel); err != nil {
				logger.ErrorKV(ctx, "Console stopped", "error", err)
			}
		}()
	}

	group.Go(func() error {
		return r.Serve(groupCtx)
	})

	return group.Wait()
}

// sendingFacility returns configured, or the local hostname when it is empty.
func sendingFacility(ctx context.Context, configured string) string {
	if configured != "" {
		return configured
	}

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Host detection failed", "error", err)

		return fallbackFacility
	}

	logger.DebugKV(ctx, "Reporting as", "actor", actor.String())

	return actor.Hostname
}
