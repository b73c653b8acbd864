package manager

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/oshokin/acm-simulator/internal/api/grpc/status"
	"github.com/oshokin/acm-simulator/internal/config"
	"github.com/oshokin/acm-simulator/internal/hl7"
	"github.com/oshokin/acm-simulator/internal/logger"
	"github.com/oshokin/acm-simulator/internal/metrics"
)

// Options controls the acm-manager process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the configured listen address.
	ListenAddress string
}

// Run starts the alert manager and blocks until ctx is cancelled or a server fails.
// Setup failures (configuration, bind) are returned before anything is served.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "acm-manager")

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

	listenAddress := settings.Manager.ListenAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	collectors := metrics.NewManager()

	svc := NewService(
		WithCodec(settings.Framing.Codec()),
		WithFacility(settings.Manager.Facility),
		WithReplyEncoding(hl7.Encoding(settings.Manager.ReplyEncoding)),
		WithReadTimeout(settings.Manager.ReadTimeout),
		WithMetrics(collectors),
	)

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if addr := settings.Manager.StatusAddress; addr != "" {
		statusLis, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			//nolint:errcheck // Already failing.
			lis.Close()

			return fmt.Errorf("listen on %s: %w", addr, err)
		}

		group.Go(func() error {
			return serveStatus(groupCtx, statusLis, svc)
		})
	}

	if addr := settings.Manager.MetricsAddress; addr != "" {
		metricsLis, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			//nolint:errcheck // Already failing.
			lis.Close()

			return fmt.Errorf("listen on %s: %w", addr, err)
		}

		logger.InfoKV(ctx, "Metrics listening", "address", metricsLis.Addr().String())

		group.Go(func() error {
			return metrics.Serve(groupCtx, metricsLis, collectors.Registry())
		})
	}

	logger.InfoKV(ctx, "Alert manager starting",
		"facility", settings.Manager.Facility,
		"reply_encoding", settings.Manager.ReplyEncoding,
		"symmetric_framing", settings.Framing.Symmetric,
	)

	group.Go(func() error {
		return svc.Serve(groupCtx, lis)
	})

	return group.Wait()
}

// serveStatus runs the gRPC status service until ctx is cancelled.
func serveStatus(ctx context.Context, lis net.Listener, svc status.Service) error {
	grpcServer := grpc.NewServer()
	status.Register(grpcServer, status.NewServer(svc))

	logger.InfoKV(ctx, "Status service listening", "address", lis.Addr().String())

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down status service")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve status: %w", err)
	}

	<-done

	return nil
}
