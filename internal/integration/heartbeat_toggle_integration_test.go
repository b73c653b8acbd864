package integration

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/acm-simulator/internal/domain/alert"
	"github.com/oshokin/acm-simulator/internal/service/manager"
	"github.com/oshokin/acm-simulator/internal/service/reporter"
)

// TestReporter_HeartbeatsOffKeepManagerFree checks that a reporter with
// heartbeats switched off holds no idle connection, so every alarm is
// answered at once and the manager never times out on a silent socket.
func TestReporter_HeartbeatsOffKeepManagerFree(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	svc := manager.NewService(manager.WithReadTimeout(5 * time.Second))
	managerDone := make(chan error, 1)

	go func() { managerDone <- svc.Serve(ctx, lis) }()

	r := reporter.New(lis.Addr().String(), device,
		reporter.WithHeartbeatInterval(50*time.Millisecond),
		reporter.WithReadTimeout(5*time.Second),
	)

	reporterDone := make(chan error, 1)

	go func() { reporterDone <- r.Serve(ctx) }()

	require.Eventually(t, func() bool {
		return svc.Stats(ctx).Classified[alert.KindHeartbeat] >= 2
	}, 5*time.Second, 10*time.Millisecond)

	require.False(t, r.ToggleHeartbeat())

	// Let a heartbeat already on the wire finish.
	time.Sleep(200 * time.Millisecond)

	for i := range 3 {
		started := time.Now()

		reply, err := r.SendAlarm(ctx)
		require.NoError(t, err)
		require.NotNil(t, reply, "alarm %d", i)
		require.Less(t, time.Since(started), time.Second, "alarm %d", i)
		require.Equal(t, string(alert.Delivered), deliveryOf(reply))
	}

	stats := svc.Stats(ctx)
	require.Equal(t, uint64(3), stats.Classified[alert.KindAlarm])
	require.Zero(t, stats.Dropped[alert.DropFraming])

	cancel()
	require.NoError(t, <-reporterDone)
	require.NoError(t, <-managerDone)
}
