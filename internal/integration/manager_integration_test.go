package integration

import (
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/acm-simulator/internal/config"
	"github.com/oshokin/acm-simulator/internal/service/common"
	"github.com/oshokin/acm-simulator/internal/service/manager"
)

// freeAddr reserves a loopback port and releases it for the code under test.
func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// writeConfig saves cfg to a temporary settings file.
func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(path, cfg))

	return path
}

// startManager runs the real manager and waits until its status service answers.
// Returns a stop function that cancels it and waits for Run to return.
func startManager(t *testing.T, cfg *config.Config) (client *common.Client, stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- manager.Run(ctx, &manager.Options{ConfigPath: writeConfig(t, cfg)})
	}()

	client, err := common.Dial(ctx, cfg.Manager.StatusAddress, common.WithCallTimeout(time.Second))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := client.GetStatus(ctx)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	return client, func() {
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("manager did not stop")
		}

		require.NoError(t, client.Close())
	}
}

func managerConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Manager.ListenAddress = freeAddr(t)
	cfg.Manager.StatusAddress = freeAddr(t)
	cfg.Manager.MetricsAddress = freeAddr(t)
	cfg.Manager.ReadTimeout = 2 * time.Second

	return cfg
}

// TestManager_BindFailure aborts when the listen address is taken.
func TestManager_BindFailure(t *testing.T) {
	t.Parallel()

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer taken.Close()

	cfg := config.Default()
	cfg.Manager.ListenAddress = taken.Addr().String()

	err = manager.Run(t.Context(), &manager.Options{ConfigPath: writeConfig(t, cfg)})
	require.ErrorContains(t, err, "listen on")
}

// TestManager_ConfigFailure aborts on a missing explicit settings file.
func TestManager_ConfigFailure(t *testing.T) {
	t.Parallel()

	err := manager.Run(t.Context(), &manager.Options{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	require.ErrorContains(t, err, "load settings")
}

// TestManager_StatusAndMetrics checks both observability endpoints of an idle manager.
func TestManager_StatusAndMetrics(t *testing.T) {
	t.Parallel()

	cfg := managerConfig(t)

	client, stop := startManager(t, cfg)
	defer stop()

	resp, err := client.GetStatus(t.Context())
	require.NoError(t, err)
	require.Contains(t, resp.AsMap(), "started_at")
	require.Empty(t, resp.AsMap()["classified"])

	body := httpGet(t, "http://"+cfg.Manager.MetricsAddress+"/metrics")
	require.Contains(t, body, "acm_manager_dispatch_duration_seconds")
}

func httpGet(t *testing.T, url string) string {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(data)
}
