package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestManagerCollectors(t *testing.T) {
	t.Parallel()

	m := NewManager()
	at := time.Unix(1_700_000_000, 0)

	m.ObserveClassified("heartbeat", at)
	m.ObserveClassified("alarm", at)
	m.ObserveClassified("alarm", at)
	m.ObserveReply("alarm")
	m.ObserveDrop("parse")
	m.ObserveDispatch(time.Millisecond)

	require.InDelta(t, 1, testutil.ToFloat64(m.classified.WithLabelValues("heartbeat")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.classified.WithLabelValues("alarm")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.replies.WithLabelValues("alarm")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.dropped.WithLabelValues("parse")), 0)
	require.InDelta(t, float64(at.Unix()), testutil.ToFloat64(m.lastHeartbeat), 0)

	count, err := testutil.GatherAndCount(m.Registry(), "acm_manager_dispatch_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestReporterCollectors(t *testing.T) {
	t.Parallel()

	r := NewReporter()
	require.InDelta(t, 1, testutil.ToFloat64(r.heartbeatEnabled), 0)

	r.ObserveSent("heartbeat")
	r.ObserveFailure(OpWrite)
	r.ObserveAck()
	r.ObserveDial()
	r.SetHeartbeatEnabled(false)

	require.InDelta(t, 1, testutil.ToFloat64(r.sent.WithLabelValues("heartbeat")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.failures.WithLabelValues(OpWrite)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.acks), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.dials), 0)
	require.InDelta(t, 0, testutil.ToFloat64(r.heartbeatEnabled), 0)
}

// TestNilCollectors ensures disabled metrics are no-ops.
func TestNilCollectors(t *testing.T) {
	t.Parallel()

	var (
		m *Manager
		r *Reporter
	)

	require.NotPanics(t, func() {
		m.ObserveClassified("alarm", time.Now())
		m.ObserveReply("alarm")
		m.ObserveDrop("parse")
		m.ObserveDispatch(time.Second)
		r.ObserveSent("alarm")
		r.ObserveFailure(OpDial)
		r.ObserveAck()
		r.ObserveDial()
		r.SetHeartbeatEnabled(true)
	})
	require.Nil(t, m.Registry())
	require.Nil(t, r.Registry())
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m := NewManager()
	m.ObserveClassified("ack", time.Now())

	srv := httptest.NewServer(Handler(m.Registry()))
	t.Cleanup(srv.Close)

	body := get(t, srv.URL+Path)
	require.Contains(t, body, `acm_manager_messages_total{kind="ack"} 1`)

	require.Equal(t, "OK", get(t, srv.URL+"/health"))
}

func TestServe_StopsOnCancel(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- Serve(ctx, lis, NewReporter().Registry()) }()

	body := get(t, "http://"+lis.Addr().String()+Path)
	require.Contains(t, body, "acm_reporter_heartbeat_enabled 1")

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func get(t *testing.T, url string) string {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return string(data)
}
