package manager

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/acm-simulator/internal/domain/alert"
	"github.com/oshokin/acm-simulator/internal/hl7"
	"github.com/oshokin/acm-simulator/internal/metrics"
	"github.com/oshokin/acm-simulator/internal/mllp"
)

// startManager serves a manager on a loopback listener for the test lifetime.
func startManager(t *testing.T, opts ...Option) (*Service, string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewService(append([]Option{WithReadTimeout(2 * time.Second)}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- s.Serve(ctx, lis) }()

	t.Cleanup(func() {
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("manager did not stop")
		}
	})

	return s, lis.Addr().String()
}

// exchange writes raw bytes and returns everything the manager sends before closing.
func exchange(t *testing.T, addr string, raw []byte) []byte {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)

	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write(raw)
	require.NoError(t, err)

	reply, err := io.ReadAll(conn)
	require.NoError(t, err)

	return reply
}

func frame(payload []byte) []byte {
	out := append([]byte{mllp.DefaultStartMarker}, payload...)

	return append(out, mllp.DefaultEndMarker)
}

func TestServe_Loopback(t *testing.T) {
	t.Parallel()

	collectors := metrics.NewManager()
	s, addr := startManager(t, WithFacility("MockAM"), WithMetrics(collectors))
	codec := mllp.NewCodec()

	// Heartbeat: the literal acknowledgment comes back framed.
	heartbeat := encodeReport(t, alert.HeartbeatParams(testDevice), hl7.EncodingJSON, "hb-9")
	reply := exchange(t, addr, frame(heartbeat))

	payload, err := codec.ReadFrame(bytes.NewReader(reply))
	require.NoError(t, err)
	require.Contains(t, string(payload), "ACK||P|2.1\rMSA|AA|hb-9\r")

	// Alarm: an ER7 acknowledgment with facility, control id and delivery status.
	alarm := encodeReport(t, alert.ExampleAlarmParams(testDevice), hl7.EncodingER7, "")
	reply = exchange(t, addr, frame(alarm))

	payload, err = codec.ReadFrame(bytes.NewReader(reply))
	require.NoError(t, err)

	ack, err := hl7.DecodeER7(payload)
	require.NoError(t, err)
	require.Equal(t, alert.TypeAckReport, ack.Header.MessageType)
	require.Equal(t, "MockAM", ack.Header.SendingFacility)
	require.Equal(t, "0", ack.Header.ControlID)
	require.Equal(t, string(alert.Delivered), hl7.Val(ack.Results[0].Observations[0].Participations[0].ActionReason))

	// Unknown type: connection closes without bytes.
	reply = exchange(t, addr, frame([]byte("MSH|^~\\&|X|Y|||20240102030405||ADT^A01|8|P|2.6\r")))
	require.Empty(t, reply)

	// Missing start marker: dropped without reply.
	reply = exchange(t, addr, []byte("MSH|^~\\&|X"))
	require.Empty(t, reply)

	// Unparsable payload: dropped without reply.
	reply = exchange(t, addr, frame([]byte("garbage")))
	require.Empty(t, reply)

	stats := s.Stats(context.Background())
	require.Equal(t, uint64(1), stats.Classified[alert.KindHeartbeat])
	require.Equal(t, uint64(1), stats.Classified[alert.KindAlarm])
	require.Equal(t, uint64(1), stats.Classified[alert.KindUnknown])
	require.Equal(t, uint64(1), stats.Dropped[alert.DropFraming])
	require.Equal(t, uint64(1), stats.Dropped[alert.DropParse])
	require.NotEmpty(t, stats.LastHeartbeat.Peer)
}

// TestServe_PartialFrame accepts a frame cut short by the peer.
func TestServe_PartialFrame(t *testing.T) {
	t.Parallel()

	s, addr := startManager(t, WithReplyEncoding(hl7.EncodingJSON))

	alarm := encodeReport(t, alert.ExampleAlarmParams(testDevice), hl7.EncodingJSON, "")

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)

	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write(append([]byte{mllp.DefaultStartMarker}, alarm...))
	require.NoError(t, err)

	tcp, ok := conn.(*net.TCPConn)
	require.True(t, ok)
	require.NoError(t, tcp.CloseWrite())

	reply, err := io.ReadAll(conn)
	require.NoError(t, err)

	payload, err := mllp.NewCodec().ReadFrame(bytes.NewReader(reply))
	require.NoError(t, err)

	ack, err := hl7.DecodeJSON(payload)
	require.NoError(t, err)
	require.Equal(t, alert.TypeAckReport, ack.Header.MessageType)
	require.Equal(t, uint64(1), s.Stats(context.Background()).Classified[alert.KindAlarm])
}

// TestServe_AsymmetricFraming writes replies without markers.
func TestServe_AsymmetricFraming(t *testing.T) {
	t.Parallel()

	_, addr := startManager(t, WithCodec(mllp.NewCodec(mllp.WithBarePayloads())))

	heartbeat := encodeReport(t, alert.HeartbeatParams(testDevice), hl7.EncodingJSON, "hb-1")
	reply := exchange(t, addr, frame(heartbeat))

	require.NotEmpty(t, reply)
	require.Equal(t, byte('M'), reply[0])
	require.Equal(t, byte('\r'), reply[len(reply)-1])
}

// TestServe_ReadTimeout drops a silent peer and keeps accepting.
func TestServe_ReadTimeout(t *testing.T) {
	t.Parallel()

	s, addr := startManager(t, WithReadTimeout(50*time.Millisecond))

	silent, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)

	defer silent.Close()

	require.NoError(t, silent.SetDeadline(time.Now().Add(5*time.Second)))

	// The manager closes the idle connection after its read deadline.
	_, err = io.ReadAll(silent)
	require.NoError(t, err)

	heartbeat := encodeReport(t, alert.HeartbeatParams(testDevice), hl7.EncodingJSON, "hb-2")
	require.NotEmpty(t, exchange(t, addr, frame(heartbeat)))

	require.Equal(t, uint64(1), s.Stats(context.Background()).Dropped[alert.DropFraming])
}
