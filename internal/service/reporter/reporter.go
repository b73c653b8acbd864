package reporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/acm-simulator/internal/domain/alert"
	"github.com/oshokin/acm-simulator/internal/hl7"
	"github.com/oshokin/acm-simulator/internal/logger"
	"github.com/oshokin/acm-simulator/internal/metrics"
	"github.com/oshokin/acm-simulator/internal/mllp"
)

// receiveBufferSize bounds one acknowledgment read.
const receiveBufferSize = 1 << 20

const (
	defaultInterval       = time.Second
	defaultReadTimeout    = 5 * time.Second
	defaultReconnectDelay = time.Second
	defaultDialTimeout    = 5 * time.Second
)

var (
	// ErrConnect is returned when the manager cannot be reached.
	ErrConnect = errors.New("connect to manager")
	// ErrWrite is returned when a report cannot be written.
	ErrWrite = errors.New("write report")
)

// Dialer opens a connection to the manager at address.
type Dialer func(ctx context.Context, address string) (net.Conn, error)

// Reporter simulates an alert reporting device.
type Reporter struct {
	// address is the manager address.
	address string
	// device identifies the simulated device.
	device alert.Device
	// codec frames outbound reports and unwraps replies.
	codec *mllp.Codec

	interval       time.Duration
	readTimeout    time.Duration
	reconnectDelay time.Duration
	dialTimeout    time.Duration

	dial    Dialer
	now     func() time.Time
	newID   func() string
	metrics *metrics.Reporter

	// heartbeat gates the sender loop.
	heartbeat atomic.Bool
	// link is shared by the sender and receiver loops.
	link *link

	// alarmMu serialises on-demand alarms so their control ids grow 0,1,2...
	alarmMu sync.Mutex
	alarms  *alert.Builder
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithCodec sets the frame codec.
func WithCodec(codec *mllp.Codec) Option {
	return func(r *Reporter) {
		if codec != nil {
			r.codec = codec
		}
	}
}

// WithHeartbeatInterval sets the period between heartbeats.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithReadTimeout bounds acknowledgment reads and report writes.
func WithReadTimeout(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.readTimeout = d
		}
	}
}

// WithReconnectDelay sets how long the sender waits to redial after a failed attempt.
func WithReconnectDelay(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.reconnectDelay = d
		}
	}
}

// WithDialTimeout bounds each connection attempt of the default dialer.
func WithDialTimeout(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.dialTimeout = d
		}
	}
}

// WithDialer replaces the TCP dialer.
func WithDialer(dial Dialer) Option {
	return func(r *Reporter) {
		if dial != nil {
			r.dial = dial
		}
	}
}

// WithClock overrides the clock used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides the heartbeat control id generator.
func WithIDGenerator(newID func() string) Option {
	return func(r *Reporter) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// WithMetrics records activity in Prometheus collectors.
func WithMetrics(m *metrics.Reporter) Option {
	return func(r *Reporter) {
		r.metrics = m
	}
}

// New creates a reporter for the manager at address. Heartbeats start enabled.
func New(address string, device alert.Device, opts ...Option) *Reporter {
	r := &Reporter{
		address:        address,
		device:         device,
		codec:          mllp.NewCodec(),
		interval:       defaultInterval,
		readTimeout:    defaultReadTimeout,
		reconnectDelay: defaultReconnectDelay,
		dialTimeout:    defaultDialTimeout,
		now:            time.Now,
		newID:          uuid.NewString,
	}

	r.dial = r.dialTCP

	for _, opt := range opts {
		opt(r)
	}

	r.heartbeat.Store(true)
	r.alarms = alert.NewBuilder(alert.WithClock(r.now))
	r.link = newLink(
		func(ctx context.Context) (net.Conn, error) {
			return r.dial(ctx, r.address)
		},
		r.reconnectDelay,
		r.metrics.ObserveDial,
	)

	return r
}

// HeartbeatEnabled reports whether heartbeats are being sent.
func (r *Reporter) HeartbeatEnabled() bool {
	return r.heartbeat.Load()
}

// ToggleHeartbeat flips the heartbeat flag and returns the new value.
func (r *Reporter) ToggleHeartbeat() bool {
	for {
		old := r.heartbeat.Load()
		if r.heartbeat.CompareAndSwap(old, !old) {
			r.metrics.SetHeartbeatEnabled(!old)

			return !old
		}
	}
}

// Serve runs the sender and receiver loops until ctx is cancelled and joins both.
func (r *Reporter) Serve(ctx context.Context) error {
	defer r.link.close()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return r.sendLoop(logger.WithName(groupCtx, "sender"))
	})

	group.Go(func() error {
		return r.receiveLoop(logger.WithName(groupCtx, "receiver"))
	})

	return group.Wait()
}

// sendLoop writes a heartbeat, then sleeps one interval, while the toggle is
// on. The link is opened by the first heartbeat; if that connection fails the
// loop ends. Later failures drop the link and a later tick redials once the
// reconnect delay has passed.
func (r *Reporter) sendLoop(ctx context.Context) error {
	builder := alert.NewBuilder(alert.WithClock(r.now))
	if err := builder.Build(alert.HeartbeatParams(r.device)); err != nil {
		r.metrics.ObserveFailure(metrics.OpBuild)

		return fmt.Errorf("build heartbeat: %w", err)
	}

	builder.AppendWatchdog(
		alert.HeartbeatWatchdogPeriod,
		hl7.Opt(alert.HeartbeatWatchdogUnit),
		alert.HeartbeatWatchdogTree,
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	connected := false

	for {
		if r.heartbeat.Load() {
			if !connected {
				if _, err := r.link.get(ctx); err != nil {
					r.metrics.ObserveFailure(metrics.OpDial)
					logger.ErrorKV(ctx, "Initial connection failed, heartbeats disabled",
						"address", r.address, "error", err)

					return nil
				}

				connected = true
			}

			if err := r.sendHeartbeat(ctx, builder); err != nil {
				logger.ErrorKV(ctx, "Heartbeat failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		// Both cases may be ready at once.
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *Reporter) sendHeartbeat(ctx context.Context, builder *alert.Builder) error {
	controlID := r.newID()
	builder.SetControlID(controlID)

	data, err := hl7.EncodeJSON(builder.Message())
	if err != nil {
		r.metrics.ObserveFailure(metrics.OpBuild)

		return err
	}

	conn, err := r.link.get(ctx)
	if err != nil {
		if errors.Is(err, errBackoff) {
			logger.DebugKV(ctx, "Heartbeat skipped", "reason", err)

			return nil
		}

		r.metrics.ObserveFailure(metrics.OpDial)

		return err
	}

	if err := r.write(conn, data); err != nil {
		r.link.drop(conn)

		return err
	}

	r.metrics.ObserveSent("heartbeat")
	logger.DebugKV(ctx, "Heartbeat sent", "control_id", controlID)

	return nil
}

// receiveLoop reads acknowledgments from the link until ctx is cancelled. It
// never dials: with no connection it waits for the sender to open one.
func (r *Reporter) receiveLoop(ctx context.Context) error {
	buf := make([]byte, receiveBufferSize)

	for {
		conn, err := r.link.wait(ctx)
		if err != nil {
			return nil
		}

		n, err := r.read(ctx, conn, buf)
		if n > 0 {
			r.logReply(ctx, r.codec.Unwrap(buf[:n]))
		}

		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, os.ErrDeadlineExceeded):
			// Nothing arrived in time; keep the link.
		default:
			// EOF is the manager closing after its reply; ErrClosed is the
			// sender dropping the link.
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				r.metrics.ObserveFailure(metrics.OpRead)
				logger.WarnKV(ctx, "Read failed", "error", err)
			}

			r.link.drop(conn)
		}
	}
}

// read performs one deadline-bounded read that cancellation interrupts.
func (r *Reporter) read(ctx context.Context, conn net.Conn, buf []byte) (int, error) {
	stop := context.AfterFunc(ctx, func() {
		//nolint:errcheck // Best effort.
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.SetReadDeadline(time.Now().Add(r.readTimeout)); err != nil {
		return 0, err
	}

	return conn.Read(buf)
}

// SendAlarm sends the example low SpO2 alarm on a dedicated connection and
// returns the acknowledgment when one arrives. Failures are not retried.
func (r *Reporter) SendAlarm(ctx context.Context) (*hl7.Message, error) {
	ctx = logger.WithName(ctx, "alarm")

	r.alarmMu.Lock()
	err := r.alarms.Build(alert.ExampleAlarmParams(r.device))
	msg := r.alarms.Message()
	r.alarmMu.Unlock()

	if err != nil {
		r.metrics.ObserveFailure(metrics.OpBuild)

		return nil, fmt.Errorf("build alarm: %w", err)
	}

	data, err := hl7.EncodeJSON(msg)
	if err != nil {
		r.metrics.ObserveFailure(metrics.OpBuild)

		return nil, fmt.Errorf("encode alarm: %w", err)
	}

	conn, err := r.dial(ctx, r.address)
	if err != nil {
		r.metrics.ObserveFailure(metrics.OpDial)
		logger.ErrorKV(ctx, "Alarm not sent", "error", err)

		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	defer func() {
		//nolint:errcheck // One-shot connection.
		conn.Close()
	}()

	if err := r.write(conn, data); err != nil {
		logger.ErrorKV(ctx, "Alarm not sent", "error", err)

		return nil, err
	}

	r.metrics.ObserveSent("alarm")
	logger.InfoKV(ctx, "Alarm sent", "control_id", msg.Header.ControlID)

	// The manager closes the connection after replying.
	reply, err := r.readReply(ctx, conn)
	if err != nil {
		logger.WarnKV(ctx, "No alarm acknowledgment", "error", err)

		return nil, nil //nolint:nilnil // The reply is best effort.
	}

	return reply, nil
}

func (r *Reporter) readReply(ctx context.Context, conn net.Conn) (*hl7.Message, error) {
	stop := context.AfterFunc(ctx, func() {
		//nolint:errcheck // Best effort.
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.SetReadDeadline(time.Now().Add(r.readTimeout)); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(conn, receiveBufferSize))
	if len(data) == 0 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}

		return nil, err
	}

	return r.logReply(ctx, r.codec.Unwrap(data)), nil
}

func (r *Reporter) write(conn net.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(r.readTimeout)); err != nil {
		r.metrics.ObserveFailure(metrics.OpWrite)

		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	if err := r.codec.WriteFrame(conn, data); err != nil {
		r.metrics.ObserveFailure(metrics.OpWrite)

		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	return nil
}

// logReply logs an acknowledgment and returns it parsed, or nil for text
// that is not a message.
func (r *Reporter) logReply(ctx context.Context, payload []byte) *hl7.Message {
	r.metrics.ObserveAck()

	msg, err := hl7.Parse(payload)
	if err != nil {
		logger.InfoKV(ctx, "Reply received", "text", string(payload))

		return nil
	}

	kvs := []any{"type", msg.Header.MessageType, "control_id", msg.Header.ControlID}
	if msg.Acknowledgment != nil {
		kvs = append(kvs, "code", msg.Acknowledgment.Code, "acknowledged", msg.Acknowledgment.ControlID)
	}

	if obs, ok := alert.FindAlertObservation(msg); ok {
		kvs = append(kvs, "alert", obs.Identifier)
	}

	logger.InfoKV(ctx, "Acknowledgment received", kvs...)
	logger.DebugKV(ctx, "Acknowledgment dump", "message", hl7.Dump(msg))

	return msg
}

func (r *Reporter) dialTCP(ctx context.Context, address string) (net.Conn, error) {
	d := net.Dialer{Timeout: r.dialTimeout}

	return d.DialContext(ctx, "tcp", address)
}
