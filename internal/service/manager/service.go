package manager

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/oshokin/acm-simulator/internal/domain/alert"
	"github.com/oshokin/acm-simulator/internal/hl7"
	"github.com/oshokin/acm-simulator/internal/logger"
	"github.com/oshokin/acm-simulator/internal/metrics"
	"github.com/oshokin/acm-simulator/internal/mllp"
)

const acceptBackoff = 50 * time.Millisecond

// Outcome is the result of dispatching one inbound payload.
type Outcome struct {
	// Classification describes the inbound message.
	Classification alert.Classification
	// Message is the parsed inbound message.
	Message *hl7.Message
	// Reply is the structured acknowledgment, nil when nothing is answered.
	Reply *hl7.Message
	// Delivery is the delivery status of an alarm acknowledgment.
	Delivery alert.DeliveryStatus
	// Payload is what goes on the wire, nil when nothing is written.
	Payload []byte
}

// Service is the alert manager.
type Service struct {
	// codec frames replies and reads inbound frames.
	codec *mllp.Codec
	// facility is MSH-4 of alarm acknowledgments.
	facility string
	// encoding is the encoding of alarm acknowledgments.
	encoding hl7.Encoding
	// readTimeout bounds the wait for a frame; zero disables the deadline.
	readTimeout time.Duration
	// now is the clock used for timestamps.
	now func() time.Time
	// journal records outcomes.
	journal *journal
}

// Option configures a Service.
type Option func(*Service)

// WithCodec sets the frame codec.
func WithCodec(codec *mllp.Codec) Option {
	return func(s *Service) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithFacility sets the manager tag written to alarm acknowledgments.
func WithFacility(facility string) Option {
	return func(s *Service) {
		if facility != "" {
			s.facility = facility
		}
	}
}

// WithReplyEncoding selects the encoding of alarm acknowledgments.
func WithReplyEncoding(enc hl7.Encoding) Option {
	return func(s *Service) {
		if enc.Valid() {
			s.encoding = enc
		}
	}
}

// WithReadTimeout bounds the wait for an inbound frame.
func WithReadTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.readTimeout = timeout
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics mirrors the journal into Prometheus collectors.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		s.journal.metrics = m
	}
}

// NewService creates a manager with the default codec, facility and ER7 replies.
func NewService(opts ...Option) *Service {
	s := &Service{
		codec:    mllp.NewCodec(),
		facility: alert.DefaultManagerFacility,
		encoding: hl7.EncodingER7,
		now:      time.Now,
	}

	s.journal = newJournal(time.Time{}, nil)

	for _, opt := range opts {
		opt(s)
	}

	s.journal.stats.StartedAt = s.now()

	return s
}

// Stats returns a snapshot of the manager statistics.
func (s *Service) Stats(context.Context) *alert.Stats {
	return s.journal.snapshot()
}

// Serve accepts connections on lis and handles them one at a time until ctx
// is cancelled. Cancellation closes the listener.
func (s *Service) Serve(ctx context.Context, lis net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		//nolint:errcheck // Accept reports the closed listener.
		lis.Close()
	})
	defer stop()

	logger.InfoKV(ctx, "Alert manager listening", "address", lis.Addr().String())

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Info(ctx, "Alert manager stopped")

				return nil
			}

			logger.ErrorKV(ctx, "Accept failed", "error", err)

			select {
			case <-ctx.Done():
			case <-time.After(acceptBackoff):
			}

			continue
		}

		s.handle(ctx, conn)
	}
}

// handle serves exactly one frame on conn and closes it.
func (s *Service) handle(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr().String()
	ctx = logger.WithKV(ctx, "peer", peer)

	defer func() {
		//nolint:errcheck // Nothing to do about a failed close.
		conn.Close()
	}()

	// Shutdown expires pending reads and writes.
	stop := context.AfterFunc(ctx, func() {
		//nolint:errcheck // Best effort.
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if s.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			logger.ErrorKV(ctx, "Set read deadline failed", "error", err)
		}
	}

	payload, err := s.codec.ReadFrame(bufio.NewReader(conn))
	if err != nil {
		logger.ErrorKV(ctx, "Read frame failed", "error", err)
		s.journal.drop(alert.DropFraming)

		return
	}

	started := time.Now()

	outcome, err := s.dispatch(ctx, payload, peer)

	s.journal.dispatched(time.Since(started))

	if err != nil {
		logger.ErrorKV(ctx, "Dispatch failed", "error", err)

		reason := alert.DropParse
		if errors.Is(err, hl7.ErrSerialize) {
			reason = alert.DropSerialize
		}

		s.journal.drop(reason)

		return
	}

	if outcome.Payload == nil {
		return
	}

	if err := s.codec.WriteFrame(conn, outcome.Payload); err != nil {
		logger.ErrorKV(ctx, "Write reply failed", "error", err, "control_id", outcome.Classification.ControlID)
		s.journal.drop(alert.DropWrite)

		return
	}

	s.journal.replied(outcome.Classification.Kind)
}

// Dispatch parses payload, classifies it and builds the reply to write.
// Unknown messages and acknowledgments produce an Outcome without Payload.
func (s *Service) Dispatch(ctx context.Context, payload []byte) (*Outcome, error) {
	return s.dispatch(ctx, payload, "")
}

func (s *Service) dispatch(ctx context.Context, payload []byte, peer string) (*Outcome, error) {
	receivedAt := s.now()

	msg, err := hl7.Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	c := alert.Classify(msg)
	outcome := &Outcome{
		Classification: c,
		Message:        msg,
	}

	event := &alert.Event{
		Kind:       c.Kind,
		ControlID:  c.ControlID,
		Peer:       peer,
		ReceivedAt: receivedAt,
	}

	if c.Alert != nil {
		event.Identifier = c.Alert.Identifier
	}

	ctx = logger.WithKV(ctx, "control_id", c.ControlID)

	switch c.Kind {
	case alert.KindAck:
		logger.InfoKV(ctx, "Acknowledgment received", "type", c.MessageType)
	case alert.KindHeartbeat:
		outcome.Reply = alert.HeartbeatAck(msg)
		outcome.Payload = []byte(alert.AcknowledgmentLiteral(c.ControlID, receivedAt))

		logger.InfoKV(ctx, "Heartbeat received")
		logger.DebugKV(ctx, "Heartbeat exchange", "inbound", hl7.Dump(msg), "reply", hl7.Dump(outcome.Reply))
	case alert.KindAlarm:
		reply := alert.AlarmAck(msg, s.facility, c.Alert)
		outcome.Delivery = alert.MarkDelivered(reply)
		outcome.Reply = reply

		data, err := hl7.Encode(reply, s.encoding)
		if err != nil {
			return nil, fmt.Errorf("encode alarm acknowledgment: %w", err)
		}

		outcome.Payload = data

		logger.InfoKV(ctx, "Alarm received",
			"alert", c.Alert.Identifier,
			"text", firstValue(c.Alert.Values),
			"delivery", string(outcome.Delivery),
		)
		logger.DebugKV(ctx, "Alarm exchange", "inbound", hl7.Dump(msg), "reply", hl7.Dump(reply))
	case alert.KindUnknown:
		logger.InfoKV(ctx, "Message ignored", "type", c.MessageType, "reason", c.Reason)
	}

	s.journal.record(event)

	return outcome, nil
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}

	return values[0]
}
