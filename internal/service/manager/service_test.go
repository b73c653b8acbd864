package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/acm-simulator/internal/domain/alert"
	"github.com/oshokin/acm-simulator/internal/hl7"
)

var testDevice = alert.Device{
	ID:       "uuid:df041f5c-a3c9-11e9-8d8a-0050b612afeb",
	Location: "POC^Room^Bed^fac^^^building^floor",
	Facility: "ward-3",
}

func fixedClock() time.Time {
	return time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
}

func encodeReport(t *testing.T, params *alert.AlertParams, enc hl7.Encoding, controlID string) []byte {
	t.Helper()

	b := alert.NewBuilder(alert.WithClock(fixedClock))
	require.NoError(t, b.Build(params))

	if controlID != "" {
		b.SetControlID(controlID)
	}

	data, err := hl7.Encode(b.Message(), enc)
	require.NoError(t, err)

	return data
}

func TestDispatch_Heartbeat(t *testing.T) {
	t.Parallel()

	s := NewService(WithClock(fixedClock))
	payload := encodeReport(t, alert.HeartbeatParams(testDevice), hl7.EncodingJSON, "hb-1")

	out, err := s.Dispatch(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, alert.KindHeartbeat, out.Classification.Kind)
	require.Equal(t, alert.AcknowledgmentLiteral("hb-1", fixedClock()), string(out.Payload))

	require.NotNil(t, out.Reply)
	require.Equal(t, alert.TypeAckReport, out.Reply.Header.MessageType)
	require.Equal(t, "hb-1", out.Reply.Header.ControlID)
	require.Equal(t, alert.AcceptAckConfirmed, hl7.Val(out.Reply.Header.AcceptAckType))

	stats := s.Stats(context.Background())
	require.Equal(t, uint64(1), stats.Classified[alert.KindHeartbeat])
	require.Equal(t, "hb-1", stats.LastHeartbeat.ControlID)
}

func TestDispatch_Alarm(t *testing.T) {
	t.Parallel()

	for _, enc := range []hl7.Encoding{hl7.EncodingER7, hl7.EncodingJSON} {
		t.Run(string(enc), func(t *testing.T) {
			t.Parallel()

			s := NewService(WithClock(fixedClock), WithFacility("ICU"), WithReplyEncoding(enc))
			payload := encodeReport(t, alert.ExampleAlarmParams(testDevice), hl7.EncodingER7, "")

			out, err := s.Dispatch(context.Background(), payload)
			require.NoError(t, err)
			require.Equal(t, alert.KindAlarm, out.Classification.Kind)
			require.Equal(t, alert.Delivered, out.Delivery)

			reply, err := hl7.Parse(out.Payload)
			require.NoError(t, err)
			require.Equal(t, alert.TypeAckReport, reply.Header.MessageType)
			require.Equal(t, "ICU", reply.Header.SendingFacility)
			require.Equal(t, "0", reply.Header.ControlID)

			group := reply.Results[0].Observations[0]
			require.Equal(t, "196670^MDC_EVT_LO^MDC", group.Observation.Identifier)
			require.Equal(t, string(alert.Delivered), hl7.Val(group.Participations[0].ActionReason))

			require.Equal(t, "196670^MDC_EVT_LO^MDC", s.Stats(context.Background()).LastAlarm.Identifier)
		})
	}
}

func TestDispatch_NoReply(t *testing.T) {
	t.Parallel()

	missingAlert := &hl7.Message{
		Header: hl7.Header{MessageType: alert.TypeAlarmReport, ControlID: "5"},
		Results: []hl7.PatientResult{{
			Observations: []hl7.ObservationGroup{{Observation: hl7.Observation{SetID: 1, SubID: "1.0.0.0"}}},
		}},
	}
	missingAlertJSON, err := hl7.EncodeJSON(missingAlert)
	require.NoError(t, err)

	tests := []struct {
		name     string
		payload  []byte
		wantKind alert.Kind
	}{
		{
			name:     "r41 acknowledgment",
			payload:  []byte("MSH|^~\\&|AM|fac|||20240102030405||ACK^R41|7|P|2.6\rMSA|AA|7\r"),
			wantKind: alert.KindAck,
		},
		{
			name:     "unrecognized type",
			payload:  []byte("MSH|^~\\&|X|Y|||20240102030405||ADT^A01|8|P|2.6\r"),
			wantKind: alert.KindUnknown,
		},
		{
			name:     "report without alert observation",
			payload:  missingAlertJSON,
			wantKind: alert.KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewService()

			out, err := s.Dispatch(context.Background(), tt.payload)
			require.NoError(t, err)
			require.Equal(t, tt.wantKind, out.Classification.Kind)
			require.Nil(t, out.Payload)
			require.Nil(t, out.Reply)
			require.Equal(t, uint64(1), s.Stats(context.Background()).Classified[tt.wantKind])
		})
	}
}

func TestDispatch_ParseError(t *testing.T) {
	t.Parallel()

	s := NewService()

	for _, payload := range [][]byte{nil, []byte("garbage"), []byte("{not json")} {
		_, err := s.Dispatch(context.Background(), payload)
		require.ErrorIs(t, err, hl7.ErrParse)
	}

	require.Empty(t, s.Stats(context.Background()).Classified)
}

func TestNewService_Defaults(t *testing.T) {
	t.Parallel()

	s := NewService(WithClock(fixedClock), WithReplyEncoding("xml"), WithFacility(""), WithCodec(nil))
	require.Equal(t, alert.DefaultManagerFacility, s.facility)
	require.Equal(t, hl7.EncodingER7, s.encoding)
	require.NotNil(t, s.codec)
	require.Equal(t, fixedClock(), s.Stats(context.Background()).StartedAt)
}
