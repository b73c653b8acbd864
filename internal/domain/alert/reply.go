package alert

import (
	"fmt"
	"strconv"
	"time"

	"github.com/oshokin/acm-simulator/internal/hl7"
)

// DeliveryStatus reports whether an alarm acknowledgment carries a delivery action.
type DeliveryStatus string

const (
	Delivered    DeliveryStatus = "Delivered"
	NotDelivered DeliveryStatus = "Not Delivered"
)

// HeartbeatAck builds the structured reply to a heartbeat.
func HeartbeatAck(in *hl7.Message) *hl7.Message {
	return &hl7.Message{
		Header: hl7.Header{
			MessageType:   TypeAckReport,
			ControlID:     in.Header.ControlID,
			AcceptAckType: hl7.Opt(AcceptAckConfirmed),
		},
	}
}

// AlarmAck builds the reply to an alarm. The alert observation, when given, is
// echoed back in one observation group together with a delivery participation.
func AlarmAck(in *hl7.Message, facility string, alert *hl7.Observation) *hl7.Message {
	reply := &hl7.Message{
		Header: hl7.Header{
			SendingFacility: facility,
			MessageType:     TypeAckReport,
			ControlID:       in.Header.ControlID,
		},
	}

	if alert == nil {
		return reply
	}

	echo := hl7.Message{Results: []hl7.PatientResult{{
		Observations: []hl7.ObservationGroup{{Observation: *alert}},
	}}}

	result := echo.Clone().Results[0]
	result.Observations[0].Participations = []hl7.Participation{{
		Action: DeliveryActionAdd,
		Role:   DeliveryRoleReceiver,
	}}
	reply.Results = []hl7.PatientResult{result}

	return reply
}

// MarkDelivered sets the action reason of the first participation of the
// reply's first observation group to Delivered. Replies without one are left
// unchanged and reported as NotDelivered.
func MarkDelivered(reply *hl7.Message) DeliveryStatus {
	if len(reply.Results) == 0 || len(reply.Results[0].Observations) == 0 {
		return NotDelivered
	}

	group := &reply.Results[0].Observations[0]
	if len(group.Participations) == 0 {
		return NotDelivered
	}

	group.Participations[0].ActionReason = hl7.Opt(string(Delivered))

	return Delivered
}

// AcknowledgmentLiteral is the hand-written heartbeat acknowledgment put on the
// wire. It bypasses the structured model, so its fields are not escaped;
// controlID must not contain separator characters.
func AcknowledgmentLiteral(controlID string, now time.Time) string {
	return fmt.Sprintf(
		"MSH|^~\\&|||||%s||ACK||P|2.1\rMSA|AA|%s\r",
		strconv.FormatInt(now.Unix(), 10),
		controlID,
	)
}
