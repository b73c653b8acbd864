package alert

import "github.com/oshokin/acm-simulator/internal/hl7"

// Kind is the closed set of inbound message classes.
type Kind int

const (
	// KindUnknown is anything the manager does not answer.
	KindUnknown Kind = iota
	// KindHeartbeat is an alarm report whose alert observation is the heartbeat event.
	KindHeartbeat
	// KindAlarm is any other alarm report.
	KindAlarm
	// KindAck is an acknowledgment sent to the manager.
	KindAck
)

// String returns the lowercase name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindAlarm:
		return "alarm"
	case KindAck:
		return "ack"
	case KindUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// Reasons attached to KindUnknown.
const (
	ReasonUnrecognizedType   = "unrecognized message type"
	ReasonMissingAlertRecord = "missing alert observation"
)

// Classification is the result of inspecting one inbound message.
type Classification struct {
	// Kind is the message class.
	Kind Kind
	// MessageType is MSH-9 as received.
	MessageType string
	// ControlID is MSH-10 as received.
	ControlID string
	// Alert is the alert identity observation (local index 1) of an alarm report.
	Alert *hl7.Observation
	// Reason explains KindUnknown.
	Reason string
}

// Classify decides how the manager treats msg.
func Classify(msg *hl7.Message) Classification {
	c := Classification{
		Kind:        KindUnknown,
		MessageType: msg.Header.MessageType,
		ControlID:   msg.Header.ControlID,
	}

	switch msg.Header.MessageType {
	case TypeAcknowledgment:
		c.Kind = KindAck
	case TypeAlarmReport:
		alert, ok := FindAlertObservation(msg)
		if !ok {
			c.Reason = ReasonMissingAlertRecord
			return c
		}

		c.Alert = alert

		if alert.Identifier == EventHeartbeat {
			c.Kind = KindHeartbeat
		} else {
			c.Kind = KindAlarm
		}
	default:
		c.Reason = ReasonUnrecognizedType
	}

	return c
}

// FindAlertObservation returns the first observation of the first patient result
// whose sub id ends in the alert identity index.
func FindAlertObservation(msg *hl7.Message) (*hl7.Observation, bool) {
	for _, obs := range msg.Observations() {
		if index, ok := LocalIndex(obs.SubID); ok && index == IndexAlertIdentity {
			return &obs, true
		}
	}

	return nil, false
}
