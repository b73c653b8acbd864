package alert

// Message types.
const (
	// TypeAlarmReport is the ORU^R40 report carrying heartbeats and alarms.
	TypeAlarmReport = "ORU^R40^ORU_R40"
	// TypeAckReport is the manager's reply to an alarm report.
	TypeAckReport = "ACK^R40"
	// TypeAcknowledgment is an acknowledgment received by the manager; it is logged only.
	TypeAcknowledgment = "ACK^R41"
)

// Header constants of reporter-originated messages.
const (
	// ActorID is the EUI-64 identity of the simulated reporter.
	ActorID = "0000000000000001^EUI-64"
	// ActorSubID is ActorID in subcomponent form, used inside composite fields.
	ActorSubID = "0000000000000001&EUI-64"
	// AcceptAckAlways is MSH-15 on reports.
	AcceptAckAlways = "AL"
	// AppAckNever is MSH-16 on reports.
	AppAckNever = "NE"
	// AcceptAckConfirmed is MSH-15 on heartbeat acknowledgments.
	AcceptAckConfirmed = "CA"
	// ProfileACM identifies the alert communication profile (MSH-21).
	ProfileACM = "IHE_PCD_ACM_001^IHE PCD^1.3.6.1.4.1.19376.1.6.1.4.1^ISO"
	// Version is MSH-12 on structured messages.
	Version = "2.6"
	// PatientClassInpatient is PV1-2.
	PatientClassInpatient = "I"
)

// Observation identifiers.
const (
	// EventHeartbeat marks a report as a liveness signal.
	EventHeartbeat = "196614^MDC_EVT_ACTIVE^MDC"
	// EventAlarm is the OBR universal service identifier of every alert.
	EventAlarm = "196616^MDC_EVT_ALARM^MDC"

	AttrEventPhase             = "68481^MDC_ATTR_EVENT_PHASE^MDC"
	AttrAlarmState             = "68482^MDC_ATTR_ALARM_STATE^MDC"
	AttrAlarmInactivationState = "68483^MDC_ATTR_ALARM_INACTIVATION_STATE^MDC"
	AttrAlarmPriority          = "68484^MDC_ATTR_ALARM_PRIORITY^MDC"
	AttrAlertType              = "68485^MDC_ATTR_ALERT_TYPE^MDC"
	AttrConfirmTimeout         = "67860^MDC_ATTR_CONFIRM_TIMEOUT^MDC"
	AttrAlertSource            = "68480^MDC_ATTR_ALERT_SOURCE^MDC"
)

// Local indexes: the numeric suffix of an observation sub id.
const (
	IndexDevice = iota
	IndexAlertIdentity
	IndexPhysiological
	IndexEventPhase
	IndexAlarmState
	IndexInactivationState
	IndexPriority
	IndexAlertKind
	IndexWatchdog
)

// Result statuses (OBX-11).
const (
	StatusFinal    = "F"
	StatusNoResult = "X"
)

// Participation values on alarm acknowledgments.
const (
	DeliveryActionAdd    = "AD"
	DeliveryRoleReceiver = "RCV"
	// DefaultManagerFacility is the sending facility of alarm acknowledgments.
	DefaultManagerFacility = "MockAM"
)
