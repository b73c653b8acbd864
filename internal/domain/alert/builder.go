package alert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/acm-simulator/internal/hl7"
)

// TimestampLayout is the fixed-width message timestamp format.
const TimestampLayout = "20060102150405-0700"

// ErrInvalidContainmentTree is returned when a containment tree id has fewer than two components.
var ErrInvalidContainmentTree = errors.New("invalid containment tree id")

// AlertParams are the semantic fields of one alert report.
type AlertParams struct {
	// SendingFacility is MSH-4.
	SendingFacility string
	// ReceivingApplication is MSH-5.
	ReceivingApplication *string
	// ProcessingID is MSH-11.
	ProcessingID string

	// AssignedLocation is PV1-3.
	AssignedLocation string
	// EquipmentID is written to OBX-18 of every observation.
	EquipmentID string

	PatientIdentifiers string
	PatientName        string
	PatientDateOfBirth *string
	PatientSex         *string
	// Comment becomes an NTE attached to the patient.
	Comment *string

	// UniqueAlertID identifies the alert across its updates.
	UniqueAlertID string
	// AlertCounter is 0 for a new alert and grows with every update.
	AlertCounter int

	// ContainmentTreeID is the "<mds>.<vmd>.<channel>" path of the alerting component.
	ContainmentTreeID string
	MDSType           string
	VMDType           string

	AlertType string
	AlertText string

	ObservationType      string
	ObservationValue     string
	ObservationValueType *string
	ObservationUnit      *string
	ObservationTime      *string

	AlertPhase             string
	AlertState             string
	AlertInactivationState string
	AlertPriority          string
	AlertKind              string
}

// Builder assembles alert reports. A Builder is not safe for concurrent use.
type Builder struct {
	now           func() time.Time
	nextControlID uint64
	sequence      int
	equipment     string
	msg           hl7.Message
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock overrides the clock used for message timestamps.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder returns a Builder whose first message gets control id "0".
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		now: time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// DeriveTrees returns the system-level and virtual-device-level tree ids of tree:
// "A.B.C" gives "A.0.0" and "A.B.0".
func DeriveTrees(tree string) (mds, vmd string, err error) {
	parts := strings.Split(tree, ".")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidContainmentTree, tree)
	}

	return parts[0] + ".0.0", parts[0] + "." + parts[1] + ".0", nil
}

// LocalIndex returns the numeric suffix of an observation sub id.
func LocalIndex(subID string) (int, bool) {
	i := strings.LastIndexByte(subID, '.')

	index, err := strconv.Atoi(subID[i+1:])
	if err != nil {
		return 0, false
	}

	return index, true
}

// Build replaces the current message with a fresh report for params.
func (b *Builder) Build(params *AlertParams) error {
	mdsTree, vmdTree, err := DeriveTrees(params.ContainmentTreeID)
	if err != nil {
		return err
	}

	timestamp := b.now().UTC().Format(TimestampLayout)

	b.msg = hl7.Message{
		Header:  b.header(params, timestamp),
		Results: []hl7.PatientResult{b.patientResult(params, timestamp)},
	}
	b.equipment = params.EquipmentID
	b.sequence = 0

	tree := params.ContainmentTreeID

	b.appendObservation(IndexDevice, params.MDSType, "", nil, nil, nil, mdsTree)
	b.appendObservation(IndexDevice, params.VMDType, "", nil, nil, nil, vmdTree)
	b.appendObservation(IndexAlertIdentity, params.AlertType, params.AlertText, nil, nil, nil, tree)
	b.appendObservation(
		IndexPhysiological,
		params.ObservationType,
		params.ObservationValue,
		params.ObservationUnit,
		params.ObservationTime,
		params.ObservationValueType,
		tree,
	)
	b.appendObservation(IndexEventPhase, AttrEventPhase, params.AlertPhase, nil, nil, nil, tree)
	b.appendObservation(IndexAlarmState, AttrAlarmState, params.AlertState, nil, nil, nil, tree)
	b.appendObservation(IndexInactivationState, AttrAlarmInactivationState, params.AlertInactivationState, nil, nil, nil, tree)
	b.appendObservation(IndexPriority, AttrAlarmPriority, params.AlertPriority, nil, nil, nil, tree)
	b.appendObservation(IndexAlertKind, AttrAlertType, params.AlertKind, nil, nil, nil, tree)

	return nil
}

// AppendWatchdog adds the confirm-timeout observation sent with heartbeats.
func (b *Builder) AppendWatchdog(period string, unit *string, tree string) {
	b.appendObservation(IndexWatchdog, AttrConfirmTimeout, period, unit, nil, hl7.Opt("NM"), tree)
}

// SetControlID overwrites MSH-10 only.
func (b *Builder) SetControlID(id string) {
	b.msg.Header.ControlID = id
}

// Message returns a snapshot of the current message.
func (b *Builder) Message() *hl7.Message {
	return b.msg.Clone()
}

func (b *Builder) header(params *AlertParams, timestamp string) hl7.Header {
	controlID := strconv.FormatUint(b.nextControlID, 10)
	b.nextControlID++

	var receiving *string
	if params.ReceivingApplication != nil {
		receiving = hl7.Opt(*params.ReceivingApplication)
	}

	return hl7.Header{
		SendingApplication:   ActorID,
		SendingFacility:      params.SendingFacility,
		ReceivingApplication: receiving,
		Timestamp:            timestamp,
		MessageType:          TypeAlarmReport,
		ControlID:            controlID,
		ProcessingID:         params.ProcessingID,
		VersionID:            Version,
		AcceptAckType:        hl7.Opt(AcceptAckAlways),
		AppAckType:           hl7.Opt(AppAckNever),
		ProfileIdentifiers:   []string{ProfileACM},
	}
}

func (b *Builder) patientResult(params *AlertParams, timestamp string) hl7.PatientResult {
	patient := &hl7.Patient{
		Identity: hl7.PatientIdentity{
			IdentifierList: []string{params.PatientIdentifiers},
			Name:           []string{params.PatientName},
			DateOfBirth:    copyOpt(params.PatientDateOfBirth),
			Sex:            copyOpt(params.PatientSex),
		},
		Visit: &hl7.Visit{
			PatientClass:     PatientClassInpatient,
			AssignedLocation: hl7.Opt(params.AssignedLocation),
		},
	}

	if params.Comment != nil {
		patient.Notes = []hl7.Note{{SetID: "1", Comment: []string{*params.Comment}}}
	}

	order := &hl7.Order{
		SetID:             "1",
		FillerOrderNumber: fmt.Sprintf("%d^%s^%s", params.AlertCounter, params.UniqueAlertID, ActorID),
		ServiceIdentifier: EventAlarm,
		ObservationTime:   timestamp,
	}

	if params.AlertCounter > 0 {
		order.Parent = hl7.Opt(fmt.Sprintf("^0&%s&%s", params.UniqueAlertID, ActorSubID))
	}

	return hl7.PatientResult{
		Patient: patient,
		Order:   order,
	}
}

// appendObservation adds one OBX; the sequence number always grows, the local
// index is the caller's position in the report layout.
func (b *Builder) appendObservation(
	localIndex int,
	identifier string,
	value string,
	unit *string,
	observedAt *string,
	valueType *string,
	tree string,
) {
	b.sequence++

	status := StatusNoResult
	if valueType != nil {
		status = StatusFinal
	}

	obs := hl7.Observation{
		SetID:        b.sequence,
		ValueType:    copyOpt(valueType),
		Identifier:   identifier,
		SubID:        tree + "." + strconv.Itoa(localIndex),
		Values:       []string{value},
		Unit:         copyOpt(unit),
		ResultStatus: status,
		Time:         copyOpt(observedAt),
		Equipment:    []string{b.equipment},
	}

	if len(b.msg.Results) == 0 {
		b.msg.Results = append(b.msg.Results, hl7.PatientResult{})
	}

	result := &b.msg.Results[0]
	result.Observations = append(result.Observations, hl7.ObservationGroup{Observation: obs})
}

func copyOpt(p *string) *string {
	if p == nil {
		return nil
	}

	return hl7.Opt(*p)
}
