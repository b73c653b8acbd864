package alert

import (
	"fmt"

	"github.com/oshokin/acm-simulator/internal/hl7"
)

// Device identifies the simulated reporting device.
type Device struct {
	// ID is the device uuid URN.
	ID string
	// Location is the assigned point of care.
	Location string
	// Facility is the sending facility written to MSH-4.
	Facility string
}

// EquipmentID is the OBX-18 equipment instance identifier of the device.
func (d Device) EquipmentID() string {
	return fmt.Sprintf("%s^^%s^URN", d.ID, d.ID)
}

const (
	examplePatientID   = "HO2009001^^^Hospital^PI"
	examplePatientName = "Abo^Nasser^^^L"
	examplePatientDOB  = "18991230"
	examplePatientSex  = "M"
	exampleTree        = "1.1.1"

	// HeartbeatWatchdogTree is the containment tree of the heartbeat watchdog observation.
	HeartbeatWatchdogTree = "0.0.1"
	// HeartbeatWatchdogPeriod is the confirm timeout announced with every heartbeat.
	HeartbeatWatchdogPeriod = "5"
	// HeartbeatWatchdogUnit is the unit of HeartbeatWatchdogPeriod.
	HeartbeatWatchdogUnit = "264320^MDC_DIM_SEC^MDC"
)

// HeartbeatParams returns the report parameters of a liveness heartbeat.
func HeartbeatParams(device Device) *AlertParams {
	return &AlertParams{
		SendingFacility:        device.Facility,
		AssignedLocation:       device.Location,
		EquipmentID:            device.EquipmentID(),
		PatientIdentifiers:     examplePatientID,
		PatientName:            examplePatientName,
		PatientDateOfBirth:     hl7.Opt(examplePatientDOB),
		PatientSex:             hl7.Opt(examplePatientSex),
		UniqueAlertID:          device.ID,
		ContainmentTreeID:      exampleTree,
		AlertType:              EventHeartbeat,
		ObservationType:        AttrAlertSource,
		ObservationValueType:   hl7.Opt("ST"),
		AlertPhase:             "start",
		AlertPriority:          "PN",
		AlertKind:              "SA",
		AlertState:             "active",
		AlertInactivationState: "enabled",
	}
}

// ExampleAlarmParams returns a low SpO2 alarm used by the on-demand alarm action.
func ExampleAlarmParams(device Device) *AlertParams {
	return &AlertParams{
		SendingFacility:        device.Facility,
		AssignedLocation:       device.Location,
		EquipmentID:            device.EquipmentID(),
		PatientIdentifiers:     examplePatientID,
		PatientName:            examplePatientName,
		PatientDateOfBirth:     hl7.Opt(examplePatientDOB),
		PatientSex:             hl7.Opt(examplePatientSex),
		UniqueAlertID:          device.ID,
		ContainmentTreeID:      exampleTree,
		MDSType:                "69837^MDC_DEV_METER_PHYSIO_MULTI_PARAM_MDS^MDC",
		VMDType:                "69686^MDC_DEV_ANALY_BLD_CHEM_MULTI_PARAM_VMD^MDC",
		AlertType:              "196670^MDC_EVT_LO^MDC",
		AlertText:              "Low Alert",
		ObservationType:        "150456^MDC_PULS_OXIM_SAT_O2^MDC",
		ObservationValue:       "42",
		ObservationValueType:   hl7.Opt("NM"),
		ObservationUnit:        hl7.Opt("262688^MDC_DIM_PERCENT^MDC"),
		AlertPhase:             "start",
		AlertPriority:          "PM",
		AlertKind:              "SP",
		AlertState:             "active",
		AlertInactivationState: "enabled",
	}
}
