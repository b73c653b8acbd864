package hl7

import "slices"

// Header is the MSH segment.
type Header struct {
	// SendingApplication is MSH-3.
	SendingApplication string `json:"sending_application,omitempty"`
	// SendingFacility is MSH-4.
	SendingFacility string `json:"sending_facility,omitempty"`
	// ReceivingApplication is MSH-5.
	ReceivingApplication *string `json:"receiving_application,omitempty"`
	// Timestamp is MSH-7, already formatted.
	Timestamp string `json:"timestamp,omitempty"`
	// MessageType is MSH-9, e.g. "ORU^R40^ORU_R40".
	MessageType string `json:"message_type"`
	// ControlID is MSH-10.
	ControlID string `json:"control_id"`
	// ProcessingID is MSH-11.
	ProcessingID string `json:"processing_id,omitempty"`
	// VersionID is MSH-12.
	VersionID string `json:"version_id,omitempty"`
	// AcceptAckType is MSH-15.
	AcceptAckType *string `json:"accept_ack_type,omitempty"`
	// AppAckType is MSH-16.
	AppAckType *string `json:"app_ack_type,omitempty"`
	// ProfileIdentifiers is MSH-21.
	ProfileIdentifiers []string `json:"profile_identifiers,omitempty"`
}

// Acknowledgment is the MSA segment.
type Acknowledgment struct {
	// Code is MSA-1 (AA, AE, AR, CA...).
	Code string `json:"code"`
	// ControlID is MSA-2, the control id of the acknowledged message.
	ControlID string `json:"control_id"`
}

// PatientIdentity is the PID segment.
type PatientIdentity struct {
	IdentifierList []string `json:"identifier_list,omitempty"`
	Name           []string `json:"name,omitempty"`
	DateOfBirth    *string  `json:"date_of_birth,omitempty"`
	Sex            *string  `json:"sex,omitempty"`
}

// Visit is the PV1 segment.
type Visit struct {
	PatientClass     string  `json:"patient_class,omitempty"`
	AssignedLocation *string `json:"assigned_location,omitempty"`
}

// Note is an NTE segment.
type Note struct {
	SetID   string   `json:"set_id,omitempty"`
	Comment []string `json:"comment,omitempty"`
}

// Order is the OBR segment describing the alert event itself.
type Order struct {
	// SetID is OBR-1.
	SetID string `json:"set_id,omitempty"`
	// FillerOrderNumber is OBR-3: "<update counter>^<alert uuid>^<actor>".
	FillerOrderNumber string `json:"filler_order_number,omitempty"`
	// ServiceIdentifier is OBR-4, the alert event code.
	ServiceIdentifier string `json:"service_identifier,omitempty"`
	// ObservationTime is OBR-7.
	ObservationTime string `json:"observation_time,omitempty"`
	// Parent is OBR-29, set only on updates of an already reported alert.
	Parent *string `json:"parent,omitempty"`
}

// Observation is an OBX segment.
type Observation struct {
	// SetID is OBX-1, the 1-based sequence number inside the message.
	SetID int `json:"set_id"`
	// ValueType is OBX-2 (NM, ST...).
	ValueType *string `json:"value_type,omitempty"`
	// Identifier is OBX-3.
	Identifier string `json:"identifier"`
	// SubID is OBX-4: "<containment tree id>.<local index>".
	SubID string `json:"sub_id"`
	// Values is OBX-5.
	Values []string `json:"values,omitempty"`
	// Unit is OBX-6.
	Unit *string `json:"unit,omitempty"`
	// ResultStatus is OBX-11: "F" for final, "X" for no result.
	ResultStatus string `json:"result_status,omitempty"`
	// Time is OBX-14.
	Time *string `json:"time,omitempty"`
	// Equipment is OBX-18.
	Equipment []string `json:"equipment,omitempty"`
	// Site is OBX-20.
	Site *string `json:"site,omitempty"`
}

// Participation is a PRT segment attached to an observation group.
type Participation struct {
	// Action is PRT-2.
	Action string `json:"action,omitempty"`
	// ActionReason is PRT-3.
	ActionReason *string `json:"action_reason,omitempty"`
	// Role is PRT-4.
	Role string `json:"role,omitempty"`
}

// ObservationGroup is one OBX with the PRT segments following it.
type ObservationGroup struct {
	Observation    Observation     `json:"observation"`
	Participations []Participation `json:"participations,omitempty"`
}

// Patient groups identity, visit and notes.
type Patient struct {
	Identity PatientIdentity `json:"identity"`
	Visit    *Visit          `json:"visit,omitempty"`
	Notes    []Note          `json:"notes,omitempty"`
}

// PatientResult is one repeatable patient result block.
type PatientResult struct {
	Patient      *Patient           `json:"patient,omitempty"`
	Order        *Order             `json:"order,omitempty"`
	Observations []ObservationGroup `json:"observations,omitempty"`
}

// Message is a complete structured message.
type Message struct {
	Header         Header          `json:"header"`
	Acknowledgment *Acknowledgment `json:"acknowledgment,omitempty"`
	Results        []PatientResult `json:"results,omitempty"`
}

// Opt returns a pointer to s, marking an optional value as provided.
func Opt(s string) *string {
	return &s
}

// Val returns the value behind p or "" when it is absent.
func Val(p *string) string {
	if p == nil {
		return ""
	}

	return *p
}

// Observations returns the observations of the first patient result.
func (m *Message) Observations() []Observation {
	if m == nil || len(m.Results) == 0 {
		return nil
	}

	groups := m.Results[0].Observations
	result := make([]Observation, 0, len(groups))

	for i := range groups {
		result = append(result, groups[i].Observation)
	}

	return result
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}

	cloned := &Message{
		Header: m.Header.clone(),
	}

	if m.Acknowledgment != nil {
		ack := *m.Acknowledgment
		cloned.Acknowledgment = &ack
	}

	if m.Results != nil {
		cloned.Results = make([]PatientResult, len(m.Results))
		for i := range m.Results {
			cloned.Results[i] = m.Results[i].clone()
		}
	}

	return cloned
}

func (h Header) clone() Header {
	h.ReceivingApplication = cloneOpt(h.ReceivingApplication)
	h.AcceptAckType = cloneOpt(h.AcceptAckType)
	h.AppAckType = cloneOpt(h.AppAckType)
	h.ProfileIdentifiers = slices.Clone(h.ProfileIdentifiers)

	return h
}

func (r *PatientResult) clone() PatientResult {
	var cloned PatientResult

	if r.Patient != nil {
		patient := r.Patient.clone()
		cloned.Patient = &patient
	}

	if r.Order != nil {
		order := *r.Order
		order.Parent = cloneOpt(order.Parent)
		cloned.Order = &order
	}

	if r.Observations != nil {
		cloned.Observations = make([]ObservationGroup, len(r.Observations))
		for i := range r.Observations {
			cloned.Observations[i] = r.Observations[i].clone()
		}
	}

	return cloned
}

func (p *Patient) clone() Patient {
	cloned := Patient{
		Identity: PatientIdentity{
			IdentifierList: slices.Clone(p.Identity.IdentifierList),
			Name:           slices.Clone(p.Identity.Name),
			DateOfBirth:    cloneOpt(p.Identity.DateOfBirth),
			Sex:            cloneOpt(p.Identity.Sex),
		},
	}

	if p.Visit != nil {
		cloned.Visit = &Visit{
			PatientClass:     p.Visit.PatientClass,
			AssignedLocation: cloneOpt(p.Visit.AssignedLocation),
		}
	}

	if p.Notes != nil {
		cloned.Notes = make([]Note, len(p.Notes))
		for i, note := range p.Notes {
			cloned.Notes[i] = Note{SetID: note.SetID, Comment: slices.Clone(note.Comment)}
		}
	}

	return cloned
}

func (g *ObservationGroup) clone() ObservationGroup {
	obs := g.Observation
	obs.ValueType = cloneOpt(obs.ValueType)
	obs.Values = slices.Clone(obs.Values)
	obs.Unit = cloneOpt(obs.Unit)
	obs.Time = cloneOpt(obs.Time)
	obs.Equipment = slices.Clone(obs.Equipment)
	obs.Site = cloneOpt(obs.Site)

	cloned := ObservationGroup{Observation: obs}

	if g.Participations != nil {
		cloned.Participations = make([]Participation, len(g.Participations))
		for i, prt := range g.Participations {
			prt.ActionReason = cloneOpt(prt.ActionReason)
			cloned.Participations[i] = prt
		}
	}

	return cloned
}

func cloneOpt(p *string) *string {
	if p == nil {
		return nil
	}

	return Opt(*p)
}
