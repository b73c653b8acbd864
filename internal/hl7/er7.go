package hl7

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

const (
	// SegmentSeparator terminates every segment.
	SegmentSeparator = '\r'

	// EncodingCharacters is MSH-2 as written by this package.
	EncodingCharacters = `^~\&`

	headerSegment = "MSH"
)

// Delimiters are the separator characters declared by an MSH segment.
type Delimiters struct {
	Field        byte
	Component    byte
	Repeat       byte
	Escape       byte
	Subcomponent byte
}

// DefaultDelimiters returns the standard "|^~\&" set.
func DefaultDelimiters() Delimiters {
	return Delimiters{
		Field:        '|',
		Component:    '^',
		Repeat:       '~',
		Escape:       '\\',
		Subcomponent: '&',
	}
}

// GetDelimiters reads the separator characters from the MSH segment at the start of msg.
func GetDelimiters(msg []byte) (Delimiters, error) {
	if len(msg) < 8 {
		return Delimiters{}, fmt.Errorf("%w: message too short", ErrParse)
	}

	if !bytes.HasPrefix(msg, []byte(headerSegment)) {
		return Delimiters{}, fmt.Errorf("%w: missing MSH header", ErrParse)
	}

	return Delimiters{
		Field:        msg[3],
		Component:    msg[4],
		Repeat:       msg[5],
		Escape:       msg[6],
		Subcomponent: msg[7],
	}, nil
}

func (d Delimiters) escaper() *strings.Replacer {
	esc := string(d.Escape)

	return strings.NewReplacer(
		esc, esc+"E"+esc,
		string(d.Field), esc+"F"+esc,
		string(d.Repeat), esc+"R"+esc,
		"\r", esc+"X0D"+esc,
		"\n", esc+"X0A"+esc,
	)
}

func (d Delimiters) unescaper() *strings.Replacer {
	esc := string(d.Escape)

	return strings.NewReplacer(
		esc+"E"+esc, esc,
		esc+"F"+esc, string(d.Field),
		esc+"R"+esc, string(d.Repeat),
		esc+"X0D"+esc, "\r",
		esc+"X0A"+esc, "\n",
	)
}

// segmentWriter collects the fields of one segment; index 0 is the segment name.
type segmentWriter struct {
	fields []string
	esc    *strings.Replacer
	repeat string
}

func (w *segmentWriter) set(index int, value string) {
	for len(w.fields) <= index {
		w.fields = append(w.fields, "")
	}

	w.fields[index] = w.esc.Replace(value)
}

func (w *segmentWriter) setOpt(index int, value *string) {
	if value != nil {
		w.set(index, *value)
	}
}

func (w *segmentWriter) setList(index int, values []string) {
	if len(values) == 0 {
		return
	}

	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = w.esc.Replace(v)
	}

	w.set(index, "")
	w.fields[index] = strings.Join(escaped, w.repeat)
}

func (w *segmentWriter) writeTo(buf *bytes.Buffer, sep byte) {
	last := len(w.fields)
	for last > 1 && w.fields[last-1] == "" {
		last--
	}

	for i, field := range w.fields[:last] {
		if i > 0 {
			buf.WriteByte(sep)
		}

		buf.WriteString(field)
	}

	buf.WriteByte(SegmentSeparator)
}

// EncodeER7 renders msg in segment text form.
func EncodeER7(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrSerialize)
	}

	if msg.Header.MessageType == "" {
		return nil, fmt.Errorf("%w: message type is empty", ErrSerialize)
	}

	var (
		delims = DefaultDelimiters()
		esc    = delims.escaper()
		repeat = string(delims.Repeat)
		buf    bytes.Buffer
	)

	segment := func(name string) *segmentWriter {
		return &segmentWriter{fields: []string{name}, esc: esc, repeat: repeat}
	}

	// MSH-1 is the field separator itself, so MSH-n lives at index n-1.
	msh := segment(headerSegment)
	msh.fields = append(msh.fields, EncodingCharacters)

	h := &msg.Header
	msh.set(2, h.SendingApplication)
	msh.set(3, h.SendingFacility)
	msh.setOpt(4, h.ReceivingApplication)
	msh.set(6, h.Timestamp)
	msh.set(8, h.MessageType)
	msh.set(9, h.ControlID)
	msh.set(10, h.ProcessingID)
	msh.set(11, h.VersionID)
	msh.setOpt(14, h.AcceptAckType)
	msh.setOpt(15, h.AppAckType)
	msh.setList(20, h.ProfileIdentifiers)
	msh.writeTo(&buf, delims.Field)

	if ack := msg.Acknowledgment; ack != nil {
		msa := segment("MSA")
		msa.set(1, ack.Code)
		msa.set(2, ack.ControlID)
		msa.writeTo(&buf, delims.Field)
	}

	for i := range msg.Results {
		encodeResult(&buf, &msg.Results[i], segment, delims.Field)
	}

	return buf.Bytes(), nil
}

func encodeResult(buf *bytes.Buffer, result *PatientResult, segment func(string) *segmentWriter, sep byte) {
	if p := result.Patient; p != nil {
		pid := segment("PID")
		pid.setList(3, p.Identity.IdentifierList)
		pid.setList(5, p.Identity.Name)
		pid.setOpt(7, p.Identity.DateOfBirth)
		pid.setOpt(8, p.Identity.Sex)
		pid.writeTo(buf, sep)

		for _, note := range p.Notes {
			nte := segment("NTE")
			nte.set(1, note.SetID)
			nte.setList(3, note.Comment)
			nte.writeTo(buf, sep)
		}

		if v := p.Visit; v != nil {
			pv1 := segment("PV1")
			pv1.set(2, v.PatientClass)
			pv1.setOpt(3, v.AssignedLocation)
			pv1.writeTo(buf, sep)
		}
	}

	if o := result.Order; o != nil {
		obr := segment("OBR")
		obr.set(1, o.SetID)
		obr.set(3, o.FillerOrderNumber)
		obr.set(4, o.ServiceIdentifier)
		obr.set(7, o.ObservationTime)
		obr.setOpt(29, o.Parent)
		obr.writeTo(buf, sep)
	}

	for i := range result.Observations {
		group := &result.Observations[i]
		obs := &group.Observation

		obx := segment("OBX")
		obx.set(1, strconv.Itoa(obs.SetID))
		obx.setOpt(2, obs.ValueType)
		obx.set(3, obs.Identifier)
		obx.set(4, obs.SubID)
		obx.setList(5, obs.Values)
		obx.setOpt(6, obs.Unit)
		obx.set(11, obs.ResultStatus)
		obx.setOpt(14, obs.Time)
		obx.setList(18, obs.Equipment)
		obx.setOpt(20, obs.Site)
		obx.writeTo(buf, sep)

		for _, participation := range group.Participations {
			prt := segment("PRT")
			prt.set(2, participation.Action)
			prt.setOpt(3, participation.ActionReason)
			prt.set(4, participation.Role)
			prt.writeTo(buf, sep)
		}
	}
}

// segmentReader gives access to the fields of one parsed segment.
type segmentReader struct {
	name   string
	fields []string
	// offset is 1 for MSH, whose first field is the separator itself.
	offset int
	unesc  *strings.Replacer
	repeat string
}

func (r *segmentReader) raw(n int) string {
	i := n - r.offset
	if i <= 0 || i >= len(r.fields) {
		return ""
	}

	return r.fields[i]
}

func (r *segmentReader) get(n int) string {
	return r.unesc.Replace(r.raw(n))
}

func (r *segmentReader) opt(n int) *string {
	if v := r.raw(n); v != "" {
		return Opt(r.unesc.Replace(v))
	}

	return nil
}

func (r *segmentReader) list(n int) []string {
	v := r.raw(n)
	if v == "" {
		return nil
	}

	parts := strings.Split(v, r.repeat)
	for i := range parts {
		parts[i] = r.unesc.Replace(parts[i])
	}

	return parts
}

// DecodeER7 parses segment text into a Message. Segments may be separated by
// CR, LF or CRLF. Segments outside the modelled set are ignored.
//
//nolint:cyclop,funlen // One case per segment type.
func DecodeER7(payload []byte) (*Message, error) {
	text := strings.TrimSpace(string(payload))

	delims, err := GetDelimiters([]byte(text))
	if err != nil {
		return nil, err
	}

	var (
		unesc   = delims.unescaper()
		repeat  = string(delims.Repeat)
		msg     = new(Message)
		current *PatientResult
	)

	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\r' || r == '\n' })

	newResult := func() *PatientResult {
		msg.Results = append(msg.Results, PatientResult{})
		return &msg.Results[len(msg.Results)-1]
	}

	ensurePatient := func() *Patient {
		if current == nil {
			current = newResult()
		}

		if current.Patient == nil {
			current.Patient = new(Patient)
		}

		return current.Patient
	}

	for i, line := range lines {
		fields := strings.Split(line, string(delims.Field))
		seg := &segmentReader{name: fields[0], fields: fields, unesc: unesc, repeat: repeat}

		if i == 0 && seg.name != headerSegment {
			return nil, fmt.Errorf("%w: first segment is %q, want MSH", ErrParse, seg.name)
		}

		switch seg.name {
		case headerSegment:
			if i != 0 {
				return nil, fmt.Errorf("%w: repeated MSH segment", ErrParse)
			}

			seg.offset = 1
			msg.Header = Header{
				SendingApplication:   seg.get(3),
				SendingFacility:      seg.get(4),
				ReceivingApplication: seg.opt(5),
				Timestamp:            seg.get(7),
				MessageType:          seg.get(9),
				ControlID:            seg.get(10),
				ProcessingID:         seg.get(11),
				VersionID:            seg.get(12),
				AcceptAckType:        seg.opt(15),
				AppAckType:           seg.opt(16),
				ProfileIdentifiers:   seg.list(21),
			}
		case "MSA":
			msg.Acknowledgment = &Acknowledgment{
				Code:      seg.get(1),
				ControlID: seg.get(2),
			}
		case "PID":
			current = newResult()
			current.Patient = &Patient{
				Identity: PatientIdentity{
					IdentifierList: seg.list(3),
					Name:           seg.list(5),
					DateOfBirth:    seg.opt(7),
					Sex:            seg.opt(8),
				},
			}
		case "PV1":
			ensurePatient().Visit = &Visit{
				PatientClass:     seg.get(2),
				AssignedLocation: seg.opt(3),
			}
		case "NTE":
			patient := ensurePatient()
			patient.Notes = append(patient.Notes, Note{
				SetID:   seg.get(1),
				Comment: seg.list(3),
			})
		case "OBR":
			if current == nil {
				current = newResult()
			}

			current.Order = &Order{
				SetID:             seg.get(1),
				FillerOrderNumber: seg.get(3),
				ServiceIdentifier: seg.get(4),
				ObservationTime:   seg.get(7),
				Parent:            seg.opt(29),
			}
		case "OBX":
			if current == nil {
				current = newResult()
			}

			setID, err := strconv.Atoi(seg.get(1))
			if err != nil {
				return nil, fmt.Errorf("%w: OBX set id %q: %w", ErrParse, seg.get(1), err)
			}

			current.Observations = append(current.Observations, ObservationGroup{
				Observation: Observation{
					SetID:        setID,
					ValueType:    seg.opt(2),
					Identifier:   seg.get(3),
					SubID:        seg.get(4),
					Values:       seg.list(5),
					Unit:         seg.opt(6),
					ResultStatus: seg.get(11),
					Time:         seg.opt(14),
					Equipment:    seg.list(18),
					Site:         seg.opt(20),
				},
			})
		case "PRT":
			if current == nil || len(current.Observations) == 0 {
				continue
			}

			last := &current.Observations[len(current.Observations)-1]
			last.Participations = append(last.Participations, Participation{
				Action:       seg.get(2),
				ActionReason: seg.opt(3),
				Role:         seg.get(4),
			})
		}
	}

	return msg, nil
}
