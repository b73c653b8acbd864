// Package hl7 holds the structured message model exchanged by the alert
// reporter and the alert manager, together with its two wire renderings:
// the pipe/caret delimited segment text (ER7) and a JSON object form.
//
// Only the segments the alert communication profile needs are modelled
// (MSH, MSA, PID, PV1, NTE, OBR, OBX, PRT). Unknown segments are skipped on
// parse. Optional values are pointers, nil meaning "not provided".
package hl7
