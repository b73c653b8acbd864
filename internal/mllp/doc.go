// Package mllp delimits one message inside a byte stream.
//
// A frame is a start marker byte, the payload, and an end marker byte
// (0x0B ... 0x1C by default). Reads are tolerant of peers that disconnect
// before the end marker; writes wrap payloads unless the codec is configured
// for bare payloads.
package mllp
