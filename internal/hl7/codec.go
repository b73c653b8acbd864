package hl7

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse is returned when a payload does not decode into a Message.
	ErrParse = errors.New("parse message")
	// ErrSerialize is returned when a Message cannot be rendered to wire form.
	ErrSerialize = errors.New("serialize message")
)

// Encoding names a wire rendering of a Message.
type Encoding string

const (
	// EncodingER7 is the pipe/caret delimited segment text.
	EncodingER7 Encoding = "er7"
	// EncodingJSON is the JSON object form.
	EncodingJSON Encoding = "json"
)

// Valid reports whether e is a known encoding.
func (e Encoding) Valid() bool {
	return e == EncodingER7 || e == EncodingJSON
}

// Encode renders msg with the requested encoding.
func Encode(msg *Message, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingER7:
		return EncodeER7(msg)
	case EncodingJSON:
		return EncodeJSON(msg)
	default:
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrSerialize, enc)
	}
}

// EncodeJSON renders msg as a JSON object.
func EncodeJSON(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrSerialize)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialize, err)
	}

	return data, nil
}

// DecodeJSON parses the JSON object form.
func DecodeJSON(payload []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	if msg.Header.MessageType == "" {
		return nil, fmt.Errorf("%w: message type is missing", ErrParse)
	}

	return &msg, nil
}

// Parse decodes a payload in either encoding: a leading '{' selects JSON,
// anything else is treated as segment text.
func Parse(payload []byte) (*Message, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrParse)
	}

	if trimmed[0] == '{' {
		return DecodeJSON(trimmed)
	}

	return DecodeER7(trimmed)
}

// Dump renders msg for diagnostic logs: indented JSON followed by the segment text.
func Dump(msg *Message) string {
	if msg == nil {
		return "<nil message>"
	}

	var sb strings.Builder

	if data, err := json.MarshalIndent(msg, "", "  "); err == nil {
		sb.Write(data)
		sb.WriteByte('\n')
	}

	if data, err := EncodeER7(msg); err == nil {
		sb.WriteString(strings.ReplaceAll(string(data), string(SegmentSeparator), "\n"))
	}

	return strings.TrimRight(sb.String(), "\n")
}
