package mllp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"syscall"
)

const (
	// DefaultStartMarker opens a frame (vertical tab).
	DefaultStartMarker byte = 0x0B
	// DefaultEndMarker closes a frame (file separator).
	DefaultEndMarker byte = 0x1C
)

// ErrMissingStartMarker is returned when the first byte of a frame is not the start marker.
var ErrMissingStartMarker = errors.New("missing start marker")

// Codec reads and writes frames bounded by Start and End.
type Codec struct {
	// Start is the byte that opens a frame.
	Start byte
	// End is the byte that closes a frame.
	End byte
	// Wrap controls whether WriteFrame adds the markers around the payload.
	Wrap bool
}

// Option configures a Codec.
type Option func(*Codec)

// WithMarkers overrides the start and end marker bytes.
func WithMarkers(start, end byte) Option {
	return func(c *Codec) {
		c.Start = start
		c.End = end
	}
}

// WithBarePayloads disables marker wrapping on write. Reads still require markers.
func WithBarePayloads() Option {
	return func(c *Codec) {
		c.Wrap = false
	}
}

// NewCodec returns a symmetric codec with the default markers.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		Start: DefaultStartMarker,
		End:   DefaultEndMarker,
		Wrap:  true,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ReadFrame reads exactly one frame from r and returns its payload without markers.
// End of input before the end marker yields whatever was buffered so far.
func (c *Codec) ReadFrame(r io.Reader) ([]byte, error) {
	var one [1]byte

	if _, err := io.ReadFull(r, one[:]); err != nil {
		return nil, fmt.Errorf("read start marker: %w", err)
	}

	if one[0] != c.Start {
		return nil, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrMissingStartMarker, one[0], c.Start)
	}

	var buf bytes.Buffer

	for {
		n, err := r.Read(one[:])
		if n == 1 {
			if one[0] == c.End {
				return buf.Bytes(), nil
			}

			buf.WriteByte(one[0])
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return buf.Bytes(), nil
		case errors.Is(err, syscall.EAGAIN):
			// Transient; nothing was consumed.
			continue
		default:
			return nil, fmt.Errorf("read frame: %w", err)
		}
	}
}

// WriteFrame writes payload to w, wrapped in markers when the codec wraps.
func (c *Codec) WriteFrame(w io.Writer, payload []byte) error {
	frame := payload
	if c.Wrap {
		frame = make([]byte, 0, len(payload)+2)
		frame = append(frame, c.Start)
		frame = append(frame, payload...)
		frame = append(frame, c.End)
	}

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// Unwrap strips the markers from a received buffer when they are present.
func (c *Codec) Unwrap(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte{c.Start})

	if i := bytes.IndexByte(data, c.End); i >= 0 {
		data = data[:i]
	}

	return data
}
