package mllp

import (
	"bytes"
	"errors"
	"io"
	"syscall"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

var errBroken = errors.New("connection reset")

// flakyReader returns EAGAIN once before every real byte.
type flakyReader struct {
	data    []byte
	blocked bool
}

func (f *flakyReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, io.EOF
	}

	if !f.blocked {
		f.blocked = true
		return 0, syscall.EAGAIN
	}

	f.blocked = false
	n := copy(p[:1], f.data)
	f.data = f.data[n:]

	return n, nil
}

// TestReadFrame covers complete, partial and rejected frames.
func TestReadFrame(t *testing.T) {
	t.Parallel()

	codec := NewCodec()

	payload, err := codec.ReadFrame(bytes.NewReader([]byte{0x0B, 'X', 0x1C}))
	require.NoError(t, err)
	require.Equal(t, []byte("X"), payload)

	// Tolerant partial read: stream ends before the end marker.
	payload, err = codec.ReadFrame(bytes.NewReader([]byte{0x0B, 'X'}))
	require.NoError(t, err)
	require.Equal(t, []byte("X"), payload)

	_, err = codec.ReadFrame(bytes.NewReader([]byte{'M', 'S', 'H', 0x1C}))
	require.ErrorIs(t, err, ErrMissingStartMarker)

	_, err = codec.ReadFrame(bytes.NewReader(nil))
	require.ErrorIs(t, err, io.EOF)
	require.NotErrorIs(t, err, ErrMissingStartMarker)
}

// TestReadFrame_StopsAtEndMarker leaves bytes after the end marker unread.
func TestReadFrame_StopsAtEndMarker(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader([]byte{0x0B, 'a', 'b', 0x1C, 0x0D, 'z'})

	payload, err := NewCodec().ReadFrame(iotest.OneByteReader(r))
	require.NoError(t, err)
	require.Equal(t, []byte("ab"), payload)
	require.Equal(t, 2, r.Len())
}

// TestReadFrame_RetriesWouldBlock treats EAGAIN as transient.
func TestReadFrame_RetriesWouldBlock(t *testing.T) {
	t.Parallel()

	r := &flakyReader{data: []byte{0x0B, 'h', 'i', 0x1C}, blocked: true}

	payload, err := NewCodec().ReadFrame(r)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), payload)
}

// TestReadFrame_PropagatesIOErrors surfaces failures other than EOF and EAGAIN.
func TestReadFrame_PropagatesIOErrors(t *testing.T) {
	t.Parallel()

	r := io.MultiReader(bytes.NewReader([]byte{0x0B, 'a'}), iotest.ErrReader(errBroken))

	_, err := NewCodec().ReadFrame(r)
	require.ErrorIs(t, err, errBroken)
}

// TestWriteFrame checks symmetric and bare output, and custom markers.
func TestWriteFrame(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewCodec().WriteFrame(&buf, []byte("MSH")))
	require.Equal(t, []byte{0x0B, 'M', 'S', 'H', 0x1C}, buf.Bytes())

	buf.Reset()
	require.NoError(t, NewCodec(WithBarePayloads()).WriteFrame(&buf, []byte("MSH")))
	require.Equal(t, []byte("MSH"), buf.Bytes())

	buf.Reset()
	custom := NewCodec(WithMarkers('<', '>'))
	require.NoError(t, custom.WriteFrame(&buf, []byte("x")))
	require.Equal(t, "<x>", buf.String())

	payload, err := custom.ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), payload)

	require.ErrorIs(t, NewCodec().WriteFrame(failingWriter{}, []byte("x")), errBroken)
}

// TestUnwrap strips markers when present and leaves bare payloads alone.
func TestUnwrap(t *testing.T) {
	t.Parallel()

	codec := NewCodec()
	require.Equal(t, []byte("ack"), codec.Unwrap([]byte{0x0B, 'a', 'c', 'k', 0x1C, 0x0D}))
	require.Equal(t, []byte("ack"), codec.Unwrap([]byte("ack")))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errBroken }
