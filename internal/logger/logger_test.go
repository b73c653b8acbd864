package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"panic": zapcore.PanicLevel,
		"fatal": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextHelpers verifies that scoped loggers travel through the context.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))

	var buf bytes.Buffer

	l := NewWithWriter(&buf, zapcore.DebugLevel)
	ctx := ToContext(context.Background(), l)
	ctx = WithName(ctx, "manager")
	ctx = WithKV(ctx, "peer", "127.0.0.1:5000")

	InfoKV(ctx, "frame received", "bytes", 42)
	DebugKV(ctx, "dump", "kind", "heartbeat")

	out := buf.String()
	require.Contains(t, out, "manager")
	require.Contains(t, out, "frame received")
	require.Contains(t, out, `"peer": "127.0.0.1:5000"`)
	require.Contains(t, out, `"bytes": 42`)
	require.Contains(t, out, "dump")
}

// TestLevelCore checks that the wrapped core filters by its own level only.
func TestLevelCore(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := NewWithWriter(&buf, zapcore.DebugLevel).WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return withLevel(core, zapcore.WarnLevel)
	}))
	require.Equal(t, zapcore.WarnLevel, zapcore.LevelOf(l.Desugar().Core()))
	ctx := ToContext(context.Background(), l)

	Info(ctx, "hidden")
	Warnf(ctx, "shown %d", 1)
	Error(ctx, "also shown")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "shown 1")
	require.Contains(t, out, "also shown")
}

// TestConfigure covers level parsing and the rotating file sink.
//
//nolint:paralleltest // Configure swaps the global logger.
func TestConfigure(t *testing.T) {
	before := Level()
	t.Cleanup(func() { SetLevel(before) })

	_, err := Configure("loud", FileSink{})
	require.ErrorIs(t, err, ErrUnknownLevel)

	path := filepath.Join(t.TempDir(), "acm.log")

	closeFn, err := Configure("debug", FileSink{Path: path, MaxSizeMB: 1})
	require.NoError(t, err)
	require.Equal(t, zapcore.DebugLevel, Level())

	Debugf(context.Background(), "written to %s", "file")
	require.NoError(t, closeFn())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "written to file")
	require.Contains(t, string(contents), "DEBUG")
}

// TestConfigure_FileLevel gives the log file a level independent of the console.
//
//nolint:paralleltest // Configure swaps the global logger.
func TestConfigure_FileLevel(t *testing.T) {
	before := Level()
	t.Cleanup(func() { SetLevel(before) })

	dir := t.TempDir()

	_, err := Configure("info", FileSink{Path: filepath.Join(dir, "bad.log"), Level: "loud"})
	require.ErrorIs(t, err, ErrUnknownLevel)

	// A quieter file.
	quiet := filepath.Join(dir, "quiet.log")

	closeFn, err := Configure("info", FileSink{Path: quiet, Level: "warn"})
	require.NoError(t, err)

	Info(context.Background(), "console only")
	Warn(context.Background(), "in both")
	require.NoError(t, closeFn())

	contents, err := os.ReadFile(quiet)
	require.NoError(t, err)
	require.NotContains(t, string(contents), "console only")
	require.Contains(t, string(contents), "in both")

	// A more verbose file.
	verbose := filepath.Join(dir, "verbose.log")

	closeFn, err = Configure("warn", FileSink{Path: verbose, Level: "debug"})
	require.NoError(t, err)

	Debug(context.Background(), "file only")
	require.NoError(t, closeFn())

	contents, err = os.ReadFile(verbose)
	require.NoError(t, err)
	require.Contains(t, string(contents), "file only")
}
