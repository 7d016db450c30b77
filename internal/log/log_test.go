package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawLoggerLines(t *testing.T) {
	type testCase struct {
		name       string
		fromDevice bool
		data       []byte
		want       string
	}
	cases := []testCase{
		{name: "keyboard byte", fromDevice: true, data: []byte{0x1c}, want: "2024/05/01 12:00:00.000000 K->H 1 bytes: 1c\n"},
		{name: "host command with arg", data: []byte{0xed, 0x04}, want: "2024/05/01 12:00:00.000000 H->K 2 bytes: ed 04\n"},
		{name: "empty writes nothing", data: nil, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := NewRaw(&buf).(*rawLogger)
			r.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
			r.Log(tc.fromDevice, tc.data)
			assert.Equal(t, tc.want, buf.String())
		})
	}
}

func TestRawLoggerNilWriter(t *testing.T) {
	assert.NotPanics(t, func() { NewRaw(nil).Log(true, []byte{0xaa}) })
}

func TestParseLevel(t *testing.T) {
	type testCase struct {
		in   string
		want slog.Level
	}
	cases := []testCase{
		{in: "trace", want: LevelTrace},
		{in: "DEBUG", want: slog.LevelDebug},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "bogus", want: slog.LevelInfo},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseLevel(tc.in))
		})
	}
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	h := LevelFilter{
		pass: func(l slog.Level) bool { return l >= slog.LevelWarn },
		h:    slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}
	logger := slog.New(h)
	logger.Info("dropped")
	logger.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(MultiHandler{hs: []slog.Handler{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}}).With("lock", "caps")

	logger.Info("lock toggled")
	assert.Contains(t, a.String(), "lock=caps")
	assert.Empty(t, b.String())

	logger.Error("echo handshake failed")
	assert.Contains(t, b.String(), "echo handshake failed")
}

func TestSetupLoggerWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	logger, closers, err := SetupLogger(Config{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	require.Len(t, closers, 1)

	logger.Debug("keyboard LEDs", "caps", true)
	for _, c := range closers {
		require.NoError(t, c.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "keyboard LEDs", rec["msg"])
	assert.Equal(t, true, rec["caps"])
}

func TestSetupLoggerBadFile(t *testing.T) {
	_, _, err := SetupLogger(Config{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
