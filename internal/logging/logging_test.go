package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	comserial "github.com/luhtfiimanal/go-comserial"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"trace": comserial.LevelTrace,
		"DEBUG": slog.LevelDebug,
		"":      slog.LevelInfo,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestNew_TraceName(t *testing.T) {
	var out bytes.Buffer
	l := New("text", comserial.LevelTrace, &out)
	l.Log(t.Context(), comserial.LevelTrace, "serial_dump")
	require.Contains(t, out.String(), "level=TRACE")

	out.Reset()
	New("json", slog.LevelInfo, &out).Debug("hidden")
	require.Empty(t, out.String())
}

func TestFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comserial.log")
	t.Setenv(EnvLevel, "debug")
	t.Setenv(EnvFormat, "json")
	t.Setenv(EnvFile, path)

	l, closer, err := FromEnv()
	require.NoError(t, err)
	l.Debug("serial_open", "device", "/dev/ttyS0")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"serial_open"`)
	require.Contains(t, string(data), `"device":"/dev/ttyS0"`)
}

func TestFromEnv_BadLevel(t *testing.T) {
	t.Setenv(EnvLevel, "chatty")
	_, _, err := FromEnv()
	require.Error(t, err)
}
