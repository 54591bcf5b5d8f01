package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	comserial "github.com/luhtfiimanal/go-comserial"
)

// Environment variables read by FromEnv.
const (
	EnvLevel  = "COMSERIAL_LOG_LEVEL"
	EnvFormat = "COMSERIAL_LOG_FORMAT"
	EnvFile   = "COMSERIAL_LOG_FILE"
)

// New creates a new logger with given level, format ("text" or "json"), and optional writer (defaults stderr).
func New(format string, level slog.Leveler, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: levelNames}
	var h slog.Handler
	switch format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// levelNames prints comserial.LevelTrace as TRACE instead of DEBUG-4.
func levelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= comserial.LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

// ParseLevel maps trace|debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return comserial.LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
}

// FromEnv builds a logger from COMSERIAL_LOG_LEVEL, COMSERIAL_LOG_FORMAT and
// COMSERIAL_LOG_FILE. The returned closer releases the log file, if any.
func FromEnv() (*slog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(os.Getenv(EnvLevel))
	if err != nil {
		return nil, nil, err
	}
	w, closer, err := Destination()
	if err != nil {
		return nil, nil, err
	}
	return New(strings.TrimSpace(os.Getenv(EnvFormat)), lvl, w), closer, nil
}

// Destination opens COMSERIAL_LOG_FILE for appending, or returns stderr
// when it is unset.
func Destination() (io.Writer, io.Closer, error) {
	path := strings.TrimSpace(os.Getenv(EnvFile))
	if path == "" {
		return os.Stderr, io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f, nil
}
