// Package cli holds the flag and environment configuration shared by the
// sample programs.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	comserial "github.com/luhtfiimanal/go-comserial"
	"github.com/luhtfiimanal/go-comserial/internal/logging"
)

type Config struct {
	Device       string
	Speed        int
	DataSize     int
	StopSize     int
	Parity       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LogFormat    string
	LogLevel     string
	MetricsAddr  string
}

// Parse reads flags from args (without the program name), applies
// COMSERIAL_* overrides for flags not given explicitly, and validates.
// The device may be given as -device or as the single positional argument.
func Parse(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c := &Config{}
	fs.StringVar(&c.Device, "device", "", "Serial device path")
	fs.IntVar(&c.Speed, "speed", comserial.DefaultSpeed, "Baud rate")
	fs.IntVar(&c.DataSize, "data-size", comserial.DefaultDataSize, "Data bits: 5|6|7|8")
	fs.IntVar(&c.StopSize, "stop-size", comserial.DefaultStopSize, "Stop bits: 1|2")
	fs.StringVar(&c.Parity, "parity", "n", "Parity: n|e|o")
	fs.DurationVar(&c.ReadTimeout, "read-timeout", time.Second, "Read timeout")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", time.Second, "Write timeout")
	fs.StringVar(&c.LogFormat, "log-format", "text", "Log format: text|json")
	fs.StringVar(&c.LogLevel, "log-level", "info", "Log level: trace|debug|info|warn|error")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = struct{}{} })

	if fs.NArg() > 1 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args()[1:])
	}
	if fs.NArg() == 1 {
		if c.Device != "" {
			return nil, errors.New("device given both as flag and argument")
		}
		c.Device = fs.Arg(0)
		set["device"] = struct{}{}
	}

	if err := applyEnvOverrides(c, set); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// validate checks values only; device settings are checked again by Open.
func (c *Config) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.Device == "" {
		return errors.New("missing device path")
	}
	if len(c.Parity) != 1 {
		return fmt.Errorf("invalid parity: %q", c.Parity)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("read-timeout must be >= 0")
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("write-timeout must be >= 0")
	}
	return nil
}

// Session returns the comserial configuration for c.
func (c *Config) Session() comserial.Config {
	return comserial.Config{
		Device:   c.Device,
		Speed:    c.Speed,
		DataSize: c.DataSize,
		StopSize: c.StopSize,
		Parity:   c.Parity[0],
	}
}

// Logger builds the logger selected by the log flags. Output goes to
// COMSERIAL_LOG_FILE when set, stderr otherwise.
func (c *Config) Logger() (*slog.Logger, io.Closer, error) {
	lvl, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	w, closer, err := logging.Destination()
	if err != nil {
		return nil, nil, err
	}
	return logging.New(c.LogFormat, lvl, w), closer, nil
}

// applyEnvOverrides maps COMSERIAL_* environment variables to config fields
// unless a corresponding flag was explicitly set. Empty values are ignored.
func applyEnvOverrides(c *Config, set map[string]struct{}) error {
	var firstErr error
	get := func(flagName, key string) (string, bool) {
		if _, ok := set[flagName]; ok {
			return "", false
		}
		v, ok := os.LookupEnv(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	atoi := func(key, v string, dst *int) {
		n, err := strconv.Atoi(v)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", key, err)
			}
			return
		}
		*dst = n
	}
	duration := func(key, v string, dst *time.Duration) {
		d, err := time.ParseDuration(v)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", key, err)
			}
			return
		}
		*dst = d
	}

	if v, ok := get("device", "COMSERIAL_DEVICE"); ok {
		c.Device = v
	}
	if v, ok := get("speed", "COMSERIAL_SPEED"); ok {
		atoi("COMSERIAL_SPEED", v, &c.Speed)
	}
	if v, ok := get("data-size", "COMSERIAL_DATA_SIZE"); ok {
		atoi("COMSERIAL_DATA_SIZE", v, &c.DataSize)
	}
	if v, ok := get("stop-size", "COMSERIAL_STOP_SIZE"); ok {
		atoi("COMSERIAL_STOP_SIZE", v, &c.StopSize)
	}
	if v, ok := get("parity", "COMSERIAL_PARITY"); ok {
		c.Parity = v
	}
	if v, ok := get("read-timeout", "COMSERIAL_READ_TIMEOUT"); ok {
		duration("COMSERIAL_READ_TIMEOUT", v, &c.ReadTimeout)
	}
	if v, ok := get("write-timeout", "COMSERIAL_WRITE_TIMEOUT"); ok {
		duration("COMSERIAL_WRITE_TIMEOUT", v, &c.WriteTimeout)
	}
	if v, ok := get("log-format", logging.EnvFormat); ok {
		c.LogFormat = v
	}
	if v, ok := get("log-level", logging.EnvLevel); ok {
		c.LogLevel = v
	}
	if v, ok := get("metrics-addr", "COMSERIAL_METRICS"); ok {
		c.MetricsAddr = v
	}
	return firstErr
}
