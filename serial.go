package comserial

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"
)

const (
	invalidHandle  = -1
	defaultTimeout = 1000 * time.Millisecond
)

// Session owns one open TTY and its validated line configuration.
// A Session is not safe for concurrent use; one caller at a time.
type Session struct {
	fd     int
	device string
	opts   lineOptions

	readTimeout  time.Duration
	writeTimeout time.Duration

	log *slog.Logger
	obs Observer
}

// Config holds parameters for opening a serial device.
// Zero-valued fields take the package defaults: 19200 bps, 8 data bits,
// 1 stop bit and no parity.
type Config struct {
	Device   string
	Speed    int
	DataSize int
	StopSize int
	Parity   byte // 'n', 'e' or 'o', either case

	// Logger receives debug and trace output. Nil discards it.
	Logger *slog.Logger
	// Observer is notified of every buffered transfer. Nil disables it.
	Observer Observer
}

func (c Config) lineOptions() lineOptions {
	o := lineOptions{
		speed:    c.Speed,
		dataSize: c.DataSize,
		stopSize: c.StopSize,
		parity:   c.Parity,
	}
	if o.speed == 0 {
		o.speed = DefaultSpeed
	}
	if o.dataSize == 0 {
		o.dataSize = DefaultDataSize
	}
	if o.stopSize == 0 {
		o.stopSize = DefaultStopSize
	}
	if o.parity == 0 {
		o.parity = DefaultParity
	}
	return o
}

// OpenDevice opens path with the default configuration.
func OpenDevice(path string) (*Session, error) {
	return Open(Config{Device: path})
}

// Open validates cfg, opens the device and commits a raw-mode line
// discipline built from it. Read and write timeouts start at one second.
func Open(cfg Config) (*Session, error) {
	opts, err := cfg.lineOptions().validate()
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}

	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrDeviceNotFound, cfg.Device, err)
	}

	// The termios query doubles as the isatty check.
	if _, err := unix.IoctlGetTermios(fd, unix.TCGETS); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w (%s): %w", ErrInvalidDevice, cfg.Device, err)
	}

	s := &Session{
		fd:           fd,
		device:       cfg.Device,
		readTimeout:  defaultTimeout,
		writeTimeout: defaultTimeout,
		log:          log.With("device", cfg.Device),
		obs:          obs,
	}
	if err := s.commit(opts); err != nil {
		unix.Close(fd)
		return nil, err
	}
	s.opts = opts
	s.log.Debug("serial_open",
		"speed", opts.speed,
		"data_size", opts.dataSize,
		"stop_size", opts.stopSize,
		"parity", string(opts.parity))
	return s, nil
}

// commit flushes pending I/O and sets the line discipline built from o.
func (s *Session) commit(o lineOptions) error {
	if s.fd == invalidHandle {
		return ErrClosed
	}
	if err := unix.IoctlSetTermios(s.fd, unix.TCSETSF, o.termios()); err != nil {
		s.log.Error("serial_commit_failed", "error", err)
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	s.log.Debug("serial_commit", "speed", o.speed, "data_size", o.dataSize,
		"stop_size", o.stopSize, "parity", string(o.parity))
	return nil
}

// update validates next, commits it and makes it current.
func (s *Session) update(next lineOptions) error {
	if s.fd == invalidHandle {
		return ErrClosed
	}
	next, err := next.validate()
	if err != nil {
		return err
	}
	if err := s.commit(next); err != nil {
		return err
	}
	s.opts = next
	return nil
}

// Device returns the path the session was opened with.
func (s *Session) Device() string { return s.device }

// Fd returns the underlying descriptor, or -1 once closed.
func (s *Session) Fd() int { return s.fd }

// Speed returns the current baud rate.
func (s *Session) Speed() int { return s.opts.speed }

// SetSpeed changes the baud rate and returns the previous one.
// On error the session keeps its current speed.
func (s *Session) SetSpeed(speed int) (int, error) {
	old := s.opts.speed
	next := s.opts
	next.speed = speed
	if err := s.update(next); err != nil {
		return old, err
	}
	return old, nil
}

// DataSize returns the number of data bits per character.
func (s *Session) DataSize() int { return s.opts.dataSize }

// SetDataSize changes the data bits (5 to 8) and returns the previous value.
func (s *Session) SetDataSize(size int) (int, error) {
	old := s.opts.dataSize
	next := s.opts
	next.dataSize = size
	if err := s.update(next); err != nil {
		return old, err
	}
	return old, nil
}

// StopSize returns the number of stop bits.
func (s *Session) StopSize() int { return s.opts.stopSize }

// SetStopSize changes the stop bits (1 or 2) and returns the previous value.
func (s *Session) SetStopSize(size int) (int, error) {
	old := s.opts.stopSize
	next := s.opts
	next.stopSize = size
	if err := s.update(next); err != nil {
		return old, err
	}
	return old, nil
}

// Parity returns 'n', 'e' or 'o'.
func (s *Session) Parity() byte { return s.opts.parity }

// SetParity accepts n, e or o in either case and returns the previous parity.
func (s *Session) SetParity(parity byte) (byte, error) {
	old := s.opts.parity
	next := s.opts
	next.parity = parity
	if err := s.update(next); err != nil {
		return old, err
	}
	return old, nil
}

// ReadTimeout returns the readiness wait bound used by ReadBuffer.
func (s *Session) ReadTimeout() time.Duration { return s.readTimeout }

// SetReadTimeout sets the read timeout and returns the previous one.
// Negative values are treated as zero.
func (s *Session) SetReadTimeout(d time.Duration) time.Duration {
	old := s.readTimeout
	s.readTimeout = max(d, 0)
	return old
}

// WriteTimeout returns the readiness wait bound used by WriteBuffer.
func (s *Session) WriteTimeout() time.Duration { return s.writeTimeout }

// SetWriteTimeout sets the write timeout and returns the previous one.
// Negative values are treated as zero.
func (s *Session) SetWriteTimeout(d time.Duration) time.Duration {
	old := s.writeTimeout
	s.writeTimeout = max(d, 0)
	return old
}

// Close releases the device. Safe to call multiple times; subsequent calls
// are no-ops.
func (s *Session) Close() error {
	if s == nil || s.fd == invalidHandle {
		return nil
	}
	fd := s.fd
	s.fd = invalidHandle
	s.log.Debug("serial_close")
	if err := unix.Close(fd); err != nil && !errors.Is(err, unix.EINTR) {
		return fmt.Errorf("close %s: %w", s.device, err)
	}
	return nil
}
