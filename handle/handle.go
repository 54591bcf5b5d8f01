// Package handle exposes a comserial.Session through nil-tolerant calls
// that report failures as integer result codes, for callers that cannot
// consume Go errors (C bindings, scripting bridges).
//
// Result codes returned by WriteBuffer and ReadBuffer:
//
//	>= 0                  bytes transferred, whole buffer
//	-1 .. -(len(p)-1)     timeout after that many bytes (negated)
//	ResultTimeoutEmpty    timeout before any byte was transferred
//	ResultIOError         invalid input, nil handle or runtime failure
//
// Both sentinels sit below any count a single call can produce, so every
// outcome has exactly one encoding.
package handle

import (
	"errors"
	"log/slog"
	"math"
	"time"

	comserial "github.com/luhtfiimanal/go-comserial"
)

const (
	ResultIOError      int64 = -math.MaxInt32
	ResultTimeoutEmpty int64 = -(math.MaxInt32 - 1)
)

// Device is the opaque handle. The zero value is not usable; use Create.
type Device struct {
	s *comserial.Session
}

// Create opens path with default settings. It returns nil on failure; the
// reason is logged to logger when one is given.
func Create(path string, logger *slog.Logger) *Device {
	s, err := comserial.Open(comserial.Config{Device: path, Logger: logger})
	if err != nil {
		if logger != nil {
			logger.Error("create_device_failed", "device", path, "error", err)
		}
		return nil
	}
	return &Device{s: s}
}

// Wrap adopts an already opened session.
func Wrap(s *comserial.Session) *Device {
	if s == nil {
		return nil
	}
	return &Device{s: s}
}

// Destroy closes the device and sets *d to nil. Nil pointers are ignored.
func Destroy(d **Device) {
	if d == nil || *d == nil {
		return
	}
	_ = (*d).s.Close()
	*d = nil
}

// Session returns the wrapped session, or nil.
func (d *Device) Session() *comserial.Session {
	if d == nil {
		return nil
	}
	return d.s
}

func Speed(d *Device) int {
	if d == nil {
		return 0
	}
	return d.s.Speed()
}

// SetSpeed returns the previous speed, or 0 on error.
func SetSpeed(d *Device, speed int) int {
	if d == nil {
		return 0
	}
	return orZero(d.s.SetSpeed(speed))
}

func DataSize(d *Device) int {
	if d == nil {
		return 0
	}
	return d.s.DataSize()
}

func SetDataSize(d *Device, size int) int {
	if d == nil {
		return 0
	}
	return orZero(d.s.SetDataSize(size))
}

func StopSize(d *Device) int {
	if d == nil {
		return 0
	}
	return d.s.StopSize()
}

func SetStopSize(d *Device, size int) int {
	if d == nil {
		return 0
	}
	return orZero(d.s.SetStopSize(size))
}

func Parity(d *Device) byte {
	if d == nil {
		return 0
	}
	return d.s.Parity()
}

func SetParity(d *Device, parity byte) byte {
	if d == nil {
		return 0
	}
	return orZero(d.s.SetParity(parity))
}

// ReadTimeout returns the read timeout in milliseconds.
func ReadTimeout(d *Device) int {
	if d == nil {
		return 0
	}
	return int(d.s.ReadTimeout().Milliseconds())
}

// SetReadTimeout takes and returns milliseconds.
func SetReadTimeout(d *Device, ms int) int {
	if d == nil {
		return 0
	}
	return int(d.s.SetReadTimeout(time.Duration(ms) * time.Millisecond).Milliseconds())
}

func WriteTimeout(d *Device) int {
	if d == nil {
		return 0
	}
	return int(d.s.WriteTimeout().Milliseconds())
}

func SetWriteTimeout(d *Device, ms int) int {
	if d == nil {
		return 0
	}
	return int(d.s.SetWriteTimeout(time.Duration(ms) * time.Millisecond).Milliseconds())
}

// WriteBuffer writes p and returns a result code.
func WriteBuffer(d *Device, p []byte) int64 {
	if d == nil {
		return ResultIOError
	}
	return Encode(d.s.WriteBuffer(p))
}

// ReadBuffer fills p and returns a result code.
func ReadBuffer(d *Device, p []byte) int64 {
	if d == nil {
		return ResultIOError
	}
	return Encode(d.s.ReadBuffer(p))
}

// Encode folds the result of a Session transfer into a single code.
func Encode(n int, err error) int64 {
	if err == nil {
		return int64(n)
	}
	if transferred, ok := comserial.TransferredBefore(err); ok {
		if transferred == 0 {
			return ResultTimeoutEmpty
		}
		return -int64(transferred)
	}
	return ResultIOError
}

// Decode is the inverse of Encode. Generic failures decode to
// comserial.ErrRuntime since the code does not keep the specific kind.
func Decode(code int64) (int, error) {
	switch {
	case code >= 0:
		return int(code), nil
	case code == ResultIOError:
		return 0, comserial.ErrRuntime
	case code == ResultTimeoutEmpty:
		return 0, &comserial.TimeoutError{Transferred: 0}
	default:
		return int(-code), &comserial.TimeoutError{Transferred: int(-code)}
	}
}

// IsTimeout reports whether code encodes a timeout.
func IsTimeout(code int64) bool {
	_, err := Decode(code)
	return errors.Is(err, comserial.ErrTimeout)
}

func orZero[T any](old T, err error) T {
	if err != nil {
		var zero T
		return zero
	}
	return old
}
