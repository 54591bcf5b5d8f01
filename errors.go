package comserial

import (
	"errors"
	"fmt"
)

// Error kinds returned by Session operations. Callers match them with errors.Is.
var (
	ErrDeviceNotFound       = errors.New("device not found")
	ErrInvalidDevice        = errors.New("invalid device")
	ErrInvalidSpeed         = errors.New("invalid speed")
	ErrInvalidDataSize      = errors.New("invalid data size")
	ErrInvalidStopSize      = errors.New("invalid stop size")
	ErrInvalidParity        = errors.New("invalid parity")
	ErrInvalidConfiguration = errors.New("invalid configuration set")
	ErrInvalidInput         = errors.New("invalid argument")
	ErrRuntime              = errors.New("runtime error")
	ErrTimeout              = errors.New("timeout reached")
	ErrClosed               = errors.New("session closed")
)

// TimeoutError reports a readiness wait that expired before the whole buffer
// was transferred. Transferred holds the bytes moved before the deadline.
type TimeoutError struct {
	Op          string
	Transferred int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %v (%d bytes transferred)", e.Op, ErrTimeout, e.Transferred)
}

// Is makes errors.Is(err, ErrTimeout) true for any *TimeoutError.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Timeout lets callers treat the error like a net.Error deadline.
func (e *TimeoutError) Timeout() bool { return true }

// TransferredBefore extracts the partial count carried by a timeout error.
// ok is false when err is not a timeout.
func TransferredBefore(err error) (n int, ok bool) {
	var te *TimeoutError
	if errors.As(err, &te) {
		return te.Transferred, true
	}
	return 0, false
}

func runtimeError(msg string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrRuntime, msg, cause)
}
